package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload cached sessions that were not saved remotely",
		Args:  cobra.NoArgs,
		RunE:  runSyncCmd,
	}
}

func runSyncCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()
	n, err := a.persister(false).Sync(ctx)
	if _, werr := fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d session(s)\n", n); werr != nil {
		return werr
	}
	return err
}
