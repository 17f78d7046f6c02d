package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/zetatrack/internal/auth"
	"github.com/verte-zerg/zetatrack/internal/model"
)

var loginForce bool

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Show or renew the anonymous identity",
		Args:  cobra.NoArgs,
		RunE:  runLoginCmd,
	}
	cmd.Flags().BoolVar(&loginForce, "force", false, "renew the credential even if it is still fresh")
	return cmd
}

func runLoginCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	var cred model.Credential
	if loginForce {
		cred, err = a.creds.ForceRefresh(ctx)
	} else {
		cred, err = a.creds.Acquire(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to obtain credential: %w", err)
	}

	expires := cred.IssuedAt.Add(auth.DefaultLifetime)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "User: %s\nIssued: %s\nExpires: %s\n",
		cred.SubjectID,
		cred.IssuedAt.Local().Format(time.DateTime),
		expires.Local().Format(time.DateTime))
	return err
}
