package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verte-zerg/zetatrack/internal/model"
	"github.com/verte-zerg/zetatrack/internal/store"
)

type fakeRemote struct {
	err   error
	saved []string
}

func (f *fakeRemote) SaveSession(_ context.Context, s model.Session) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, s.ID)
	return nil
}

type fakeIdentity struct{}

func (fakeIdentity) Current(context.Context) (model.Credential, error) {
	return model.Credential{SubjectID: "user-1"}, nil
}

type countingNotifier struct{ count int }

func (c *countingNotifier) SessionSaved(context.Context, model.Session) error {
	c.count++
	return nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testSession(id string, score int, at time.Time) model.Session {
	duration := 120
	return model.Session{
		ID:                      id,
		Score:                   score,
		Problems:                []model.Problem{{Question: "2 + 2", Answer: "4", LatencyMs: 800, OperationType: model.OpAddition}},
		DetectedDurationSeconds: &duration,
		StartedAt:               at.Add(-2 * time.Minute),
		EndedAt:                 at,
	}
}

func TestPersisterSavesRemoteAndLocal(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	remote := &fakeRemote{}
	n := &countingNotifier{}
	p := &persister{remote: remote, local: st, creds: fakeIdentity{}, notifier: n, logger: zap.NewNop()}

	require.NoError(t, p.Save(ctx, testSession("s1", 1, time.Now())))
	require.Equal(t, []string{"s1"}, remote.saved)
	require.Equal(t, 1, n.count)

	cached, err := st.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	require.True(t, cached[0].Remote)
	require.Equal(t, "user-1", cached[0].UserID)
}

func TestPersisterKeepsSessionWhenRemoteFails(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	remote := &fakeRemote{err: errors.New("unavailable")}
	p := &persister{remote: remote, local: st, notifier: &countingNotifier{}, logger: zap.NewNop()}

	require.NoError(t, p.Save(ctx, testSession("s1", 1, time.Now())))

	cached, err := st.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	require.False(t, cached[0].Remote)
}

func TestPersisterOfflineThenSync(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	offline := &persister{local: st, notifier: &countingNotifier{}, logger: zap.NewNop()}
	require.NoError(t, offline.Save(ctx, testSession("old", 1, base)))
	require.NoError(t, offline.Save(ctx, testSession("new", 1, base.Add(time.Hour))))

	_, err := offline.Sync(ctx)
	require.ErrorIs(t, err, errOffline)

	remote := &fakeRemote{}
	online := &persister{remote: remote, local: st, notifier: &countingNotifier{}, logger: zap.NewNop()}
	n, err := online.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"old", "new"}, remote.saved)

	n, err = online.Sync(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
