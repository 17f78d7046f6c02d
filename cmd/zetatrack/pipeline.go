package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/verte-zerg/zetatrack/internal/model"
	"github.com/verte-zerg/zetatrack/internal/notify"
)

type remoteStore interface {
	SaveSession(ctx context.Context, s model.Session) error
}

type localCache interface {
	InsertSession(ctx context.Context, session model.Session, userID string, remoteSaved bool) error
	MarkRemoteSaved(ctx context.Context, id string) error
	ListSessions(ctx context.Context, last int) ([]model.StoredSession, error)
}

type identity interface {
	Current(ctx context.Context) (model.Credential, error)
}

// persister writes a finalized session to the remote store and the local cache,
// then announces it. A nil remote means offline mode.
type persister struct {
	remote   remoteStore
	local    localCache
	creds    identity
	notifier notify.Notifier
	logger   *zap.Logger
}

// Save fails only when the session was stored nowhere. A remote failure keeps the
// session in the local cache for a later sync.
func (p *persister) Save(ctx context.Context, session model.Session) error {
	var remoteErr error
	if p.remote == nil {
		remoteErr = errOffline
	} else if remoteErr = p.remote.SaveSession(ctx, session); remoteErr != nil {
		p.logger.Warn("remote save failed, keeping session locally",
			zap.String("session", session.ID), zap.Error(remoteErr))
	}

	userID := ""
	if p.creds != nil {
		if cred, err := p.creds.Current(ctx); err == nil {
			userID = cred.SubjectID
		}
	}
	localErr := p.local.InsertSession(ctx, session, userID, remoteErr == nil)
	if localErr != nil {
		p.logger.Warn("failed to cache session", zap.String("session", session.ID), zap.Error(localErr))
		if remoteErr != nil {
			return fmt.Errorf("failed to store session: %w", errors.Join(remoteErr, localErr))
		}
	}

	if err := p.notifier.SessionSaved(ctx, session); err != nil {
		p.logger.Warn("failed to send notification", zap.Error(err))
	}
	return nil
}

var errOffline = errors.New("offline")

// Sync uploads cached sessions that never reached the remote store.
// It returns how many were uploaded.
func (p *persister) Sync(ctx context.Context) (int, error) {
	if p.remote == nil {
		return 0, errOffline
	}
	cached, err := p.local.ListSessions(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list cached sessions: %w", err)
	}
	uploaded := 0
	for i := len(cached) - 1; i >= 0; i-- {
		stored := cached[i]
		if stored.Remote {
			continue
		}
		session := model.Session{
			ID:       stored.ID,
			Score:    stored.Score,
			Problems: stored.Problems,
			EndedAt:  stored.Timestamp,
		}
		if err := p.remote.SaveSession(ctx, session); err != nil {
			return uploaded, fmt.Errorf("failed to upload session %s: %w", stored.ID, err)
		}
		if err := p.local.MarkRemoteSaved(ctx, stored.ID); err != nil {
			return uploaded, fmt.Errorf("failed to mark session %s: %w", stored.ID, err)
		}
		uploaded++
		p.logger.Info("session synced", zap.String("session", stored.ID), zap.Int("score", stored.Score))
	}
	return uploaded, nil
}
