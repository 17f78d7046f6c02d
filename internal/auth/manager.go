// Package auth manages the anonymous bearer credential used for remote persistence.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/verte-zerg/zetatrack/internal/clock"
	"github.com/verte-zerg/zetatrack/internal/model"
)

// Key-value store keys holding the cached credential.
const (
	KeyAuthToken      = "authToken"
	KeyRefreshToken   = "refreshToken"
	KeyUserID         = "userId"
	KeyTokenTimestamp = "tokenTimestamp"
)

const (
	// DefaultLifetime is how long an issued token is accepted by the remote store.
	DefaultLifetime = time.Hour
	// DefaultRefreshBuffer renews tokens this long before they expire.
	DefaultRefreshBuffer = 5 * time.Minute
)

// ErrCredentialUnavailable is returned when no usable credential can be obtained.
var ErrCredentialUnavailable = errors.New("credential unavailable")

// KV is the persistent key-value store holding the credential.
type KV interface {
	Values(ctx context.Context, keys ...string) (map[string]string, error)
	// SetValues writes all values in one atomic step.
	SetValues(ctx context.Context, values map[string]string) error
}

// APIKeyProvider supplies the identity service API key.
type APIKeyProvider interface {
	APIKey() (string, error)
}

// Identity is the remote identity service.
type Identity interface {
	SignUp(ctx context.Context, apiKey string) (Tokens, error)
	Refresh(ctx context.Context, apiKey, refreshToken string) (Tokens, error)
}

// Options configures a Manager.
type Options struct {
	KV            KV
	Keys          APIKeyProvider
	Identity      Identity
	Clock         clock.Clock
	Logger        *zap.Logger
	Lifetime      time.Duration
	RefreshBuffer time.Duration
}

// Manager owns the single cached credential.
type Manager struct {
	kv       KV
	keys     APIKeyProvider
	identity Identity
	clock    clock.Clock
	logger   *zap.Logger
	lifetime time.Duration
	buffer   time.Duration

	group singleflight.Group
}

// NewManager builds a Manager from opts.
func NewManager(opts Options) *Manager {
	m := &Manager{
		kv:       opts.KV,
		keys:     opts.Keys,
		identity: opts.Identity,
		clock:    opts.Clock,
		logger:   opts.Logger,
		lifetime: opts.Lifetime,
		buffer:   opts.RefreshBuffer,
	}
	if m.identity == nil {
		m.identity = NewIdentityClient()
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.lifetime <= 0 {
		m.lifetime = DefaultLifetime
	}
	if m.buffer <= 0 {
		m.buffer = DefaultRefreshBuffer
	}
	return m
}

// Current returns the cached credential without refreshing it.
func (m *Manager) Current(ctx context.Context) (model.Credential, error) {
	values, err := m.kv.Values(ctx, KeyAuthToken, KeyRefreshToken, KeyUserID, KeyTokenTimestamp)
	if err != nil {
		return model.Credential{}, fmt.Errorf("failed to load credential: %w", err)
	}
	cred := model.Credential{
		AuthToken:    values[KeyAuthToken],
		RefreshToken: values[KeyRefreshToken],
		SubjectID:    values[KeyUserID],
	}
	if ms, err := strconv.ParseInt(values[KeyTokenTimestamp], 10, 64); err == nil && ms > 0 {
		cred.IssuedAt = time.UnixMilli(ms)
	}
	return cred, nil
}

// Fresh reports whether cred can be used without renewal.
func (m *Manager) Fresh(cred model.Credential) bool {
	if cred.Empty() || cred.IssuedAt.IsZero() {
		return false
	}
	return m.clock.Now().Before(cred.IssuedAt.Add(m.lifetime - m.buffer))
}

// Acquire returns a fresh credential, renewing it when stale.
func (m *Manager) Acquire(ctx context.Context) (model.Credential, error) {
	cred, err := m.Current(ctx)
	if err != nil {
		return model.Credential{}, fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
	}
	if m.Fresh(cred) {
		return cred, nil
	}
	m.logger.Debug("credential stale, renewing", zap.Time("issued_at", cred.IssuedAt))
	return m.ForceRefresh(ctx)
}

// ForceRefresh renews the credential regardless of its age. Concurrent calls share one renewal.
func (m *Manager) ForceRefresh(ctx context.Context) (model.Credential, error) {
	v, err, _ := m.group.Do("refresh", func() (any, error) {
		return m.renew(ctx)
	})
	if err != nil {
		return model.Credential{}, err
	}
	return v.(model.Credential), nil
}

func (m *Manager) renew(ctx context.Context) (model.Credential, error) {
	if m.keys == nil {
		return model.Credential{}, fmt.Errorf("%w: no API key source", ErrCredentialUnavailable)
	}
	apiKey, err := m.keys.APIKey()
	if err != nil {
		return model.Credential{}, fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
	}
	if apiKey == "" {
		return model.Credential{}, fmt.Errorf("%w: API key is empty", ErrCredentialUnavailable)
	}

	current, err := m.Current(ctx)
	if err != nil {
		return model.Credential{}, fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
	}

	var tokens Tokens
	refreshed := false
	if current.RefreshToken != "" {
		tokens, err = m.identity.Refresh(ctx, apiKey, current.RefreshToken)
		if err != nil {
			m.logger.Warn("token refresh failed, creating new identity", zap.Error(err))
		} else {
			refreshed = true
		}
	}
	if !refreshed {
		tokens, err = m.identity.SignUp(ctx, apiKey)
		if err != nil {
			return model.Credential{}, fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
		}
		m.logger.Info("created anonymous identity", zap.String("user", tokens.SubjectID))
	}

	cred := model.Credential{
		AuthToken:    tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		SubjectID:    tokens.SubjectID,
		IssuedAt:     m.clock.Now(),
	}
	if err := m.store(ctx, cred); err != nil {
		return model.Credential{}, fmt.Errorf("%w: %w", ErrCredentialUnavailable, err)
	}
	return cred, nil
}

func (m *Manager) store(ctx context.Context, cred model.Credential) error {
	values := map[string]string{
		KeyAuthToken:      cred.AuthToken,
		KeyRefreshToken:   cred.RefreshToken,
		KeyUserID:         cred.SubjectID,
		KeyTokenTimestamp: strconv.FormatInt(cred.IssuedAt.UnixMilli(), 10),
	}
	if err := m.kv.SetValues(ctx, values); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}
