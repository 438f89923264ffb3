package credential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	model "github.com/foodloop/assistant/internal/model/credential"
)

// ErrNoToken is returned when no usable access token could be obtained.
var ErrNoToken = errors.New("no access token")

// Issuer mints a new bearer token from a statically configured identity.
type Issuer interface {
	IssueToken(ctx context.Context) (string, error)
}

// IssuerFunc adapts a function to the Issuer interface.
type IssuerFunc func(ctx context.Context) (string, error)

// IssueToken calls f.
func (f IssuerFunc) IssueToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// Manager caches a single credential and refreshes it lazily.
type Manager struct {
	issuer Issuer
	now    func() time.Time

	mu     sync.RWMutex
	cached model.Credential

	group singleflight.Group
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager returns a Manager backed by issuer.
func NewManager(issuer Issuer, opts ...Option) *Manager {
	m := &Manager{
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetAccessToken returns the cached token while it is outside the refresh
// buffer, otherwise asks the issuer for a new one. Callers that overlap a
// refresh share its result.
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	cached := m.cached
	m.mu.RUnlock()

	if cached.Usable(m.now()) {
		return cached.Token, nil
	}

	// The flight outlives any single caller; each caller stops waiting on
	// its own context.
	ch := m.group.DoChan("refresh", func() (interface{}, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrNoToken, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			log.Debug().Msg("joined in-flight token refresh")
		}
		return res.Val.(string), nil
	}
}

// Credential returns a copy of the cached credential.
func (m *Manager) Credential() model.Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cached
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	if m.issuer == nil {
		return "", errors.Wrap(ErrNoToken, "issuer not configured")
	}

	now := m.now()

	// A caller that read a stale cache may arrive after another refresh landed.
	m.mu.RLock()
	cached := m.cached
	m.mu.RUnlock()
	if cached.Usable(now) {
		return cached.Token, nil
	}

	token, err := m.issuer.IssueToken(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to obtain access token")
		return "", fmt.Errorf("%w: %w", ErrNoToken, err)
	}
	if token == "" {
		log.Error().Msg("issuer returned an empty access token")
		return "", ErrNoToken
	}

	m.mu.Lock()
	m.cached = model.Credential{
		Token:     token,
		ExpiresAt: now.Add(model.Lifetime),
	}
	m.mu.Unlock()

	log.Debug().Time("expires_at", now.Add(model.Lifetime)).Msg("access token refreshed")
	return token, nil
}
