package session

import (
	"context"
	"errors"
	"time"

	"github.com/sweenec/Secrets/internal/store"
)

// Manager owns the session lifecycle: Anonymous -> Authenticated -> Anonymous.
// It is constructed once at process start and passed by reference into
// every handler; there is no ambient session state.
type Manager struct {
	sessions   Store
	identities store.Store
	ttl        time.Duration
}

func NewManager(sessions Store, identities store.Store, ttl time.Duration) *Manager {
	return &Manager{
		sessions:   sessions,
		identities: identities,
		ttl:        ttl,
	}
}

// Login issues a fresh unpredictable token bound to identityID and
// returns it with its absolute expiry for the caller to set as a cookie.
func (m *Manager) Login(ctx context.Context, identityID string) (string, time.Time, error) {
	sessionID, err := GenerateID()
	if err != nil {
		return "", time.Time{}, err
	}

	now := time.Now()
	expiresAt := now.Add(m.ttl)

	err = m.sessions.Create(ctx, Session{
		SessionID: sessionID,
		UserID:    identityID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return sessionID, expiresAt, nil
}

// Current dereferences a token to the live identity record, re-fetched
// from the credential store on every call so store-side changes are
// always reflected. An absent, unknown or expired token yields
// (nil, nil): anonymous is a state, not an error. A session whose
// identity row is gone is torn down and treated as anonymous.
func (m *Manager) Current(ctx context.Context, token string) (*store.Identity, error) {
	if token == "" {
		return nil, nil
	}

	sess, err := m.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = m.sessions.Delete(ctx, token)
		return nil, nil
	}

	ident, err := m.identities.FindByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		_ = m.sessions.Delete(ctx, token)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ident, nil
}

// Logout invalidates the token. Calling it twice, or with a token that
// was never issued, is a no-op.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.sessions.Delete(ctx, token)
}
