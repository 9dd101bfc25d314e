package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweenec/Secrets/internal/store"
	"github.com/sweenec/Secrets/internal/store/memory"
)

func newManager(t *testing.T, ttl time.Duration) (*Manager, string) {
	t.Helper()

	identities := memory.New()
	id, err := identities.Create(context.Background(), &store.Identity{
		Email: "alice@example.com",
	})
	require.NoError(t, err)

	return NewManager(NewMemoryStore(), identities, ttl), id
}

func TestLoginThenCurrent(t *testing.T) {
	m, identityID := newManager(t, time.Hour)
	ctx := context.Background()

	token, expiresAt, err := m.Login(ctx, identityID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.After(time.Now()))

	ident, err := m.Current(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, ident)
	require.Equal(t, identityID, ident.ID)
}

func TestCurrentReflectsStoreChanges(t *testing.T) {
	identities := memory.New()
	ctx := context.Background()

	id, err := identities.Create(ctx, &store.Identity{Email: "alice@example.com"})
	require.NoError(t, err)

	m := NewManager(NewMemoryStore(), identities, time.Hour)

	token, _, err := m.Login(ctx, id)
	require.NoError(t, err)

	// Only the identity id crosses the session boundary; the record is
	// re-fetched live, so a later secret update is visible.
	secret := "hello"
	require.NoError(t, identities.Update(ctx, id, store.Mutation{SetSecret: &secret}))

	ident, err := m.Current(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "hello", ident.Secret)
}

func TestCurrentAnonymousCases(t *testing.T) {
	m, _ := newManager(t, time.Hour)
	ctx := context.Background()

	for _, token := range []string{"", "never-issued"} {
		ident, err := m.Current(ctx, token)
		require.NoError(t, err)
		require.Nil(t, ident)
	}
}

func TestCurrentExpiredSession(t *testing.T) {
	m, identityID := newManager(t, 10*time.Millisecond)
	ctx := context.Background()

	token, _, err := m.Login(ctx, identityID)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	ident, err := m.Current(ctx, token)
	require.NoError(t, err)
	require.Nil(t, ident)
}

func TestCurrentDanglingIdentity(t *testing.T) {
	identities := memory.New()
	m := NewManager(NewMemoryStore(), identities, time.Hour)
	ctx := context.Background()

	// Session points at an identity id the store has never seen.
	require.NoError(t, m.sessions.Create(ctx, Session{
		SessionID: "tok",
		UserID:    "gone",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	ident, err := m.Current(ctx, "tok")
	require.NoError(t, err)
	require.Nil(t, ident)

	// The dangling session was torn down.
	sess, err := m.sessions.Get(ctx, "tok")
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestLogout(t *testing.T) {
	m, identityID := newManager(t, time.Hour)
	ctx := context.Background()

	token, _, err := m.Login(ctx, identityID)
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, token))

	ident, err := m.Current(ctx, token)
	require.NoError(t, err)
	require.Nil(t, ident)

	// Idempotent: logging out again, or with a bogus token, is a no-op.
	require.NoError(t, m.Logout(ctx, token))
	require.NoError(t, m.Logout(ctx, "never-issued"))
	require.NoError(t, m.Logout(ctx, ""))
}

func TestLoginTokensAreUnique(t *testing.T) {
	m, identityID := newManager(t, time.Hour)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, _, err := m.Login(ctx, identityID)
		require.NoError(t, err)
		require.False(t, seen[token])
		seen[token] = true
	}
}

func TestMemoryStoreRejectsPastExpiry(t *testing.T) {
	s := NewMemoryStore()
	err := s.Create(context.Background(), Session{
		SessionID: "tok",
		UserID:    "u",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	require.Error(t, err)
}

func TestGenerateIDShape(t *testing.T) {
	id, err := GenerateID()
	require.NoError(t, err)
	// 32 bytes base64url without padding.
	require.Len(t, id, 43)
}
