package resolver

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sweenec/Secrets/internal/auth"
	"github.com/sweenec/Secrets/internal/auth/credentials"
	"github.com/sweenec/Secrets/internal/store"
	"github.com/sweenec/Secrets/internal/store/memory"
)

func newResolver() (*Resolver, *memory.Store) {
	s := memory.New()
	return New(s, credentials.NewHasher(bcrypt.MinCost)), s
}

func TestRegisterThenVerifyLocal(t *testing.T) {
	r, _ := newResolver()
	ctx := context.Background()

	registered, err := r.Register(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, registered.ID)
	require.NotEmpty(t, registered.PasswordHash)
	require.NotEqual(t, "secret123", registered.PasswordHash)

	verified, err := r.VerifyLocal(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, registered.ID, verified.ID)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	r, _ := newResolver()
	ctx := context.Background()

	registered, err := r.Register(ctx, "  Alice@Example.COM ", "secret123")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", registered.Email)

	verified, err := r.VerifyLocal(ctx, "ALICE@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, registered.ID, verified.ID)
}

func TestRegisterDuplicate(t *testing.T) {
	r, _ := newResolver()
	ctx := context.Background()

	_, err := r.Register(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = r.Register(ctx, "alice@example.com", "different1")
	require.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegisterShortPassword(t *testing.T) {
	r, _ := newResolver()

	_, err := r.Register(context.Background(), "alice@example.com", "short")
	require.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestRegisterAttachesPasswordToFederatedAccount(t *testing.T) {
	r, _ := newResolver()
	ctx := context.Background()

	federated, err := r.ResolveOrCreate(ctx, auth.Identity{
		Provider:       "google",
		ProviderUserID: "42",
		Email:          "alice@example.com",
	})
	require.NoError(t, err)
	require.Empty(t, federated.PasswordHash)

	registered, err := r.Register(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, federated.ID, registered.ID)
	require.True(t, registered.LinkedTo("google"))

	verified, err := r.VerifyLocal(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, federated.ID, verified.ID)
}

func TestVerifyLocalUniformFailures(t *testing.T) {
	r, _ := newResolver()
	ctx := context.Background()

	_, err := r.Register(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	// Wrong password and unknown account fail with the same error.
	_, wrongPassword := r.VerifyLocal(ctx, "alice@example.com", "wrong")
	_, unknownUser := r.VerifyLocal(ctx, "bob@example.com", "x")

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	require.Equal(t, wrongPassword, unknownUser)
}

func TestVerifyLocalPasswordlessAccount(t *testing.T) {
	r, _ := newResolver()
	ctx := context.Background()

	_, err := r.ResolveOrCreate(ctx, auth.Identity{
		Provider:       "google",
		ProviderUserID: "42",
		Email:          "alice@example.com",
	})
	require.NoError(t, err)

	_, err = r.VerifyLocal(ctx, "alice@example.com", "anything1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveOrCreateIdempotent(t *testing.T) {
	r, _ := newResolver()
	ctx := context.Background()

	assertion := auth.Identity{
		Provider:       "google",
		ProviderUserID: "42",
		Email:          "alice@example.com",
		Name:           "Alice",
	}

	first, err := r.ResolveOrCreate(ctx, assertion)
	require.NoError(t, err)
	require.Equal(t, "Alice", first.Name)
	require.True(t, first.LinkedTo("google"))

	second, err := r.ResolveOrCreate(ctx, assertion)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestResolveOrCreateLinksSecondProviderByEmail(t *testing.T) {
	r, _ := newResolver()
	ctx := context.Background()

	first, err := r.ResolveOrCreate(ctx, auth.Identity{
		Provider:       "google",
		ProviderUserID: "42",
		Email:          "alice@example.com",
	})
	require.NoError(t, err)

	second, err := r.ResolveOrCreate(ctx, auth.Identity{
		Provider:       "facebook",
		ProviderUserID: "7",
		Email:          "alice@example.com",
	})
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.True(t, second.LinkedTo("google"))
	require.True(t, second.LinkedTo("facebook"))
}

func TestResolveOrCreateWithoutEmail(t *testing.T) {
	r, _ := newResolver()
	ctx := context.Background()

	first, err := r.ResolveOrCreate(ctx, auth.Identity{
		Provider:       "facebook",
		ProviderUserID: "7",
	})
	require.NoError(t, err)
	require.Empty(t, first.Email)

	second, err := r.ResolveOrCreate(ctx, auth.Identity{
		Provider:       "facebook",
		ProviderUserID: "7",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestResolveOrCreateConcurrentFirstLogins(t *testing.T) {
	r, s := newResolver()
	ctx := context.Background()

	assertion := auth.Identity{
		Provider:       "google",
		ProviderUserID: "42",
		Email:          "alice@example.com",
	}

	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ident, err := r.ResolveOrCreate(ctx, assertion)
			errs[i] = err
			if err == nil {
				ids[i] = ident.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}

	// Exactly one stored identity carries the link.
	stored, err := s.FindByProvider(ctx, "google", "42")
	require.NoError(t, err)
	require.Equal(t, ids[0], stored.ID)
	require.Len(t, stored.Providers, 1)
}

func TestRegisterConcurrentSameEmail(t *testing.T) {
	r, _ := newResolver()
	ctx := context.Background()

	const callers = 8
	results := make([]error, callers)
	ids := make([]string, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ident, err := r.Register(ctx, "alice@example.com", "secret123")
			results[i] = err
			if err == nil {
				ids[i] = ident.ID
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range results {
		if err == nil {
			winners++
			require.NotEmpty(t, ids[i])
		} else {
			require.ErrorIs(t, err, ErrAlreadyRegistered)
		}
	}
	require.GreaterOrEqual(t, winners, 1)
}

func TestResolveOrCreateDoesNotDuplicateOnStoreRace(t *testing.T) {
	// Seed the link out from under the resolver to force the
	// duplicate-key convergence path.
	s := memory.New()
	r := New(s, credentials.NewHasher(bcrypt.MinCost))
	ctx := context.Background()

	seeded, err := s.Create(ctx, &store.Identity{
		Email:     "alice@example.com",
		Providers: []store.ProviderLink{{Provider: "google", Subject: "42"}},
	})
	require.NoError(t, err)

	ident, err := r.ResolveOrCreate(ctx, auth.Identity{
		Provider:       "google",
		ProviderUserID: "42",
		Email:          "alice@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, seeded, ident.ID)
}
