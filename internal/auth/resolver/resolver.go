// Package resolver maps credential assertions to canonical identity
// records. It is the ONLY place where identity-to-account mapping logic
// lives: local register/login and OAuth callbacks all go through here.
package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/sweenec/Secrets/internal/auth"
	"github.com/sweenec/Secrets/internal/auth/credentials"
	"github.com/sweenec/Secrets/internal/store"
)

var (
	// ErrInvalidCredentials covers unknown email, passwordless account and
	// wrong password alike, so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrAlreadyRegistered = errors.New("account already exists")
	ErrPasswordTooShort  = errors.New("password too short")
)

const minPasswordLen = 8

type Resolver struct {
	store  store.Store
	hasher *credentials.Hasher
}

func New(store store.Store, hasher *credentials.Hasher) *Resolver {
	return &Resolver{store: store, hasher: hasher}
}

// Register creates a local credential for email. If a federated account
// with the same email already exists without a password, the credential
// is attached to it instead of failing.
func (r *Resolver) Register(ctx context.Context, email, password string) (*store.Identity, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if len(password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}

	hash, err := r.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	existing, err := r.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return r.attachPassword(ctx, existing, hash)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	id, err := r.store.Create(ctx, &store.Identity{
		Email:        email,
		PasswordHash: hash,
	})
	if errors.Is(err, store.ErrDuplicateKey) {
		// Lost a race on the email. Converge onto the winner.
		existing, ferr := r.store.FindByEmail(ctx, email)
		if ferr != nil {
			return nil, ErrAlreadyRegistered
		}
		return r.attachPassword(ctx, existing, hash)
	}
	if err != nil {
		return nil, err
	}

	return r.store.FindByID(ctx, id)
}

func (r *Resolver) attachPassword(ctx context.Context, ident *store.Identity, hash string) (*store.Identity, error) {
	if ident.PasswordHash != "" {
		return nil, ErrAlreadyRegistered
	}
	err := r.store.Update(ctx, ident.ID, store.Mutation{SetPasswordHash: &hash})
	if err != nil {
		return nil, err
	}
	return r.store.FindByID(ctx, ident.ID)
}

// VerifyLocal authenticates an email/password pair. Every failure mode
// returns ErrInvalidCredentials; which one it was must not be observable.
func (r *Resolver) VerifyLocal(ctx context.Context, email, password string) (*store.Identity, error) {
	ident, err := r.store.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if ident.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if !r.hasher.Verify(password, ident.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return ident, nil
}

// ResolveOrCreate maps a provider assertion to exactly one identity.
// Resolution order: existing provider link, then email match (links the
// new provider to an existing account), then a fresh identity. Repeat
// logins with the same (provider, subject) always land on the same
// record, including under concurrent first logins.
func (r *Resolver) ResolveOrCreate(ctx context.Context, assertion auth.Identity) (*store.Identity, error) {
	email := normalizeEmail(assertion.Email)

	// Two passes: if a create or link loses a uniqueness race, the second
	// pass finds whatever the winner stored.
	for attempt := 0; attempt < 2; attempt++ {
		ident, err := r.store.FindByProvider(ctx, assertion.Provider, assertion.ProviderUserID)
		if err == nil {
			return ident, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		if email != "" {
			ident, err = r.store.FindByEmail(ctx, email)
			if err == nil {
				link := store.ProviderLink{
					Provider: assertion.Provider,
					Subject:  assertion.ProviderUserID,
				}
				err = r.store.Update(ctx, ident.ID, store.Mutation{AddProviderLink: &link})
				if errors.Is(err, store.ErrDuplicateKey) {
					continue
				}
				if err != nil {
					return nil, err
				}
				return r.store.FindByID(ctx, ident.ID)
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
		}

		id, err := r.store.Create(ctx, &store.Identity{
			Email: email,
			Name:  assertion.Name,
			Providers: []store.ProviderLink{{
				Provider: assertion.Provider,
				Subject:  assertion.ProviderUserID,
			}},
		})
		if errors.Is(err, store.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return r.store.FindByID(ctx, id)
	}

	// Both passes lost their race; the link must exist by now.
	return r.store.FindByProvider(ctx, assertion.Provider, assertion.ProviderUserID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
