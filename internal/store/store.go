// Package store defines the persistence contract for identity records.
//
// Handlers and auth logic depend on this interface only; the Postgres and
// in-memory implementations live in subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("store: record not found")

	// ErrDuplicateKey indicates a uniqueness violation on create or update.
	// Racing creates on the same key produce at most one surviving record;
	// the losers get this error.
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// Identity is the canonical account record. An identity may hold a local
// password hash, one or more provider links, or both. Email is empty for
// federated accounts whose provider did not assert one.
type Identity struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string // empty means no local credential
	Secret       string
	Providers    []ProviderLink
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProviderLink maps an external provider subject to this identity.
// A (Provider, Subject) pair is unique across the whole store.
type ProviderLink struct {
	Provider string
	Subject  string
}

// LinkedTo reports whether the identity carries a link for provider.
func (i *Identity) LinkedTo(provider string) bool {
	for _, l := range i.Providers {
		if l.Provider == provider {
			return true
		}
	}
	return false
}

// Mutation describes a partial update. Only non-nil fields are applied.
type Mutation struct {
	SetPasswordHash *string
	SetName         *string
	SetSecret       *string
	AddProviderLink *ProviderLink
}

// Store persists identity records. All lookups are exact-match; email
// comparison is case-insensitive (callers normalize, the store enforces).
type Store interface {
	// Create stores a new identity and returns its assigned id.
	// Fails with ErrDuplicateKey if the email or any provider link
	// collides with an existing record.
	Create(ctx context.Context, ident *Identity) (string, error)

	FindByID(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByProvider(ctx context.Context, provider, subject string) (*Identity, error)

	// Update applies m to the identity with the given id. Adding a provider
	// link that already belongs to another identity fails with
	// ErrDuplicateKey.
	Update(ctx context.Context, id string, m Mutation) error

	// ListWithSecret returns every identity whose secret field is set.
	ListWithSecret(ctx context.Context) ([]*Identity, error)
}
