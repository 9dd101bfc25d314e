// Package secrets owns the one piece of protected application data:
// each identity's secret text. Submitting requires an authenticated
// session; the listing is public on purpose, every submitted secret is
// shown to anonymous visitors.
package secrets

import (
	"context"
	"strings"

	"github.com/sweenec/Secrets/internal/store"
)

// Entry is one row of the public listing. Handle is a display handle,
// never the raw email address.
type Entry struct {
	Handle string `json:"handle"`
	Secret string `json:"secret"`
}

type Service struct {
	store store.Store
}

func NewService(store store.Store) *Service {
	return &Service{store: store}
}

// Submit sets the secret owned by identityID. Store failures propagate;
// a submit must never look successful when the write was lost.
func (s *Service) Submit(ctx context.Context, identityID, text string) error {
	return s.store.Update(ctx, identityID, store.Mutation{SetSecret: &text})
}

// List returns every identity with a secret set.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	idents, err := s.store.ListWithSecret(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(idents))
	for _, ident := range idents {
		entries = append(entries, Entry{
			Handle: handle(ident),
			Secret: ident.Secret,
		})
	}
	return entries, nil
}

func handle(ident *store.Identity) string {
	if ident.Name != "" {
		return ident.Name
	}
	if at := strings.Index(ident.Email, "@"); at > 0 {
		return ident.Email[:at]
	}
	return "anonymous"
}
