// Package memory implements the identity store in process memory.
// It mirrors the Postgres store's semantics, including uniqueness
// enforcement, and backs the test suite.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweenec/Secrets/internal/store"
)

type Store struct {
	mu      sync.Mutex
	byID    map[string]*store.Identity
	byEmail map[string]string // lower(email) -> id
	byLink  map[string]string // provider "\x00" subject -> id
}

func New() *Store {
	return &Store{
		byID:    make(map[string]*store.Identity),
		byEmail: make(map[string]string),
		byLink:  make(map[string]string),
	}
}

func linkKey(provider, subject string) string {
	return provider + "\x00" + subject
}

func (s *Store) Create(_ context.Context, ident *store.Identity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := strings.ToLower(ident.Email)
	if ident.Email != "" {
		if _, ok := s.byEmail[emailKey]; ok {
			return "", store.ErrDuplicateKey
		}
	}
	for _, l := range ident.Providers {
		if _, ok := s.byLink[linkKey(l.Provider, l.Subject)]; ok {
			return "", store.ErrDuplicateKey
		}
	}

	cp := *ident
	cp.ID = uuid.NewString()
	cp.Providers = append([]store.ProviderLink(nil), ident.Providers...)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt

	s.byID[cp.ID] = &cp
	if cp.Email != "" {
		s.byEmail[emailKey] = cp.ID
	}
	for _, l := range cp.Providers {
		s.byLink[linkKey(l.Provider, l.Subject)] = cp.ID
	}
	return cp.ID, nil
}

func (s *Store) FindByID(_ context.Context, id string) (*store.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *Store) FindByEmail(_ context.Context, email string) (*store.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.get(id)
}

func (s *Store) FindByProvider(_ context.Context, provider, subject string) (*store.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byLink[linkKey(provider, subject)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.get(id)
}

func (s *Store) Update(_ context.Context, id string, m store.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}

	if m.AddProviderLink != nil {
		key := linkKey(m.AddProviderLink.Provider, m.AddProviderLink.Subject)
		if _, taken := s.byLink[key]; taken {
			return store.ErrDuplicateKey
		}
		s.byLink[key] = id
		ident.Providers = append(ident.Providers, *m.AddProviderLink)
	}
	if m.SetPasswordHash != nil {
		ident.PasswordHash = *m.SetPasswordHash
	}
	if m.SetName != nil {
		ident.Name = *m.SetName
	}
	if m.SetSecret != nil {
		ident.Secret = *m.SetSecret
	}
	ident.UpdatedAt = time.Now()
	return nil
}

func (s *Store) ListWithSecret(_ context.Context) ([]*store.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*store.Identity
	for id := range s.byID {
		ident, _ := s.get(id)
		if ident.Secret != "" {
			out = append(out, ident)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

// get returns a copy so callers never alias live records.
// Callers must hold s.mu.
func (s *Store) get(id string) (*store.Identity, error) {
	ident, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ident
	cp.Providers = append([]store.ProviderLink(nil), ident.Providers...)
	return &cp, nil
}
