// Package postgres implements the identity store on Postgres.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sweenec/Secrets/internal/db"
	"github.com/sweenec/Secrets/internal/store"
)

const uniqueViolation = "23505"

type Store struct {
	db *db.DB
}

func New(db *db.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, ident *store.Identity) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, name, password_hash, secret)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`,
		nullable(ident.Email),
		nullable(ident.Name),
		nullable(ident.PasswordHash),
		nullable(ident.Secret),
	).Scan(&id)
	if err != nil {
		return "", mapErr(err)
	}

	for _, link := range ident.Providers {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO identities (user_id, provider, provider_user_id)
			VALUES ($1, $2, $3)
		`, id, link.Provider, link.Subject)
		if err != nil {
			return "", mapErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", mapErr(err)
	}
	return id, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*store.Identity, error) {
	return s.findOne(ctx, `WHERE u.id = $1`, id)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*store.Identity, error) {
	return s.findOne(ctx, `WHERE LOWER(u.email) = LOWER($1)`, email)
}

func (s *Store) FindByProvider(ctx context.Context, provider, subject string) (*store.Identity, error) {
	return s.findOne(ctx, `
		WHERE u.id = (
			SELECT user_id FROM identities
			WHERE provider = $1 AND provider_user_id = $2
		)`, provider, subject)
}

func (s *Store) findOne(ctx context.Context, where string, args ...any) (*store.Identity, error) {
	var (
		ident store.Identity
		email sql.NullString
		name  sql.NullString
		hash  sql.NullString
		sec   sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.name, u.password_hash, u.secret,
		       u.created_at, u.updated_at
		FROM users u `+where,
		args...,
	).Scan(&ident.ID, &email, &name, &hash, &sec,
		&ident.CreatedAt, &ident.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	ident.Email = email.String
	ident.Name = name.String
	ident.PasswordHash = hash.String
	ident.Secret = sec.String

	if err := s.loadLinks(ctx, &ident); err != nil {
		return nil, err
	}
	return &ident, nil
}

func (s *Store) loadLinks(ctx context.Context, ident *store.Identity) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, provider_user_id
		FROM identities
		WHERE user_id = $1
		ORDER BY created_at
	`, ident.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var link store.ProviderLink
		if err := rows.Scan(&link.Provider, &link.Subject); err != nil {
			return err
		}
		ident.Providers = append(ident.Providers, link)
	}
	return rows.Err()
}

func (s *Store) Update(ctx context.Context, id string, m store.Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	set := ""
	args := []any{id}
	add := func(col string, val string) {
		args = append(args, nullable(val))
		set += fmt.Sprintf(", %s = $%d", col, len(args))
	}

	if m.SetPasswordHash != nil {
		add("password_hash", *m.SetPasswordHash)
	}
	if m.SetName != nil {
		add("name", *m.SetName)
	}
	if m.SetSecret != nil {
		add("secret", *m.SetSecret)
	}

	if set != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET updated_at = NOW()`+set+` WHERE id = $1`,
			args...,
		)
		if err != nil {
			return mapErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
	}

	if m.AddProviderLink != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO identities (user_id, provider, provider_user_id)
			VALUES ($1, $2, $3)
		`, id, m.AddProviderLink.Provider, m.AddProviderLink.Subject)
		if err != nil {
			return mapErr(err)
		}
	}

	return tx.Commit()
}

func (s *Store) ListWithSecret(ctx context.Context) ([]*store.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, secret
		FROM users
		WHERE secret IS NOT NULL
		ORDER BY updated_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.Identity
	for rows.Next() {
		var (
			ident store.Identity
			email sql.NullString
			name  sql.NullString
			sec   sql.NullString
		)
		if err := rows.Scan(&ident.ID, &email, &name, &sec); err != nil {
			return nil, err
		}
		ident.Email = email.String
		ident.Name = name.String
		ident.Secret = sec.String
		out = append(out, &ident)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func mapErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return store.ErrDuplicateKey
	}
	return err
}
