package store

import (
	"context"
	"fmt"
)

// UserStore persists accounts.
type UserStore struct {
	db querier
}

// NewUserStore returns a UserStore over pool.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{db: pool}
}

// UpsertAdmin creates the administrative account, or refreshes its email and
// password if the username already exists. At most one row per username can
// result, so repeated setup runs never duplicate the account. Returns true
// when the row was newly created.
func (s *UserStore) UpsertAdmin(ctx context.Context, username, email, passwordHash string) (bool, error) {
	var created bool
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, is_admin)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (username) DO UPDATE
		SET email = EXCLUDED.email, password_hash = EXCLUDED.password_hash, is_admin = TRUE
		RETURNING (xmax = 0)`,
		username, email, passwordHash,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upserting admin %q: %w", username, err)
	}
	return created, nil
}
