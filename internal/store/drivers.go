package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// defaultLicense is assigned to the demo driver created when no driver is
// supplied with a trip.
const defaultLicense = "DEMO123"

// DriverStore persists drivers.
type DriverStore struct {
	db querier
}

// NewDriverStore returns a DriverStore over pool.
func NewDriverStore(pool *Pool) *DriverStore {
	return &DriverStore{db: pool}
}

// Get fetches a driver by id, joined with the account name.
func (s *DriverStore) Get(ctx context.Context, id int64) (*Driver, error) {
	var d Driver
	err := s.db.QueryRow(ctx, `
		SELECT d.id, d.user_id, trim(u.first_name || ' ' || u.last_name),
		       d.license_number, d.current_cycle_hours
		FROM drivers d JOIN users u ON u.id = d.user_id
		WHERE d.id = $1`, id,
	).Scan(&d.ID, &d.UserID, &d.FullName, &d.LicenseNumber, &d.CurrentCycleHours)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching driver %d: %w", id, err)
	}
	return &d, nil
}

// EnsureDefault returns the demo driver, creating its backing account and
// driver row on first use. cycleHours seeds current_cycle_hours only at
// creation time.
func (s *DriverStore) EnsureDefault(ctx context.Context, cycleHours float64) (*Driver, error) {
	var userID int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name)
		VALUES ('demo-driver', '', '', 'Demo', 'Driver')
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING id`,
	).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("ensuring demo account: %w", err)
	}

	var d Driver
	err = s.db.QueryRow(ctx, `
		INSERT INTO drivers (user_id, license_number, current_cycle_hours)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, license_number, current_cycle_hours`,
		userID, defaultLicense, cycleHours,
	).Scan(&d.ID, &d.UserID, &d.LicenseNumber, &d.CurrentCycleHours)
	if err != nil {
		return nil, fmt.Errorf("ensuring demo driver: %w", err)
	}
	d.FullName = "Demo Driver"
	return &d, nil
}

// UpdateCycleHours sets the driver's running cycle total.
func (s *DriverStore) UpdateCycleHours(ctx context.Context, id int64, hours float64) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE drivers SET current_cycle_hours = $2 WHERE id = $1", id, hours)
	if err != nil {
		return fmt.Errorf("updating driver %d cycle hours: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
