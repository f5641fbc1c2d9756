package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lohun/driverlog/internal/hos"
)

// TripStore persists trips.
type TripStore struct {
	db querier
}

// NewTripStore returns a TripStore over pool.
func NewTripStore(pool *Pool) *TripStore {
	return &TripStore{db: pool}
}

// Insert stores a new planned trip and fills in its ID and CreatedAt.
func (s *TripStore) Insert(ctx context.Context, t *Trip) error {
	current, err := json.Marshal(t.CurrentLocation)
	if err != nil {
		return fmt.Errorf("encoding current location: %w", err)
	}
	pickup, err := json.Marshal(t.PickupLocation)
	if err != nil {
		return fmt.Errorf("encoding pickup location: %w", err)
	}
	dropoff, err := json.Marshal(t.DropoffLocation)
	if err != nil {
		return fmt.Errorf("encoding dropoff location: %w", err)
	}

	if t.Status == "" {
		t.Status = TripPlanned
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO trips (driver_id, status, current_location, pickup_location,
		                   dropoff_location, current_cycle_used_hours)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		t.DriverID, t.Status, current, pickup, dropoff, t.CurrentCycleUsedHours,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting trip: %w", err)
	}
	return nil
}

const tripColumns = `id, driver_id, status, current_location, pickup_location,
	dropoff_location, total_distance_miles, estimated_drive_time_hours,
	current_cycle_used_hours, route_coordinates, created_at, trip_start_time, trip_end_time`

func scanTrip(row pgx.Row) (*Trip, error) {
	var (
		t                        Trip
		current, pickup, dropoff []byte
		route                    []byte
	)
	err := row.Scan(&t.ID, &t.DriverID, &t.Status, &current, &pickup, &dropoff,
		&t.TotalDistanceMiles, &t.EstimatedDriveTimeHours, &t.CurrentCycleUsedHours,
		&route, &t.CreatedAt, &t.TripStartTime, &t.TripEndTime)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(current, &t.CurrentLocation); err != nil {
		return nil, fmt.Errorf("decoding current location: %w", err)
	}
	if err := json.Unmarshal(pickup, &t.PickupLocation); err != nil {
		return nil, fmt.Errorf("decoding pickup location: %w", err)
	}
	if err := json.Unmarshal(dropoff, &t.DropoffLocation); err != nil {
		return nil, fmt.Errorf("decoding dropoff location: %w", err)
	}
	if route != nil {
		if err := json.Unmarshal(route, &t.RouteCoordinates); err != nil {
			return nil, fmt.Errorf("decoding route coordinates: %w", err)
		}
	}
	return &t, nil
}

// Get fetches a trip by id.
func (s *TripStore) Get(ctx context.Context, id int64) (*Trip, error) {
	t, err := scanTrip(s.db.QueryRow(ctx,
		"SELECT "+tripColumns+" FROM trips WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching trip %d: %w", id, err)
	}
	return t, nil
}

// List returns all trips, newest first.
func (s *TripStore) List(ctx context.Context) ([]*Trip, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+tripColumns+" FROM trips ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing trips: %w", err)
	}
	defer rows.Close()

	var trips []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trip: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trips: %w", err)
	}
	return trips, nil
}

// SetRoute stores the calculated route geometry, distance, and duration.
func (s *TripStore) SetRoute(ctx context.Context, id int64, coords []hos.Coordinate, distanceMiles, durationHours float64) error {
	route, err := json.Marshal(coords)
	if err != nil {
		return fmt.Errorf("encoding route coordinates: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET route_coordinates = $2, total_distance_miles = $3, estimated_drive_time_hours = $4
		WHERE id = $1`,
		id, route, distanceMiles, durationHours)
	if err != nil {
		return fmt.Errorf("updating trip %d route: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus transitions the trip and stamps the start or end time when given.
func (s *TripStore) SetStatus(ctx context.Context, id int64, status string, startAt, endAt *time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $2,
		    trip_start_time = COALESCE($3, trip_start_time),
		    trip_end_time = COALESCE($4, trip_end_time)
		WHERE id = $1`,
		id, status, startAt, endAt)
	if err != nil {
		return fmt.Errorf("updating trip %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a trip; its logs and stops cascade.
func (s *TripStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM trips WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting trip %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
