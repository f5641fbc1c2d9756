package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// RestStopStore persists planned stops.
type RestStopStore struct {
	db querier
}

// NewRestStopStore returns a RestStopStore over pool.
func NewRestStopStore(pool *Pool) *RestStopStore {
	return &RestStopStore{db: pool}
}

// Insert stores a planned stop and fills in its ID and CreatedAt.
func (s *RestStopStore) Insert(ctx context.Context, r *RestStop) error {
	location, err := json.Marshal(r.Location)
	if err != nil {
		return fmt.Errorf("encoding stop location: %w", err)
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO rest_stops (trip_id, stop_type, location, scheduled_arrival,
		                        duration_hours, distance_from_start_miles, is_mandatory, hos_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		r.TripID, r.StopType, location, r.ScheduledArrival,
		r.DurationHours, r.DistanceFromStartMiles, r.IsMandatory, r.HOSReason,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting rest stop: %w", err)
	}
	return nil
}

// ListByTrip returns a trip's stops ordered by distance from the start.
func (s *RestStopStore) ListByTrip(ctx context.Context, tripID int64) ([]*RestStop, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, stop_type, location, scheduled_arrival, duration_hours,
		       distance_from_start_miles, is_mandatory, hos_reason, created_at
		FROM rest_stops
		WHERE trip_id = $1
		ORDER BY distance_from_start_miles`,
		tripID)
	if err != nil {
		return nil, fmt.Errorf("listing stops for trip %d: %w", tripID, err)
	}
	defer rows.Close()

	var stops []*RestStop
	for rows.Next() {
		var (
			r        RestStop
			location []byte
		)
		err := rows.Scan(&r.ID, &r.TripID, &r.StopType, &location, &r.ScheduledArrival,
			&r.DurationHours, &r.DistanceFromStartMiles, &r.IsMandatory, &r.HOSReason,
			&r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning rest stop: %w", err)
		}
		if err := json.Unmarshal(location, &r.Location); err != nil {
			return nil, fmt.Errorf("decoding stop location: %w", err)
		}
		stops = append(stops, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rest stops: %w", err)
	}
	return stops, nil
}
