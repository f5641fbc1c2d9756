package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lohun/driverlog/internal/hos"
)

// ELDLogStore persists duty-status log segments.
type ELDLogStore struct {
	db querier
}

// NewELDLogStore returns an ELDLogStore over pool.
func NewELDLogStore(pool *Pool) *ELDLogStore {
	return &ELDLogStore{db: pool}
}

// Insert stores a log segment and fills in its ID and timestamps.
func (s *ELDLogStore) Insert(ctx context.Context, l *ELDLog) error {
	var location []byte
	if l.Location != nil {
		var err error
		location, err = json.Marshal(l.Location)
		if err != nil {
			return fmt.Errorf("encoding log location: %w", err)
		}
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO eld_logs (trip_id, driver_id, log_date, duty_status,
		                      start_time, end_time, duration_hours, location, remarks)
		VALUES ($1, $2, $3, $4, $5::time, $6::time, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		l.TripID, l.DriverID, l.LogDate, l.DutyStatus,
		l.StartTime, l.EndTime, l.DurationHours, location, l.Remarks,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting eld log: %w", err)
	}
	return nil
}

const logColumns = `id, trip_id, driver_id, log_date, duty_status,
	start_time::text, end_time::text, duration_hours, location, remarks, created_at, updated_at`

// ListByTrip returns a trip's log segments ordered by date then start time.
func (s *ELDLogStore) ListByTrip(ctx context.Context, tripID int64) ([]*ELDLog, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+logColumns+" FROM eld_logs WHERE trip_id = $1 ORDER BY log_date, start_time",
		tripID)
	if err != nil {
		return nil, fmt.Errorf("listing logs for trip %d: %w", tripID, err)
	}
	defer rows.Close()

	var logs []*ELDLog
	for rows.Next() {
		var (
			l        ELDLog
			location []byte
		)
		err := rows.Scan(&l.ID, &l.TripID, &l.DriverID, &l.LogDate, &l.DutyStatus,
			&l.StartTime, &l.EndTime, &l.DurationHours, &location, &l.Remarks,
			&l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning eld log: %w", err)
		}
		if location != nil {
			l.Location = &hos.Location{}
			if err := json.Unmarshal(location, l.Location); err != nil {
				return nil, fmt.Errorf("decoding log location: %w", err)
			}
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating eld logs: %w", err)
	}
	return logs, nil
}

// DailyDrivingHours sums the driving hours a driver has logged for one date.
func (s *ELDLogStore) DailyDrivingHours(ctx context.Context, driverID int64, date time.Time) (float64, error) {
	var total float64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(sum(duration_hours), 0)
		FROM eld_logs
		WHERE driver_id = $1 AND log_date = $2 AND duty_status = 'driving'`,
		driverID, date,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing daily driving hours: %w", err)
	}
	return total, nil
}

// DailyOnDutyHours sums the on-duty hours (driving plus on-duty-not-driving)
// a driver has logged for one date.
func (s *ELDLogStore) DailyOnDutyHours(ctx context.Context, driverID int64, date time.Time) (float64, error) {
	var total float64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(sum(duration_hours), 0)
		FROM eld_logs
		WHERE driver_id = $1 AND log_date = $2 AND duty_status IN ('driving', 'on_duty')`,
		driverID, date,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing daily on-duty hours: %w", err)
	}
	return total, nil
}
