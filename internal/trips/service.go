// Package trips implements the trip lifecycle: planning a compliant trip
// from three locations, recording duty logs against it, and moving it
// through planned, active, completed, and cancelled.
package trips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lohun/driverlog/internal/hos"
	"github.com/lohun/driverlog/internal/routing"
	"github.com/lohun/driverlog/internal/store"
)

var (
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the trip's current state.
	ErrInvalidTransition = errors.New("invalid trip status transition")

	// ErrInvalidDutyStatus is returned for a log entry with an unknown duty status.
	ErrInvalidDutyStatus = errors.New("invalid duty status")
)

// tripStore is the subset of store.TripStore the service uses.
type tripStore interface {
	Insert(ctx context.Context, t *store.Trip) error
	Get(ctx context.Context, id int64) (*store.Trip, error)
	List(ctx context.Context) ([]*store.Trip, error)
	SetRoute(ctx context.Context, id int64, coords []hos.Coordinate, distanceMiles, durationHours float64) error
	SetStatus(ctx context.Context, id int64, status string, startAt, endAt *time.Time) error
	Delete(ctx context.Context, id int64) error
}

// driverStore is the subset of store.DriverStore the service uses.
type driverStore interface {
	Get(ctx context.Context, id int64) (*store.Driver, error)
	EnsureDefault(ctx context.Context, cycleHours float64) (*store.Driver, error)
	UpdateCycleHours(ctx context.Context, id int64, hours float64) error
}

// logStore is the subset of store.ELDLogStore the service uses.
type logStore interface {
	Insert(ctx context.Context, l *store.ELDLog) error
	ListByTrip(ctx context.Context, tripID int64) ([]*store.ELDLog, error)
	DailyDrivingHours(ctx context.Context, driverID int64, date time.Time) (float64, error)
	DailyOnDutyHours(ctx context.Context, driverID int64, date time.Time) (float64, error)
}

// stopStore is the subset of store.RestStopStore the service uses.
type stopStore interface {
	Insert(ctx context.Context, r *store.RestStop) error
	ListByTrip(ctx context.Context, tripID int64) ([]*store.RestStop, error)
}

// routeCalculator is satisfied by *routing.Client.
type routeCalculator interface {
	Directions(ctx context.Context, current, pickup, dropoff hos.Location) *routing.Route
}

// eventPublisher is satisfied by *events.Publisher.
type eventPublisher interface {
	Publish(ctx context.Context, eventType string, tripID, driverID int64)
}

// Event types emitted by the service. They mirror the subjects the events
// package publishes on; redeclared here so the service depends only on the
// publisher interface.
const (
	evtCreated   = "trip.created"
	evtStarted   = "trip.started"
	evtCompleted = "trip.completed"
	evtCancelled = "trip.cancelled"
	evtLogAdded  = "trip.log_added"
)

// Service plans and manages trips.
type Service struct {
	trips   tripStore
	drivers driverStore
	logs    logStore
	stops   stopStore
	router  routeCalculator
	events  eventPublisher
	now     func() time.Time
}

// NewService constructs a Service. The store, routing, and events types
// satisfy the interfaces directly.
func NewService(trips tripStore, drivers driverStore, logs logStore, stops stopStore, router routeCalculator, events eventPublisher) *Service {
	return &Service{
		trips:   trips,
		drivers: drivers,
		logs:    logs,
		stops:   stops,
		router:  router,
		events:  events,
		now:     time.Now,
	}
}

// CreateInput carries the three locations and cycle usage for a new trip.
type CreateInput struct {
	CurrentLocation       hos.Location `json:"current_location" binding:"required"`
	PickupLocation        hos.Location `json:"pickup_location" binding:"required"`
	DropoffLocation       hos.Location `json:"dropoff_location" binding:"required"`
	CurrentCycleUsedHours float64      `json:"current_cycle_used_hours"`
}

// Detail is a trip together with everything the planner produced for it.
type Detail struct {
	Trip                 *store.Trip       `json:"trip"`
	DriverInfo           *store.Driver     `json:"driver_info"`
	RestStops            []*store.RestStop `json:"rest_stops"`
	ELDLogs              []*store.ELDLog   `json:"eld_logs"`
	RequiresMultipleDays bool              `json:"requires_multiple_days"`
	Summary              *hos.Summary      `json:"summary,omitempty"`
	Instructions         []string          `json:"route_instructions,omitempty"`
}

// Create plans a new trip: it calculates the route, builds the day-by-day
// compliance plan, and persists the trip with its planned stops and duty
// logs. The demo driver is created on first use.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Detail, error) {
	driver, err := s.drivers.EnsureDefault(ctx, in.CurrentCycleUsedHours)
	if err != nil {
		return nil, fmt.Errorf("ensuring driver: %w", err)
	}

	trip := &store.Trip{
		DriverID:              driver.ID,
		Status:                store.TripPlanned,
		CurrentLocation:       in.CurrentLocation,
		PickupLocation:        in.PickupLocation,
		DropoffLocation:       in.DropoffLocation,
		CurrentCycleUsedHours: in.CurrentCycleUsedHours,
	}
	if err := s.trips.Insert(ctx, trip); err != nil {
		return nil, err
	}

	route := s.router.Directions(ctx, in.CurrentLocation, in.PickupLocation, in.DropoffLocation)
	if err := s.trips.SetRoute(ctx, trip.ID, route.Coordinates, route.DistanceMiles, route.DurationHours); err != nil {
		return nil, err
	}
	trip.RouteCoordinates = route.Coordinates
	trip.TotalDistanceMiles = &route.DistanceMiles
	trip.EstimatedDriveTimeHours = &route.DurationHours

	plan, err := hos.BuildPlan(hos.PlanInput{
		DistanceMiles:  route.DistanceMiles,
		DriveHours:     route.DurationHours,
		CycleUsedHours: in.CurrentCycleUsedHours,
		Route:          route.Coordinates,
		StartDate:      s.today(),
	})
	if err != nil {
		return nil, fmt.Errorf("planning trip %d: %w", trip.ID, err)
	}

	stops, err := s.persistStops(ctx, trip.ID, plan.Stops)
	if err != nil {
		return nil, err
	}
	logs, err := s.persistLogs(ctx, trip.ID, driver.ID, plan.Logs)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, evtCreated, trip.ID, driver.ID)
	slog.InfoContext(ctx, "trip created",
		"trip_id", trip.ID, "distance_miles", route.DistanceMiles, "days", plan.TotalDays)

	return &Detail{
		Trip:                 trip,
		DriverInfo:           driver,
		RestStops:            stops,
		ELDLogs:              logs,
		RequiresMultipleDays: trip.RequiresMultipleDays(),
		Summary:              &plan.Summary,
		Instructions:         route.Instructions,
	}, nil
}

func (s *Service) persistStops(ctx context.Context, tripID int64, drafts []hos.StopDraft) ([]*store.RestStop, error) {
	stops := make([]*store.RestStop, 0, len(drafts))
	for _, d := range drafts {
		stop := &store.RestStop{
			TripID:                 tripID,
			StopType:               string(d.Type),
			Location:               d.Location,
			ScheduledArrival:       d.ScheduledArrival,
			DurationHours:          d.Hours,
			DistanceFromStartMiles: d.MilesFromStart,
			IsMandatory:            d.Mandatory,
			HOSReason:              d.Reason,
		}
		if err := s.stops.Insert(ctx, stop); err != nil {
			return nil, fmt.Errorf("saving planned stop: %w", err)
		}
		stops = append(stops, stop)
	}
	return stops, nil
}

func (s *Service) persistLogs(ctx context.Context, tripID, driverID int64, drafts []hos.LogDraft) ([]*store.ELDLog, error) {
	logs := make([]*store.ELDLog, 0, len(drafts))
	for _, d := range drafts {
		end := d.EndClock()
		log := &store.ELDLog{
			TripID:        &tripID,
			DriverID:      driverID,
			LogDate:       d.Date,
			DutyStatus:    string(d.Status),
			StartTime:     d.StartClock(),
			EndTime:       &end,
			DurationHours: d.Hours,
			Remarks:       d.Remarks,
		}
		if err := s.logs.Insert(ctx, log); err != nil {
			return nil, fmt.Errorf("saving planned log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, nil
}

// Get returns a trip with its driver, planned stops, and duty logs.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	trip, err := s.trips.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	driver, err := s.drivers.Get(ctx, trip.DriverID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	stops, err := s.stops.ListByTrip(ctx, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.logs.ListByTrip(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Detail{
		Trip:                 trip,
		DriverInfo:           driver,
		RestStops:            stops,
		ELDLogs:              logs,
		RequiresMultipleDays: trip.RequiresMultipleDays(),
	}, nil
}

// List returns all trips, newest first.
func (s *Service) List(ctx context.Context) ([]*store.Trip, error) {
	return s.trips.List(ctx)
}

// Delete removes a trip and its dependent rows.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.trips.Delete(ctx, id)
}

// Logs returns a trip's duty logs. The trip must exist.
func (s *Service) Logs(ctx context.Context, tripID int64) ([]*store.ELDLog, error) {
	if _, err := s.trips.Get(ctx, tripID); err != nil {
		return nil, err
	}
	return s.logs.ListByTrip(ctx, tripID)
}

// LogInput is a manually recorded duty-status segment.
type LogInput struct {
	DutyStatus    string        `json:"duty_status" binding:"required"`
	DurationHours float64       `json:"duration_hours" binding:"required"`
	Remarks       string        `json:"remarks"`
	Location      *hos.Location `json:"location,omitempty"`
}

// AddLog validates and records a duty-status entry against the trip for
// today's date. Entries are checked against the 11-hour driving and 14-hour
// on-duty daily limits including what the driver has already logged.
func (s *Service) AddLog(ctx context.Context, tripID int64, in LogInput) (*store.ELDLog, error) {
	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}

	status := hos.DutyStatus(in.DutyStatus)
	if !hos.ValidDutyStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDutyStatus, in.DutyStatus)
	}

	today := s.today()
	dailyDriving, err := s.logs.DailyDrivingHours(ctx, trip.DriverID, today)
	if err != nil {
		return nil, err
	}
	dailyOnDuty, err := s.logs.DailyOnDutyHours(ctx, trip.DriverID, today)
	if err != nil {
		return nil, err
	}
	if err := hos.ValidateEntry(status, in.DurationHours, dailyDriving, dailyOnDuty); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	draft := hos.LogDraft{
		Date:   today,
		Status: status,
		Start:  now.Sub(today),
		Hours:  in.DurationHours,
	}
	end := draft.EndClock()

	log := &store.ELDLog{
		TripID:        &tripID,
		DriverID:      trip.DriverID,
		LogDate:       today,
		DutyStatus:    in.DutyStatus,
		StartTime:     draft.StartClock(),
		EndTime:       &end,
		DurationHours: in.DurationHours,
		Location:      in.Location,
		Remarks:       in.Remarks,
	}
	if err := s.logs.Insert(ctx, log); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, evtLogAdded, tripID, trip.DriverID)
	return log, nil
}

// Start moves a planned trip to active and stamps the start time.
func (s *Service) Start(ctx context.Context, id int64) (*store.Trip, error) {
	trip, err := s.trips.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if trip.Status != store.TripPlanned {
		return nil, fmt.Errorf("%w: cannot start a %s trip", ErrInvalidTransition, trip.Status)
	}

	startAt := s.now().UTC()
	if err := s.trips.SetStatus(ctx, id, store.TripActive, &startAt, nil); err != nil {
		return nil, err
	}
	trip.Status = store.TripActive
	trip.TripStartTime = &startAt

	s.events.Publish(ctx, evtStarted, id, trip.DriverID)
	return trip, nil
}

// End completes a trip, stamps the end time, and rolls the trip's on-duty
// hours forward into the driver's cycle total. A cancelled trip cannot be
// completed.
func (s *Service) End(ctx context.Context, id int64) (*store.Trip, error) {
	trip, err := s.trips.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if trip.Status == store.TripCancelled {
		return nil, fmt.Errorf("%w: cannot complete a cancelled trip", ErrInvalidTransition)
	}

	endAt := s.now().UTC()
	if err := s.trips.SetStatus(ctx, id, store.TripCompleted, nil, &endAt); err != nil {
		return nil, err
	}
	trip.Status = store.TripCompleted
	trip.TripEndTime = &endAt

	if trip.EstimatedDriveTimeHours != nil {
		cycle := trip.CurrentCycleUsedHours + *trip.EstimatedDriveTimeHours + hos.PickupDropoffHours
		if err := s.drivers.UpdateCycleHours(ctx, trip.DriverID, cycle); err != nil {
			slog.WarnContext(ctx, "updating driver cycle hours",
				"driver_id", trip.DriverID, "trip_id", id, "error", err)
		}
	}

	s.events.Publish(ctx, evtCompleted, id, trip.DriverID)
	return trip, nil
}

// Cancel cancels a trip. A completed trip cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) (*store.Trip, error) {
	trip, err := s.trips.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if trip.Status == store.TripCompleted {
		return nil, fmt.Errorf("%w: cannot cancel a completed trip", ErrInvalidTransition)
	}

	endAt := s.now().UTC()
	if err := s.trips.SetStatus(ctx, id, store.TripCancelled, nil, &endAt); err != nil {
		return nil, err
	}
	trip.Status = store.TripCancelled
	trip.TripEndTime = &endAt

	s.events.Publish(ctx, evtCancelled, id, trip.DriverID)
	return trip, nil
}

// today returns midnight UTC of the current day.
func (s *Service) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}
