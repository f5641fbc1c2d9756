package store

import (
	"time"

	"github.com/lohun/driverlog/internal/hos"
)

// Trip lifecycle states.
const (
	TripPlanned   = "planned"
	TripActive    = "active"
	TripCompleted = "completed"
	TripCancelled = "cancelled"
)

// User is an account; setup provisions the administrative one.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Driver is a licensed driver with a running 70-hour cycle total.
type Driver struct {
	ID                int64   `json:"id"`
	UserID            int64   `json:"-"`
	FullName          string  `json:"full_name"`
	LicenseNumber     string  `json:"license_number"`
	CurrentCycleHours float64 `json:"current_cycle_hours"`
}

// Trip is one planned or running haul.
type Trip struct {
	ID                      int64            `json:"id"`
	DriverID                int64            `json:"driver"`
	Status                  string           `json:"status"`
	CurrentLocation         hos.Location     `json:"current_location"`
	PickupLocation          hos.Location     `json:"pickup_location"`
	DropoffLocation         hos.Location     `json:"dropoff_location"`
	TotalDistanceMiles      *float64         `json:"total_distance_miles"`
	EstimatedDriveTimeHours *float64         `json:"estimated_drive_time_hours"`
	CurrentCycleUsedHours   float64          `json:"current_cycle_used_hours"`
	RouteCoordinates        []hos.Coordinate `json:"route_coordinates,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
	TripStartTime           *time.Time       `json:"trip_start_time"`
	TripEndTime             *time.Time       `json:"trip_end_time"`
}

// RequiresMultipleDays reports whether the trip cannot be driven in the
// hours available today.
func (t *Trip) RequiresMultipleDays() bool {
	if t.EstimatedDriveTimeHours == nil {
		return false
	}
	return hos.RequiresMultipleDays(*t.EstimatedDriveTimeHours, t.CurrentCycleUsedHours)
}

// ELDLog is one duty-status segment of a driver's daily record.
type ELDLog struct {
	ID            int64         `json:"id"`
	TripID        *int64        `json:"trip,omitempty"`
	DriverID      int64         `json:"driver"`
	LogDate       time.Time     `json:"log_date"`
	DutyStatus    string        `json:"duty_status"`
	StartTime     string        `json:"start_time"`
	EndTime       *string       `json:"end_time"`
	DurationHours float64       `json:"duration_hours"`
	Location      *hos.Location `json:"location,omitempty"`
	Remarks       string        `json:"remarks"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// RestStop is a planned stop along a trip's route.
type RestStop struct {
	ID                     int64        `json:"id"`
	TripID                 int64        `json:"trip"`
	StopType               string       `json:"stop_type"`
	Location               hos.Location `json:"location"`
	ScheduledArrival       time.Time    `json:"scheduled_arrival"`
	DurationHours          float64      `json:"duration_hours"`
	DistanceFromStartMiles float64      `json:"distance_from_start_miles"`
	IsMandatory            bool         `json:"is_mandatory"`
	HOSReason              string       `json:"hos_reason"`
	CreatedAt              time.Time    `json:"created_at"`
}
