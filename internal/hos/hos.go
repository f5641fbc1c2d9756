// Package hos implements the federal hours-of-service rules for
// property-carrying drivers: daily driving and on-duty caps, the 70-hour
// 8-day cycle, mandatory breaks, and the rest planning derived from them.
package hos

import (
	"errors"
	"fmt"
	"time"
)

// HOS limits for property-carrying drivers.
const (
	MaxDailyDrivingHours = 11.0
	MaxDailyOnDutyHours  = 14.0
	MaxCycleHours        = 70.0 // 8-day cycle
	BreakHours           = 0.5  // 30-minute break
	BreakAfterHours      = 8.0  // driving hours before the break is due
	MinOffDutyHours      = 10.0 // between shifts
	PickupDropoffHours   = 2.0  // 1 hour each end

	fuelStopIntervalMiles = 1000.0
)

// DutyStatus is a single ELD duty status.
type DutyStatus string

const (
	StatusOffDuty DutyStatus = "off_duty"
	StatusSleeper DutyStatus = "sleeper"
	StatusDriving DutyStatus = "driving"
	StatusOnDuty  DutyStatus = "on_duty"
)

// ValidDutyStatus reports whether s is one of the four ELD duty statuses.
func ValidDutyStatus(s DutyStatus) bool {
	switch s {
	case StatusOffDuty, StatusSleeper, StatusDriving, StatusOnDuty:
		return true
	}
	return false
}

// StopType classifies a planned stop along a route.
type StopType string

const (
	StopFuel    StopType = "fuel"
	StopRest    StopType = "rest"
	StopBreak   StopType = "break"
	StopPickup  StopType = "pickup"
	StopDropoff StopType = "dropoff"
)

// Coordinate is a [lat, lng] pair as stored in route polylines.
type Coordinate [2]float64

// Location is a point with an optional human-readable address.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

var (
	// ErrCycleExhausted is returned when the driver has no driving hours
	// left in the 70-hour cycle.
	ErrCycleExhausted = errors.New("no driving hours remain in 70-hour cycle")

	// ErrNonPositiveDuration is returned for log entries without a positive duration.
	ErrNonPositiveDuration = errors.New("duration must be positive")

	// ErrDailyDrivingExceeded is returned when a log entry would push the
	// day's driving total past the 11-hour limit.
	ErrDailyDrivingExceeded = fmt.Errorf("daily driving limit of %v hours exceeded", MaxDailyDrivingHours)

	// ErrDailyOnDutyExceeded is returned when a log entry would push the
	// day's on-duty total past the 14-hour limit.
	ErrDailyOnDutyExceeded = fmt.Errorf("daily on-duty limit of %v hours exceeded", MaxDailyOnDutyHours)

	// ErrZeroDistance is returned when a plan is requested for a route with
	// no distance to cover.
	ErrZeroDistance = errors.New("route distance must be positive")
)

// LogDraft is one planned duty-status segment of a daily log.
// Start is the offset from midnight of Date.
type LogDraft struct {
	Date    time.Time
	Status  DutyStatus
	Start   time.Duration
	Hours   float64
	Remarks string
}

// StartClock renders the segment start as HH:MM:SS.
func (l LogDraft) StartClock() string {
	return clock(l.Start)
}

// EndClock renders the segment end as HH:MM:SS, clamped to the day boundary
// when start + duration would spill into the next date.
func (l LogDraft) EndClock() string {
	end := l.Start + time.Duration(l.Hours*float64(time.Hour))
	if end >= 24*time.Hour {
		return "23:59:59"
	}
	return clock(end)
}

func clock(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// StopDraft is one planned stop along the route.
type StopDraft struct {
	Type             StopType
	Location         Location
	ScheduledArrival time.Time
	Hours            float64
	MilesFromStart   float64
	Mandatory        bool
	Reason           string
}

// PlanInput carries everything the planner needs about a trip.
type PlanInput struct {
	DistanceMiles  float64
	DriveHours     float64
	CycleUsedHours float64
	Route          []Coordinate
	StartDate      time.Time
}

// Summary aggregates the compliance figures for a planned trip.
type Summary struct {
	DriveHours      float64 `json:"total_drive_hours"`
	OnDutyHours     float64 `json:"total_on_duty_hours"`
	DaysRequired    int     `json:"days_required"`
	CycleHoursAfter float64 `json:"cycle_hours_used"`
}

// Plan is a complete day-by-day compliance plan for a trip.
type Plan struct {
	Stops     []StopDraft
	Logs      []LogDraft
	TotalDays int
	Summary   Summary
}

// RequiresMultipleDays reports whether driveHours cannot fit in the hours
// available today given the cycle usage so far.
func RequiresMultipleDays(driveHours, cycleUsedHours float64) bool {
	if driveHours <= 0 {
		return false
	}
	return driveHours > min(MaxDailyDrivingHours, MaxCycleHours-cycleUsedHours)
}

// ValidateEntry checks a single log entry against the HOS dailies.
// dailyDriving and dailyOnDuty are the totals already logged for the
// entry's date; driving counts toward both.
func ValidateEntry(status DutyStatus, hours, dailyDriving, dailyOnDuty float64) error {
	if hours <= 0 {
		return ErrNonPositiveDuration
	}
	if status == StatusDriving && dailyDriving+hours > MaxDailyDrivingHours {
		return ErrDailyDrivingExceeded
	}
	if (status == StatusDriving || status == StatusOnDuty) && dailyOnDuty+hours > MaxDailyOnDutyHours {
		return ErrDailyOnDutyExceeded
	}
	return nil
}

// BuildPlan produces the rest stops and daily duty logs needed to run the
// trip within HOS limits. The first day accounts for cycle hours already
// used; a 30-minute break is inserted after 8 hours of driving; a 10-hour
// rest separates consecutive driving days; a fuel stop is planned roughly
// every 1000 miles.
func BuildPlan(in PlanInput) (*Plan, error) {
	if in.DriveHours <= 0 {
		return nil, fmt.Errorf("drive hours must be positive, got %v", in.DriveHours)
	}
	// Progress along the route is expressed as miles covered over total
	// distance; a zero distance would make those fractions indefinite.
	if in.DistanceMiles <= 0 {
		return nil, ErrZeroDistance
	}

	available := min(MaxDailyDrivingHours, MaxCycleHours-in.CycleUsedHours)
	if available <= 0 {
		return nil, ErrCycleExhausted
	}

	days := int(ceilDiv(in.DriveHours, available))
	onDuty := in.DriveHours + PickupDropoffHours

	plan := &Plan{
		TotalDays: days,
		Summary: Summary{
			DriveHours:      in.DriveHours,
			OnDutyHours:     onDuty,
			DaysRequired:    days,
			CycleHoursAfter: in.CycleUsedHours + onDuty,
		},
	}

	startDate := in.StartDate
	if startDate.IsZero() {
		startDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	remaining := in.DriveHours
	covered := 0.0

	for day := 0; day < days; day++ {
		date := startDate.AddDate(0, 0, day)

		daily := min(remaining, MaxDailyDrivingHours)
		if day == 0 {
			daily = min(daily, max(0, MaxCycleHours-in.CycleUsedHours))
		}

		plan.Logs = append(plan.Logs, dailyLogs(date, daily, day == 0)...)

		if daily > BreakAfterHours {
			breakMiles := covered + (BreakAfterHours/in.DriveHours)*in.DistanceMiles
			plan.Stops = append(plan.Stops, StopDraft{
				Type:             StopBreak,
				Location:         Interpolate(in.Route, breakMiles/in.DistanceMiles),
				ScheduledArrival: date.Add(12 * time.Hour),
				Hours:            BreakHours,
				MilesFromStart:   breakMiles,
				Mandatory:        true,
				Reason:           "30-minute break required after 8 hours driving",
			})
		}

		// Fuel roughly every 1000 miles of progress.
		if covered > 0 && modf(covered, fuelStopIntervalMiles) < 200 {
			plan.Stops = append(plan.Stops, StopDraft{
				Type:             StopFuel,
				Location:         Interpolate(in.Route, covered/in.DistanceMiles),
				ScheduledArrival: date.Add(18 * time.Hour),
				Hours:            0.5,
				MilesFromStart:   covered,
				Reason:           "Fuel stop (1000+ miles)",
			})
		}

		remaining -= daily
		covered += (daily / in.DriveHours) * in.DistanceMiles

		if remaining > 0 {
			plan.Stops = append(plan.Stops, StopDraft{
				Type:             StopRest,
				Location:         Interpolate(in.Route, covered/in.DistanceMiles),
				ScheduledArrival: date.Add(22 * time.Hour),
				Hours:            MinOffDutyHours,
				MilesFromStart:   covered,
				Mandatory:        true,
				Reason:           fmt.Sprintf("Mandatory 10-hour rest before day %d", day+2),
			})
		}
	}

	return plan, nil
}

// dailyLogs generates the duty segments for a single day of driving.
func dailyLogs(date time.Time, driveHours float64, firstDay bool) []LogDraft {
	var logs []LogDraft

	if firstDay {
		logs = append(logs, LogDraft{
			Date:    date,
			Status:  StatusOnDuty,
			Start:   6 * time.Hour,
			Hours:   1.0,
			Remarks: "Pre-trip inspection and trip planning",
		})
	} else {
		logs = append(logs, LogDraft{
			Date:    date,
			Status:  StatusOffDuty,
			Start:   0,
			Hours:   MinOffDutyHours,
			Remarks: "Required 10-hour off-duty period",
		})
	}

	start := 10 * time.Hour
	if firstDay {
		start = 7 * time.Hour
	}

	if driveHours <= BreakAfterHours {
		return append(logs, LogDraft{
			Date:    date,
			Status:  StatusDriving,
			Start:   start,
			Hours:   driveHours,
			Remarks: "Driving to destination",
		})
	}

	return append(logs,
		LogDraft{
			Date:    date,
			Status:  StatusDriving,
			Start:   start,
			Hours:   BreakAfterHours,
			Remarks: "Driving (first 8 hours)",
		},
		LogDraft{
			Date:    date,
			Status:  StatusOffDuty,
			Start:   start + 8*time.Hour,
			Hours:   BreakHours,
			Remarks: "Mandatory 30-minute break",
		},
		LogDraft{
			Date:    date,
			Status:  StatusDriving,
			Start:   start + 8*time.Hour + 30*time.Minute,
			Hours:   driveHours - BreakAfterHours,
			Remarks: "Driving (after break)",
		},
	)
}

// Interpolate returns the point along route at the given progress (0.0–1.0).
// Progress outside the range clamps to the route endpoints.
func Interpolate(route []Coordinate, progress float64) Location {
	if len(route) == 0 {
		return Location{Address: "Route location"}
	}
	if progress <= 0 {
		c := route[0]
		return Location{Lat: c[0], Lng: c[1], Address: "Route location"}
	}
	if progress >= 1.0 {
		c := route[len(route)-1]
		return Location{Lat: c[0], Lng: c[1], Address: "Route location"}
	}

	idx := int(progress * float64(len(route)-1))
	c := route[idx]
	return Location{
		Lat:     c[0],
		Lng:     c[1],
		Address: fmt.Sprintf("Mile marker %d", int(progress*1000)),
	}
}

func ceilDiv(a, b float64) float64 {
	d := a / b
	if d == float64(int(d)) {
		return d
	}
	return float64(int(d) + 1)
}

func modf(a, b float64) float64 {
	for a >= b {
		a -= b
	}
	return a
}
