package hos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRoute = []Coordinate{
	{41.8781, -87.6298},  // Chicago
	{41.2565, -95.9345},  // Omaha
	{39.7392, -104.9903}, // Denver
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildPlan_SingleDay(t *testing.T) {
	t.Parallel()

	plan, err := BuildPlan(PlanInput{
		DistanceMiles:  300,
		DriveHours:     6,
		CycleUsedHours: 10,
		Route:          testRoute,
		StartDate:      date(2026, 3, 2),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, plan.TotalDays)
	assert.Equal(t, 1, plan.Summary.DaysRequired)
	assert.Equal(t, 6.0, plan.Summary.DriveHours)
	assert.Equal(t, 8.0, plan.Summary.OnDutyHours) // +2h pickup/dropoff
	assert.Equal(t, 18.0, plan.Summary.CycleHoursAfter)

	// Short day: pre-trip inspection then one continuous driving block.
	require.Len(t, plan.Logs, 2)
	assert.Equal(t, StatusOnDuty, plan.Logs[0].Status)
	assert.Equal(t, "Pre-trip inspection and trip planning", plan.Logs[0].Remarks)
	assert.Equal(t, StatusDriving, plan.Logs[1].Status)
	assert.Equal(t, 6.0, plan.Logs[1].Hours)

	// No break needed under 8 driving hours, no further days, no rest stop.
	assert.Empty(t, plan.Stops)
}

func TestBuildPlan_LongDayInsertsBreak(t *testing.T) {
	t.Parallel()

	plan, err := BuildPlan(PlanInput{
		DistanceMiles:  550,
		DriveHours:     10,
		CycleUsedHours: 0,
		Route:          testRoute,
		StartDate:      date(2026, 3, 2),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, plan.TotalDays)

	// 10 driving hours split 8 / break / 2.
	require.Len(t, plan.Logs, 4)
	assert.Equal(t, StatusDriving, plan.Logs[1].Status)
	assert.Equal(t, 8.0, plan.Logs[1].Hours)
	assert.Equal(t, StatusOffDuty, plan.Logs[2].Status)
	assert.Equal(t, BreakHours, plan.Logs[2].Hours)
	assert.Equal(t, StatusDriving, plan.Logs[3].Status)
	assert.Equal(t, 2.0, plan.Logs[3].Hours)

	require.Len(t, plan.Stops, 1)
	assert.Equal(t, StopBreak, plan.Stops[0].Type)
	assert.True(t, plan.Stops[0].Mandatory)
}

func TestBuildPlan_MultiDayInsertsRest(t *testing.T) {
	t.Parallel()

	plan, err := BuildPlan(PlanInput{
		DistanceMiles:  1200,
		DriveHours:     22,
		CycleUsedHours: 0,
		Route:          testRoute,
		StartDate:      date(2026, 3, 2),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, plan.TotalDays)

	var rests, breaks int
	for _, s := range plan.Stops {
		switch s.Type {
		case StopRest:
			rests++
			assert.Equal(t, MinOffDutyHours, s.Hours)
			assert.True(t, s.Mandatory)
		case StopBreak:
			breaks++
		}
	}
	assert.Equal(t, 1, rests, "one overnight rest between the two days")
	assert.Equal(t, 2, breaks, "both days exceed 8 driving hours")

	// Day two starts with the mandatory off-duty period.
	day2 := plan.Logs[4]
	assert.Equal(t, date(2026, 3, 3), day2.Date)
	assert.Equal(t, StatusOffDuty, day2.Status)
	assert.Equal(t, MinOffDutyHours, day2.Hours)
}

func TestBuildPlan_FirstDayLimitedByCycle(t *testing.T) {
	t.Parallel()

	// Only 4 cycle hours left: an 8-hour trip needs two days.
	plan, err := BuildPlan(PlanInput{
		DistanceMiles:  440,
		DriveHours:     8,
		CycleUsedHours: 66,
		Route:          testRoute,
		StartDate:      date(2026, 3, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, plan.TotalDays)
}

func TestBuildPlan_Errors(t *testing.T) {
	t.Parallel()

	_, err := BuildPlan(PlanInput{DriveHours: 0})
	assert.Error(t, err)

	_, err = BuildPlan(PlanInput{DistanceMiles: 300, DriveHours: 5, CycleUsedHours: 70})
	assert.ErrorIs(t, err, ErrCycleExhausted)
}

func TestBuildPlan_ZeroDistanceRejected(t *testing.T) {
	t.Parallel()

	// More than 8 drive hours forces the break-stop placement, which divides
	// by the total distance; zero distance must be rejected up front.
	_, err := BuildPlan(PlanInput{
		DistanceMiles: 0,
		DriveHours:    9,
		Route:         testRoute,
		StartDate:     date(2026, 3, 2),
	})
	assert.ErrorIs(t, err, ErrZeroDistance)
}

func TestRequiresMultipleDays(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		driveHours float64
		cycleUsed  float64
		want       bool
	}{
		{"fits in one day", 8, 0, false},
		{"zero drive time", 0, 50, false},
		{"over daily limit", 12, 0, true},
		{"cycle nearly spent", 6, 66, true},
		{"exactly at limit", 11, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RequiresMultipleDays(tt.driveHours, tt.cycleUsed))
		})
	}
}

func TestValidateEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		status       DutyStatus
		hours        float64
		dailyDriving float64
		dailyOnDuty  float64
		wantErr      error
	}{
		{"valid driving entry", StatusDriving, 4, 5, 6, nil},
		{"valid non-driving entry", StatusOnDuty, 3, 11, 11, nil},
		{"zero duration", StatusDriving, 0, 0, 0, ErrNonPositiveDuration},
		{"negative duration", StatusOffDuty, -1, 0, 0, ErrNonPositiveDuration},
		{"driving cap exceeded", StatusDriving, 4, 8, 8, ErrDailyDrivingExceeded},
		{"driving exactly at cap", StatusDriving, 3, 8, 8, nil},
		{"on-duty cap exceeded", StatusOnDuty, 3, 0, 12, ErrDailyOnDutyExceeded},
		{"driving past on-duty cap", StatusDriving, 2, 5, 13, ErrDailyOnDutyExceeded},
		{"off-duty ignores the caps", StatusOffDuty, 5, 11, 14, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateEntry(tt.status, tt.hours, tt.dailyDriving, tt.dailyOnDuty)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLogDraft_EndClockClampsAtMidnight(t *testing.T) {
	t.Parallel()

	l := LogDraft{Start: 20 * time.Hour, Hours: 6}
	assert.Equal(t, "20:00:00", l.StartClock())
	assert.Equal(t, "23:59:59", l.EndClock())

	l = LogDraft{Start: 7 * time.Hour, Hours: 2.5}
	assert.Equal(t, "09:30:00", l.EndClock())
}

func TestInterpolate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Location{Address: "Route location"}, Interpolate(nil, 0.5))

	start := Interpolate(testRoute, 0)
	assert.Equal(t, testRoute[0][0], start.Lat)
	assert.Equal(t, testRoute[0][1], start.Lng)

	end := Interpolate(testRoute, 1.5)
	assert.Equal(t, testRoute[2][0], end.Lat)

	mid := Interpolate(testRoute, 0.5)
	assert.Equal(t, testRoute[1][0], mid.Lat)
	assert.Equal(t, "Mile marker 500", mid.Address)
}
