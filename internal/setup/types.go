// Package setup runs the one-shot provisioning sequence that prepares a
// driverlog deployment: database connectivity, schema migrations, the
// administrative account, the trip-event stream, and static assets.
package setup

// Status values used across SetupResult and PhaseResult.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusInProgress = "in-progress"
	StatusSkipped    = "skipped"
)

// Phase names, in execution order. Later phases assume the earlier ones:
// migrations need the database, the admin account and stream provisioning
// need the migrated schema.
const (
	PhaseDatabase = "database"
	PhaseMigrate  = "migrate"
	PhaseAdmin    = "admin"
	PhaseStreams  = "streams"
	PhaseStatic   = "static"
)

// phaseOrder drives the sequential run and the skipped-phase reporting.
var phaseOrder = []string{PhaseDatabase, PhaseMigrate, PhaseAdmin, PhaseStreams, PhaseStatic}

// SetupResult is the aggregate result of a full setup run. Phases preserve
// execution order.
type SetupResult struct {
	Status string        `json:"status"` // "ok", "error", "in-progress"
	Phases []PhaseResult `json:"phases"`
}

// PhaseResult represents the outcome of a single setup phase.
type PhaseResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "error", "skipped"
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ProbeResult is returned by RunDeepHealth for each dependency.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}
