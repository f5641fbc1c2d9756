package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lohun/driverlog/internal/hos"
	"github.com/lohun/driverlog/internal/routing"
	"github.com/lohun/driverlog/internal/setup"
	"github.com/lohun/driverlog/internal/store"
	"github.com/lohun/driverlog/internal/trips"
)

// tripService is the subset of *trips.Service used by the HTTP handlers.
// Declaring it as an interface allows test doubles to be injected.
type tripService interface {
	Create(ctx context.Context, in trips.CreateInput) (*trips.Detail, error)
	Get(ctx context.Context, id int64) (*trips.Detail, error)
	List(ctx context.Context) ([]*store.Trip, error)
	Delete(ctx context.Context, id int64) error
	Logs(ctx context.Context, tripID int64) ([]*store.ELDLog, error)
	AddLog(ctx context.Context, tripID int64, in trips.LogInput) (*store.ELDLog, error)
	Start(ctx context.Context, id int64) (*store.Trip, error)
	End(ctx context.Context, id int64) (*store.Trip, error)
	Cancel(ctx context.Context, id int64) (*store.Trip, error)
}

// setupService is the subset of *setup.Provisioner used by the HTTP handlers.
type setupService interface {
	Run(ctx context.Context) (*setup.SetupResult, error)
	RunDeepHealth(ctx context.Context) map[string]setup.ProbeResult
	IsReady() bool
	IsSetupInProgress() bool
}

// geocoder is satisfied by *routing.CachedGeocoder.
type geocoder interface {
	Geocode(ctx context.Context, address string) (hos.Location, error)
}

// addressPattern restricts geocode input to letters, digits, spaces, commas,
// periods, and hyphens.
var addressPattern = regexp.MustCompile(`^[A-Za-z0-9\s,.\-]+$`)

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	trips    tripService
	setup    setupService
	geocoder geocoder
}

// tripID parses the :id path parameter. On failure it writes a 400 and
// returns false.
func tripID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip id"})
		return 0, false
	}
	return id, true
}

// CreateTrip handles POST /api/v1/trips.
// It plans the route and compliance schedule and returns the full trip detail.
func (h *Handler) CreateTrip(c *gin.Context) {
	var in trips.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	detail, err := h.trips.Create(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, hos.ErrCycleExhausted) || errors.Is(err, hos.ErrZeroDistance) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// ListTrips handles GET /api/v1/trips.
func (h *Handler) ListTrips(c *gin.Context) {
	list, err := h.trips.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []*store.Trip{}
	}
	c.JSON(http.StatusOK, list)
}

// GetTrip handles GET /api/v1/trips/:id.
func (h *Handler) GetTrip(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}

	detail, err := h.trips.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// DeleteTrip handles DELETE /api/v1/trips/:id.
func (h *Handler) DeleteTrip(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}

	err := h.trips.Delete(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// TripLogs handles GET /api/v1/trips/:id/logs.
func (h *Handler) TripLogs(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}

	logs, err := h.trips.Logs(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []*store.ELDLog{}
	}
	c.JSON(http.StatusOK, logs)
}

// AddTripLog handles POST /api/v1/trips/:id/logs.
// Entries are validated against the hours-of-service daily limits.
func (h *Handler) AddTripLog(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}

	var in trips.LogInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log, err := h.trips.AddLog(c.Request.Context(), id, in)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
	case errors.Is(err, trips.ErrInvalidDutyStatus),
		errors.Is(err, hos.ErrNonPositiveDuration),
		errors.Is(err, hos.ErrDailyDrivingExceeded),
		errors.Is(err, hos.ErrDailyOnDutyExceeded):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, log)
	}
}

// transition runs one of the Start/End/Cancel service calls and writes the
// shared response shape.
func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id int64) (*store.Trip, error)) {
	id, ok := tripID(c)
	if !ok {
		return
	}

	trip, err := fn(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
	case errors.Is(err, trips.ErrInvalidTransition):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, trip)
	}
}

// StartTrip handles POST /api/v1/trips/:id/start.
func (h *Handler) StartTrip(c *gin.Context) {
	h.transition(c, h.trips.Start)
}

// EndTrip handles POST /api/v1/trips/:id/end.
func (h *Handler) EndTrip(c *gin.Context) {
	h.transition(c, h.trips.End)
}

// CancelTrip handles POST /api/v1/trips/:id/cancel.
func (h *Handler) CancelTrip(c *gin.Context) {
	h.transition(c, h.trips.Cancel)
}

// geocodeRequest is the body of POST /api/v1/geocode.
type geocodeRequest struct {
	Address string `json:"address" binding:"required"`
}

// Geocode handles POST /api/v1/geocode.
// Addresses outside the allowed character set are treated as not found, the
// same as addresses the provider cannot resolve.
func (h *Handler) Geocode(c *gin.Context) {
	var req geocodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	if !addressPattern.MatchString(req.Address) {
		c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
		return
	}

	loc, err := h.geocoder.Geocode(c.Request.Context(), req.Address)
	if errors.Is(err, routing.ErrNoResult) {
		c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, loc)
}

// Setup handles POST /api/v1/setup.
// It returns 202 immediately when a new setup run is started, or 409 if one
// is already in progress. The actual setup work runs in a background goroutine.
func (h *Handler) Setup(c *gin.Context) {
	if h.setup.IsSetupInProgress() {
		c.JSON(http.StatusConflict, gin.H{"status": "in-progress"})
		return
	}
	go func() {
		// The in-progress check above is advisory; the CAS inside Run is the
		// real guard. A run that loses the race is rejected there.
		if _, err := h.setup.Run(context.Background()); err != nil { //nolint:contextcheck
			slog.Warn("background setup run rejected", "error", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Health handles GET /health.
// It always returns 200 — this is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"mode":   "shallow",
	})
}

// DeepHealth handles GET /health/deep.
// It probes all 4 backing services and returns 200 only when every probe is OK.
func (h *Handler) DeepHealth(c *gin.Context) {
	probes := h.setup.RunDeepHealth(c.Request.Context())

	allOK := true
	for _, p := range probes {
		if !p.OK {
			allOK = false
			break
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !allOK {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":       status,
		"dependencies": probes,
	})
}

// Ready handles GET /ready.
// It returns 200 only after a successful setup run; 503 otherwise.
func (h *Handler) Ready(c *gin.Context) {
	if h.setup.IsReady() {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
}
