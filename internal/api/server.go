// Package api exposes the trip-planning HTTP API and the setup and health
// endpoints around it.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router wraps a configured Gin engine and exposes it as an http.Handler.
type Router struct {
	engine *gin.Engine
}

// NewRouter constructs a Router with the full middleware chain and all routes
// registered. The middleware order:
//  1. Recovery — panic → 500
//  2. Tracing — trace context per request
//  3. RequestLogger — structured request/response logging
//
// staticRoot, when non-empty, is served under /static — the directory the
// setup static phase populates.
func NewRouter(t tripService, s setupService, g geocoder, staticRoot string) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(Recovery(slog.Default()))
	engine.Use(Tracing("driverlog"))
	engine.Use(RequestLogger(slog.Default()))

	h := &Handler{trips: t, setup: s, geocoder: g}

	v1 := engine.Group("/api/v1")
	v1.POST("/trips", h.CreateTrip)
	v1.GET("/trips", h.ListTrips)
	v1.GET("/trips/:id", h.GetTrip)
	v1.DELETE("/trips/:id", h.DeleteTrip)
	v1.GET("/trips/:id/logs", h.TripLogs)
	v1.POST("/trips/:id/logs", h.AddTripLog)
	v1.POST("/trips/:id/start", h.StartTrip)
	v1.POST("/trips/:id/end", h.EndTrip)
	v1.POST("/trips/:id/cancel", h.CancelTrip)
	v1.POST("/geocode", h.Geocode)
	v1.POST("/setup", h.Setup)

	engine.GET("/health", h.Health)
	engine.GET("/health/deep", h.DeepHealth)
	engine.GET("/ready", h.Ready)

	if staticRoot != "" {
		engine.Static("/static", staticRoot)
	}

	return &Router{engine: engine}
}

// Handler returns the underlying http.Handler for use with net/http servers.
func (r *Router) Handler() http.Handler {
	return r.engine
}
