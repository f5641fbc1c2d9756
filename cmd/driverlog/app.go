package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/lohun/driverlog/internal/api"
	"github.com/lohun/driverlog/internal/config"
	"github.com/lohun/driverlog/internal/events"
	"github.com/lohun/driverlog/internal/routing"
	"github.com/lohun/driverlog/internal/setup"
	"github.com/lohun/driverlog/internal/store"
	"github.com/lohun/driverlog/internal/telemetry"
	"github.com/lohun/driverlog/internal/trips"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE and referenced by
// server.go and setup.go.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider
	pool         *store.Pool
	provisioner  *setup.Provisioner
	trips        *trips.Service
	router       *api.Router
}

// buildAppContext constructs all application dependencies from cfg:
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Opens the Postgres pool (lazily — no connection until first use)
//  3. Creates the stores, routing client, geocode cache, and event publisher
//  4. Creates the setup provisioner and trip service
//  5. Creates the HTTP router
func buildAppContext(cfg *config.Config) (*AppContext, error) {
	app := &AppContext{cfg: cfg}

	// OTEL is best-effort: a missing collector must never block startup.
	// When OTLPEndpoint is empty, telemetry is disabled entirely — this avoids
	// the SDK's 10s periodic-reader noise when no collector is running locally.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Info("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(
			context.Background(),
			cfg.Telemetry.OTLPEndpoint,
			cfg.Telemetry.ServiceName,
			cfg.Telemetry.OTLPInsecure,
		)
		if err != nil {
			slog.Warn("OTEL provider init failed — telemetry disabled", "err", err)
		} else {
			app.otelProvider = tp
		}
	}

	pool, err := store.Connect(context.Background(), cfg.Database)
	if err != nil {
		return nil, err
	}
	app.pool = pool

	users := store.NewUserStore(pool)
	drivers := store.NewDriverStore(pool)
	tripStore := store.NewTripStore(pool)
	logStore := store.NewELDLogStore(pool)
	stopStore := store.NewRestStopStore(pool)

	// One breaker for the routing providers so they trip independently of
	// anything else.
	router := routing.NewClient(cfg.Routing, routing.NewCircuitBreaker("routing"))
	geocoder := routing.NewCachedGeocoder(router, cfg.Redis)

	publisher := events.NewPublisher(cfg.NATS)

	app.provisioner = setup.New(
		pool,
		store.NewMigrator(pool),
		setup.NewAdminProvisioner(users),
		publisher,
		setup.NewStaticCollector(cfg.Setup.StaticSrcs, cfg.Setup.StaticRoot),
		geocoder,
		router,
	)

	app.trips = trips.NewService(tripStore, drivers, logStore, stopStore, router, publisher)
	app.router = api.NewRouter(app.trips, app.provisioner, geocoder, cfg.Setup.StaticRoot)

	return app, nil
}

// shutdownTelemetry flushes the OTEL provider if one was initialised.
func (a *AppContext) shutdownTelemetry() {
	if a.otelProvider == nil {
		return
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.otelProvider.Shutdown(shutCtx); err != nil {
		slog.Warn("OTEL shutdown error", "err", err)
	}
}
