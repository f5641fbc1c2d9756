package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ErrSetupInProgress is returned when Run is called while a setup run is
// already active.
var ErrSetupInProgress = errors.New("setup already in progress")

// DatabaseProber is satisfied by *store.Pool. Probe is the deep health
// check (connectivity plus migrated schema); PingCheck is connectivity only,
// which is all the pre-migration setup phase can require.
type DatabaseProber interface {
	Probe(ctx context.Context) ProbeResult
	PingCheck(ctx context.Context) error
}

// Migrator is satisfied by *store.Migrator.
type Migrator interface {
	Apply(ctx context.Context) (int, error)
}

// AdminEnsurer is satisfied by *AdminProvisioner.
type AdminEnsurer interface {
	Ensure(ctx context.Context) (string, error)
}

// StreamProvisioner is satisfied by *events.Publisher.
type StreamProvisioner interface {
	ProvisionStream(ctx context.Context) error
	Probe(ctx context.Context) ProbeResult
}

// AssetCollector is satisfied by *StaticCollector.
type AssetCollector interface {
	Collect(ctx context.Context) (int, error)
}

// CachePinger is satisfied by *routing.CachedGeocoder.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// RouteChecker is satisfied by *routing.Client.
type RouteChecker interface {
	Healthy(ctx context.Context) error
}

// Provisioner runs the setup phases and the health probes.
type Provisioner struct {
	db       DatabaseProber
	migrator Migrator
	admin    AdminEnsurer
	streams  StreamProvisioner
	static   AssetCollector
	cache    CachePinger
	routes   RouteChecker

	setupInProgress atomic.Bool
	lastResult      *SetupResult
	resultMu        sync.RWMutex
}

// New constructs a Provisioner with the given dependencies. The concrete
// types in store, events, and routing satisfy the interfaces defined here.
func New(db DatabaseProber, migrator Migrator, admin AdminEnsurer, streams StreamProvisioner, static AssetCollector, cache CachePinger, routes RouteChecker) *Provisioner {
	return &Provisioner{
		db:       db,
		migrator: migrator,
		admin:    admin,
		streams:  streams,
		static:   static,
		cache:    cache,
		routes:   routes,
	}
}

// Run executes the setup phases strictly in order: database, migrate, admin,
// streams, static. Each phase assumes its predecessors, so the first failure
// halts the run and the unreached phases are reported as skipped. A missing
// admin credential set skips only the admin phase. Returns
// ErrSetupInProgress if a run is already active.
func (p *Provisioner) Run(ctx context.Context) (*SetupResult, error) {
	if !p.setupInProgress.CompareAndSwap(false, true) {
		return nil, ErrSetupInProgress
	}
	defer p.setupInProgress.Store(false)

	result := &SetupResult{Status: StatusInProgress}

	ctx, span := otel.Tracer("driverlog").Start(ctx, "driverlog.setup")
	defer span.End()

	slog.InfoContext(ctx, "setup started")

	halted := false
	for _, name := range phaseOrder {
		if halted {
			result.Phases = append(result.Phases, PhaseResult{
				Name:   name,
				Status: StatusSkipped,
				Detail: "earlier phase failed",
			})
			continue
		}

		phase := p.runPhase(ctx, name)
		logPhase(ctx, phase)
		result.Phases = append(result.Phases, phase)
		if phase.Status == StatusError {
			halted = true
		}
	}

	result.Status = StatusOK
	for _, phase := range result.Phases {
		if phase.Status == StatusError {
			result.Status = StatusError
			break
		}
	}

	span.SetAttributes(attribute.String("setup.status", result.Status))
	if result.Status == StatusError {
		span.SetStatus(codes.Error, "one or more setup phases failed")
		slog.WarnContext(ctx, "setup completed with errors", "status", result.Status)
	} else {
		span.SetStatus(codes.Ok, "")
		slog.InfoContext(ctx, "setup completed", "status", result.Status)
	}

	p.resultMu.Lock()
	p.lastResult = result
	p.resultMu.Unlock()

	return result, nil
}

func (p *Provisioner) runPhase(ctx context.Context, name string) PhaseResult {
	switch name {
	case PhaseDatabase:
		// Only connectivity here: the schema check would fail on a fresh
		// database that the migrate phase is about to populate.
		if err := p.db.PingCheck(ctx); err != nil {
			return PhaseResult{Name: name, Status: StatusError, Error: err.Error()}
		}
		return PhaseResult{Name: name, Status: StatusOK}

	case PhaseMigrate:
		n, err := p.migrator.Apply(ctx)
		if err != nil {
			return PhaseResult{Name: name, Status: StatusError, Error: err.Error()}
		}
		return PhaseResult{Name: name, Status: StatusOK, Detail: fmt.Sprintf("applied %d migrations", n)}

	case PhaseAdmin:
		detail, err := p.admin.Ensure(ctx)
		if errors.Is(err, ErrAdminEnvMissing) {
			return PhaseResult{Name: name, Status: StatusSkipped, Detail: "admin credentials not set"}
		}
		if err != nil {
			return PhaseResult{Name: name, Status: StatusError, Error: err.Error()}
		}
		return PhaseResult{Name: name, Status: StatusOK, Detail: detail}

	case PhaseStreams:
		if err := p.streams.ProvisionStream(ctx); err != nil {
			return PhaseResult{Name: name, Status: StatusError, Error: err.Error()}
		}
		return PhaseResult{Name: name, Status: StatusOK}

	case PhaseStatic:
		n, err := p.static.Collect(ctx)
		if err != nil {
			return PhaseResult{Name: name, Status: StatusError, Error: err.Error()}
		}
		return PhaseResult{Name: name, Status: StatusOK, Detail: fmt.Sprintf("collected %d files", n)}
	}

	return PhaseResult{Name: name, Status: StatusError, Error: "unknown phase"}
}

// RunDeepHealth probes all backing dependencies concurrently and returns a
// map of dependency name to ProbeResult.
func (p *Provisioner) RunDeepHealth(ctx context.Context) map[string]ProbeResult {
	results := make(map[string]ProbeResult, 4)
	var mu sync.Mutex
	var g errgroup.Group

	record := func(name string, probe ProbeResult) {
		mu.Lock()
		results[name] = probe
		mu.Unlock()
	}

	g.Go(func() error {
		record("postgres", p.db.Probe(ctx))
		return nil
	})

	g.Go(func() error {
		record("nats", p.streams.Probe(ctx))
		return nil
	})

	g.Go(func() error {
		record("redis", errToProbe("redis", p.cache.Ping(ctx)))
		return nil
	})

	g.Go(func() error {
		record("routing", errToProbe("routing", p.routes.Healthy(ctx)))
		return nil
	})

	_ = g.Wait()
	return results
}

// IsSetupInProgress returns true while a setup run is active.
func (p *Provisioner) IsSetupInProgress() bool {
	return p.setupInProgress.Load()
}

// IsReady returns true if the last setup run completed with StatusOK.
func (p *Provisioner) IsReady() bool {
	p.resultMu.RLock()
	defer p.resultMu.RUnlock()
	return p.lastResult != nil && p.lastResult.Status == StatusOK
}

// LastResult returns the most recent setup result, or nil before the first run.
func (p *Provisioner) LastResult() *SetupResult {
	p.resultMu.RLock()
	defer p.resultMu.RUnlock()
	return p.lastResult
}

// logPhase emits a trace-correlated log for a setup phase result.
// Errors log at WARN so they are visible without being fatal to the logger.
func logPhase(ctx context.Context, p PhaseResult) {
	switch p.Status {
	case StatusOK:
		slog.InfoContext(ctx, "setup phase ok", "phase", p.Name, "detail", p.Detail)
	case StatusSkipped:
		slog.InfoContext(ctx, "setup phase skipped", "phase", p.Name, "detail", p.Detail)
	default:
		slog.WarnContext(ctx, "setup phase failed", "phase", p.Name, "error", p.Error)
	}
}

// errToProbe converts a plain probe error to a ProbeResult.
func errToProbe(name string, err error) ProbeResult {
	if err != nil {
		return ProbeResult{Name: name, OK: false, Error: err.Error()}
	}
	return ProbeResult{Name: name, OK: true}
}
