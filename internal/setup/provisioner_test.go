package setup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock implementations ---

type mockDB struct {
	pingErr error
	probe   ProbeResult
}

func (m *mockDB) PingCheck(_ context.Context) error   { return m.pingErr }
func (m *mockDB) Probe(_ context.Context) ProbeResult { return m.probe }

type mockMigrator struct {
	applied  int
	applyErr error
	calls    int
}

func (m *mockMigrator) Apply(_ context.Context) (int, error) {
	m.calls++
	return m.applied, m.applyErr
}

type mockAdmin struct {
	detail string
	err    error
	calls  int
}

func (m *mockAdmin) Ensure(_ context.Context) (string, error) {
	m.calls++
	return m.detail, m.err
}

type mockStreams struct {
	provisionErr error
	probe        ProbeResult
}

func (m *mockStreams) ProvisionStream(_ context.Context) error { return m.provisionErr }
func (m *mockStreams) Probe(_ context.Context) ProbeResult     { return m.probe }

type mockStatic struct {
	collected  int
	collectErr error
	calls      int
}

func (m *mockStatic) Collect(_ context.Context) (int, error) {
	m.calls++
	return m.collected, m.collectErr
}

type mockCache struct{ pingErr error }

func (m *mockCache) Ping(_ context.Context) error { return m.pingErr }

type mockRoutes struct{ healthErr error }

func (m *mockRoutes) Healthy(_ context.Context) error { return m.healthErr }

// blockingDB blocks PingCheck until released — used to test the in-progress guard.
type blockingDB struct {
	ready chan struct{} // closed when PingCheck is entered
	done  chan struct{} // close to unblock PingCheck
}

func (b *blockingDB) PingCheck(_ context.Context) error {
	close(b.ready)
	<-b.done
	return nil
}
func (b *blockingDB) Probe(_ context.Context) ProbeResult { return ProbeResult{OK: true} }

// --- helpers ---

func okProvisioner() (*Provisioner, *mockMigrator, *mockAdmin, *mockStatic) {
	migrator := &mockMigrator{applied: 5}
	admin := &mockAdmin{detail: `created admin "ops"`}
	static := &mockStatic{collected: 12}
	p := New(
		&mockDB{probe: ProbeResult{Name: "postgres", OK: true}},
		migrator,
		admin,
		&mockStreams{probe: ProbeResult{Name: "nats", OK: true}},
		static,
		&mockCache{},
		&mockRoutes{},
	)
	return p, migrator, admin, static
}

func phaseByName(t *testing.T, result *SetupResult, name string) PhaseResult {
	t.Helper()
	for _, p := range result.Phases {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("phase %q not found in result", name)
	return PhaseResult{}
}

// --- tests ---

func TestRun_AllPhasesSucceed(t *testing.T) {
	t.Parallel()

	p, migrator, admin, static := okProvisioner()

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusOK, result.Status)
	require.Len(t, result.Phases, 5)

	// Phases execute and report in order.
	wantOrder := []string{PhaseDatabase, PhaseMigrate, PhaseAdmin, PhaseStreams, PhaseStatic}
	for i, name := range wantOrder {
		assert.Equal(t, name, result.Phases[i].Name)
		assert.Equal(t, StatusOK, result.Phases[i].Status)
	}

	assert.Equal(t, "applied 5 migrations", phaseByName(t, result, PhaseMigrate).Detail)
	assert.Equal(t, `created admin "ops"`, phaseByName(t, result, PhaseAdmin).Detail)
	assert.Equal(t, "collected 12 files", phaseByName(t, result, PhaseStatic).Detail)

	assert.Equal(t, 1, migrator.calls)
	assert.Equal(t, 1, admin.calls)
	assert.Equal(t, 1, static.calls)

	assert.True(t, p.IsReady())
}

func TestRun_FailureHaltsLaterPhases(t *testing.T) {
	t.Parallel()

	migrator := &mockMigrator{applyErr: errors.New("relation users already broken")}
	admin := &mockAdmin{}
	static := &mockStatic{}
	p := New(&mockDB{}, migrator, admin, &mockStreams{}, static, &mockCache{}, &mockRoutes{})

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, StatusOK, phaseByName(t, result, PhaseDatabase).Status)
	assert.Equal(t, StatusError, phaseByName(t, result, PhaseMigrate).Status)

	// Later phases never run: they assume the migrated schema.
	for _, name := range []string{PhaseAdmin, PhaseStreams, PhaseStatic} {
		phase := phaseByName(t, result, name)
		assert.Equal(t, StatusSkipped, phase.Status)
		assert.Equal(t, "earlier phase failed", phase.Detail)
	}
	assert.Zero(t, admin.calls)
	assert.Zero(t, static.calls)

	assert.False(t, p.IsReady())
}

func TestRun_DatabaseUnreachable(t *testing.T) {
	t.Parallel()

	migrator := &mockMigrator{}
	p := New(&mockDB{pingErr: errors.New("connection refused")}, migrator,
		&mockAdmin{}, &mockStreams{}, &mockStatic{}, &mockCache{}, &mockRoutes{})

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, phaseByName(t, result, PhaseDatabase).Error, "connection refused")
	assert.Zero(t, migrator.calls)
}

func TestRun_MissingAdminEnvSkipsOnlyAdmin(t *testing.T) {
	t.Parallel()

	admin := &mockAdmin{err: ErrAdminEnvMissing}
	static := &mockStatic{collected: 3}
	p := New(&mockDB{}, &mockMigrator{}, admin, &mockStreams{}, static, &mockCache{}, &mockRoutes{})

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	// A skipped admin phase is not a failure; the run continues and succeeds.
	assert.Equal(t, StatusOK, result.Status)
	phase := phaseByName(t, result, PhaseAdmin)
	assert.Equal(t, StatusSkipped, phase.Status)
	assert.Equal(t, "admin credentials not set", phase.Detail)

	assert.Equal(t, StatusOK, phaseByName(t, result, PhaseStatic).Status)
	assert.Equal(t, 1, static.calls)
	assert.True(t, p.IsReady())
}

func TestRun_ConcurrentGuard(t *testing.T) {
	t.Parallel()

	db := &blockingDB{ready: make(chan struct{}), done: make(chan struct{})}
	p := New(db, &mockMigrator{}, &mockAdmin{}, &mockStreams{}, &mockStatic{}, &mockCache{}, &mockRoutes{})

	go func() {
		_, _ = p.Run(context.Background())
	}()
	<-db.ready

	assert.True(t, p.IsSetupInProgress())
	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrSetupInProgress)

	close(db.done)
}

func TestRunDeepHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cacheErr error
		routeErr error
		wantOK   map[string]bool
	}{
		{
			name:   "all healthy",
			wantOK: map[string]bool{"postgres": true, "nats": true, "redis": true, "routing": true},
		},
		{
			name:     "redis and routing down",
			cacheErr: errors.New("connection refused"),
			routeErr: errors.New("HTTP 503"),
			wantOK:   map[string]bool{"postgres": true, "nats": true, "redis": false, "routing": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := New(
				&mockDB{probe: ProbeResult{Name: "postgres", OK: true}},
				&mockMigrator{},
				&mockAdmin{},
				&mockStreams{probe: ProbeResult{Name: "nats", OK: true}},
				&mockStatic{},
				&mockCache{pingErr: tt.cacheErr},
				&mockRoutes{healthErr: tt.routeErr},
			)

			results := p.RunDeepHealth(context.Background())
			require.Len(t, results, 4)
			for name, wantOK := range tt.wantOK {
				assert.Equal(t, wantOK, results[name].OK, name)
			}
		})
	}
}

func TestLastResult(t *testing.T) {
	t.Parallel()

	p, _, _, _ := okProvisioner()
	assert.Nil(t, p.LastResult())

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	last := p.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, StatusOK, last.Status)
}
