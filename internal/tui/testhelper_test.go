package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/idro/idro/internal/config"
	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/poller"
	"github.com/idro/idro/internal/services/demand"
	"github.com/idro/idro/internal/services/impact"
	"github.com/idro/idro/internal/services/missions"
	"github.com/idro/idro/internal/testutil"
)

const testTeam = "NDRF-Alpha"

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend stands in for the IDRO API. It serves the poller, the
// assigner, the resolver, the impact service and the header stats.
type fakeBackend struct {
	mu        sync.Mutex
	alerts    []models.Disaster
	camps     []models.Camp
	assigns   int
	resolves  int
	assignErr error
}

func newFakeBackend(alerts []models.Disaster, camps []models.Camp) *fakeBackend {
	return &fakeBackend{alerts: alerts, camps: camps}
}

func (b *fakeBackend) ListAlerts(ctx context.Context) ([]models.Disaster, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Disaster(nil), b.alerts...), nil
}

func (b *fakeBackend) ListCamps(ctx context.Context) ([]models.Camp, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Camp(nil), b.camps...), nil
}

func (b *fakeBackend) AssignMission(ctx context.Context, id, responder string) (*models.Disaster, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assigns++
	if b.assignErr != nil {
		return nil, b.assignErr
	}
	for i := range b.alerts {
		if b.alerts[i].ID != id {
			continue
		}
		if !b.alerts[i].IsOpen() {
			return nil, &models.ConflictError{Resource: "mission", ID: id, Reason: "already assigned"}
		}
		b.alerts[i].MissionStatus = models.MissionStatusAssigned
		b.alerts[i].ResponderName = responder
		d := b.alerts[i]
		return &d, nil
	}
	return nil, &models.ConflictError{Resource: "mission", ID: id}
}

func (b *fakeBackend) ResolveMission(ctx context.Context, id string) (*models.Disaster, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolves++
	for i := range b.alerts {
		if b.alerts[i].ID == id && b.alerts[i].MissionStatus == models.MissionStatusAssigned {
			b.alerts[i].MissionStatus = models.MissionStatusResolved
			d := b.alerts[i]
			return &d, nil
		}
	}
	return nil, &models.ConflictError{Resource: "mission", ID: id}
}

func (b *fakeBackend) GetImpact(ctx context.Context, id string) (*models.ImpactReport, error) {
	return nil, errors.New("analytics offline")
}

func (b *fakeBackend) GetStats(ctx context.Context) (*models.DashboardStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	active := 0
	for _, d := range b.alerts {
		if d.IsOpen() {
			active++
		}
	}
	return &models.DashboardStats{
		TotalAlerts:   len(b.alerts),
		ActiveAlerts:  active,
		ThreatOutlook: models.ThreatOutlookStable,
	}, nil
}

func (b *fakeBackend) assignCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.assigns
}

// fakeSource is a hand-driven SnapshotSource.
type fakeSource struct {
	mu        sync.Mutex
	snap      poller.Snapshot
	ch        chan poller.Snapshot
	refreshes int
	selected  string
}

func (f *fakeSource) Subscribe() (<-chan poller.Snapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan poller.Snapshot, 1)
	f.ch = ch
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}

func (f *fakeSource) Snapshot() poller.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) Select(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = id
	f.snap.SelectedID = id
}

func (f *fakeSource) RefreshNow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
}

// testMissions returns a high-trust flood, a low-trust cyclone and a
// mission already held by the test team.
func testMissions() ([]models.Disaster, []models.Camp) {
	flood := testutil.FixtureDisaster(func(d *models.Disaster) {
		d.ID = "kochi"
		d.CreatedAt = "2026-08-01T11:00:00Z"
	})
	cyclone := testutil.FixtureDisaster(func(d *models.Disaster) {
		d.ID = "puri"
		d.Type = models.DisasterTypeCyclone
		d.Location = "Puri, Odisha"
		d.TrustScore = testutil.IntPtr(30)
	})
	quake := testutil.FixtureAssignedDisaster(testTeam, func(d *models.Disaster) {
		d.ID = "bhuj"
		d.Type = models.DisasterTypeEarthquake
		d.Location = "Bhuj, Gujarat"
	})
	camps := []models.Camp{
		*testutil.FixtureCamp("kochi", func(c *models.Camp) { c.Name = "Govt School Camp" }),
		*testutil.FixtureCamp("kochi", func(c *models.Camp) {
			c.Name = "Stadium Shelter"
			c.Population = 1500
			c.Stock = models.Stock{"food": "Critical", "water": "Critical"}
		}),
	}
	return []models.Disaster{*flood, *cyclone, *quake}, camps
}

// newTestApp creates an App over a fake backend and a hand-driven source,
// sized 120x40 and holding the first snapshot.
func newTestApp(t *testing.T) (*App, *fakeBackend, *fakeSource) {
	t.Helper()

	alerts, camps := testMissions()
	backend := newFakeBackend(alerts, camps)
	source := &fakeSource{snap: poller.Snapshot{
		Alerts:         alerts,
		Camps:          camps,
		AlertsSyncedAt: testNow,
		CampsSyncedAt:  testNow,
	}}

	logger := discardLogger()
	estimator := demand.NewEstimator(config.Default().Estimator, nil, logger)

	app := New(Deps{
		Snapshots: source,
		Assigner:  missions.NewAssigner(backend, source, logger),
		Resolver:  backend,
		Impact:    impact.NewService(backend, estimator, logger),
		Stats:     backend,
		Responder: testTeam,
		Timeout:   time.Second,
		Logger:    logger,
		Now:       func() time.Time { return testNow },
	})
	app.Init()
	t.Cleanup(func() {
		if app.unsubscribe != nil {
			app.unsubscribe()
		}
	})

	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return app, backend, source
}

// keyMsg creates a tea.KeyMsg for a regular character key.
func keyMsg(key string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

// specialKeyMsg creates a tea.KeyMsg for a special key type.
func specialKeyMsg(keyType tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: keyType}
}

// press sends a key and runs the command it returns, feeding the result
// back into the model. Only single, non-blocking commands are run.
func press(t *testing.T, app *App, msg tea.KeyMsg) {
	t.Helper()
	_, cmd := app.Update(msg)
	if cmd == nil {
		return
	}
	app.Update(cmd())
}
