package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/idro/idro/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFetcher serves scripted responses and records concurrency.
type fakeFetcher struct {
	mu     sync.Mutex
	alerts []models.Disaster
	camps  []models.Camp
	err    error

	// gate, when set, blocks ListAlerts until it receives or ctx ends.
	gate        chan struct{}
	ignoreCtx   bool
	alertCalls  atomic.Int32
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (f *fakeFetcher) setAlerts(ds ...models.Disaster) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = ds
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) ListAlerts(ctx context.Context) ([]models.Disaster, error) {
	f.alertCalls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		m := f.maxInflight.Load()
		if n <= m || f.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			if !f.ignoreCtx {
				return nil, ctx.Err()
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Disaster(nil), f.alerts...), nil
}

func (f *fakeFetcher) ListCamps(ctx context.Context) ([]models.Camp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Camp(nil), f.camps...), nil
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func alertIDs(s Snapshot) []string {
	out := make([]string, 0, len(s.Alerts))
	for _, d := range s.Alerts {
		out = append(out, d.ID)
	}
	return out
}

func TestPoller_InitialFetchAndSubscribe(t *testing.T) {
	f := &fakeFetcher{
		alerts: []models.Disaster{{ID: "a", Location: "Pune"}},
		camps:  []models.Camp{{ID: "c1", AlertID: "a", Name: "Hub"}},
	}
	p := New(f, Options{AlertsInterval: time.Hour, CampsInterval: time.Hour})
	updates, cancel := p.Subscribe()
	defer cancel()

	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, time.Second, func() bool {
		s := p.Snapshot()
		return len(s.Alerts) == 1 && len(s.Camps) == 1
	})

	select {
	case s := <-updates:
		if s.AlertsSyncedAt.IsZero() && s.CampsSyncedAt.IsZero() {
			t.Error("published snapshot has no sync time")
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}

	if got := p.Snapshot().CampsFor("a"); len(got) != 1 || got[0].ID != "c1" {
		t.Errorf("CampsFor(a) = %+v", got)
	}
}

func TestPoller_PollsOnInterval(t *testing.T) {
	f := &fakeFetcher{}
	p := New(f, Options{AlertsInterval: 10 * time.Millisecond, CampsInterval: time.Hour})
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, time.Second, func() bool { return f.alertCalls.Load() >= 3 })
}

func TestPoller_NoOverlap(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	p := New(f, Options{AlertsInterval: time.Millisecond, CampsInterval: time.Hour, Timeout: time.Second})
	p.Start(context.Background())

	// Hold the first fetch while many ticks and refreshes fire.
	time.Sleep(30 * time.Millisecond)
	for i := 0; i < 5; i++ {
		p.RefreshNow()
	}
	if got := f.alertCalls.Load(); got != 1 {
		t.Errorf("calls while blocked = %d, want 1", got)
	}

	close(f.gate)
	waitFor(t, time.Second, func() bool { return f.alertCalls.Load() >= 3 })
	p.Stop()

	if got := f.maxInflight.Load(); got != 1 {
		t.Errorf("max in-flight = %d, want 1", got)
	}
}

func TestPoller_RefreshNowQueuedOnce(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{gate: gate}
	p := New(f, Options{AlertsInterval: time.Hour, CampsInterval: time.Hour, Timeout: time.Second})
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, time.Second, func() bool { return f.alertCalls.Load() == 1 })
	for i := 0; i < 5; i++ {
		p.RefreshNow()
	}

	// Release the initial fetch and the single queued refresh.
	gate <- struct{}{}
	gate <- struct{}{}

	waitFor(t, time.Second, func() bool { return f.inflight.Load() == 0 && f.alertCalls.Load() == 2 })
	time.Sleep(30 * time.Millisecond)
	if got := f.alertCalls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestPoller_SelectionDroppedWhenMissing(t *testing.T) {
	f := &fakeFetcher{alerts: []models.Disaster{{ID: "a", Location: "Pune"}, {ID: "b", Location: "Kochi"}}}
	p := New(f, Options{AlertsInterval: time.Hour, CampsInterval: time.Hour})
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, time.Second, func() bool { return len(p.Snapshot().Alerts) == 2 })
	p.Select("b")
	if d, ok := p.Snapshot().Selected(); !ok || d.Location != "Kochi" {
		t.Fatalf("Selected() = %+v, %v", d, ok)
	}

	// Same id survives a replace with new field values.
	f.setAlerts(models.Disaster{ID: "b", Location: "Kochi", MissionStatus: models.MissionStatusAssigned, ResponderName: "NDRF-Alpha"})
	p.RefreshNow()
	waitFor(t, time.Second, func() bool { return len(p.Snapshot().Alerts) == 1 })
	if d, ok := p.Snapshot().Selected(); !ok || d.MissionStatus != models.MissionStatusAssigned {
		t.Errorf("selection not re-resolved: %+v, %v", d, ok)
	}

	f.setAlerts(models.Disaster{ID: "a", Location: "Pune"})
	p.RefreshNow()
	waitFor(t, time.Second, func() bool {
		return cmp.Equal([]string{"a"}, alertIDs(p.Snapshot()))
	})
	s := p.Snapshot()
	if s.SelectedID != "" {
		t.Errorf("SelectedID = %q, want dropped", s.SelectedID)
	}
}

func TestPoller_ErrorKeepsLastSnapshot(t *testing.T) {
	f := &fakeFetcher{alerts: []models.Disaster{{ID: "a", Location: "Pune"}}}
	p := New(f, Options{AlertsInterval: time.Hour, CampsInterval: time.Hour})
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, time.Second, func() bool { return len(p.Snapshot().Alerts) == 1 })

	f.setErr(&models.TransientNetworkError{Op: "fetching alerts", Err: errors.New("connection refused")})
	p.RefreshNow()
	waitFor(t, time.Second, func() bool { return p.Snapshot().Err() != nil })

	s := p.Snapshot()
	if diff := cmp.Diff([]string{"a"}, alertIDs(s)); diff != "" {
		t.Errorf("alerts changed on error (-want +got):\n%s", diff)
	}
	if !models.IsTransient(s.AlertsErr) {
		t.Errorf("AlertsErr = %v", s.AlertsErr)
	}

	f.setErr(nil)
	p.RefreshNow()
	waitFor(t, time.Second, func() bool { return p.Snapshot().Err() == nil })
}

func TestPoller_DiscardsAfterStop(t *testing.T) {
	f := &fakeFetcher{
		gate:      make(chan struct{}),
		ignoreCtx: true,
		alerts:    []models.Disaster{{ID: "late", Location: "Nowhere"}},
	}
	p := New(f, Options{AlertsInterval: time.Hour, CampsInterval: time.Hour, Timeout: time.Minute})
	p.Start(context.Background())

	waitFor(t, time.Second, func() bool { return f.inflight.Load() == 1 })
	p.Stop()

	if got := p.Snapshot().Alerts; len(got) != 0 {
		t.Errorf("late response applied after Stop: %+v", got)
	}
}

func TestPoller_StaleSequenceDiscarded(t *testing.T) {
	p := New(&fakeFetcher{}, Options{})

	p.applyAlerts(2, []models.Disaster{{ID: "new"}})
	p.applyAlerts(1, []models.Disaster{{ID: "old"}})

	if diff := cmp.Diff([]string{"new"}, alertIDs(p.Snapshot())); diff != "" {
		t.Errorf("stale response applied (-want +got):\n%s", diff)
	}
}

func TestPoller_StopClosesSubscriptions(t *testing.T) {
	p := New(&fakeFetcher{}, Options{AlertsInterval: time.Hour, CampsInterval: time.Hour})
	ch, _ := p.Subscribe()
	p.Start(context.Background())
	p.Stop()

	for range ch {
	}

	late, cancel := p.Subscribe()
	defer cancel()
	if _, ok := <-late; ok {
		t.Error("subscription after Stop should be closed")
	}

	// Stop is idempotent.
	p.Stop()
}

func TestPoller_ErrorsTrackedPerResource(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{camps: []models.Camp{{ID: "c1", Name: "Hub"}}}
	p := New(f, Options{})

	f.setErr(&models.TransientNetworkError{Op: "fetching alerts", Err: errors.New("connection refused")})
	p.poll(ctx, p.alerts)
	p.poll(ctx, p.camps)

	s := p.Snapshot()
	if len(s.Camps) != 1 {
		t.Fatalf("camps = %d, want 1", len(s.Camps))
	}
	if s.CampsErr != nil {
		t.Errorf("CampsErr = %v, want nil", s.CampsErr)
	}
	if !models.IsTransient(s.Err()) {
		t.Errorf("camps sync cleared the alerts error: Err() = %v", s.Err())
	}

	f.setErr(nil)
	p.poll(ctx, p.alerts)
	if err := p.Snapshot().Err(); err != nil {
		t.Errorf("Err() = %v after alerts recovered", err)
	}
}

func TestPoller_StopBeforeStart(t *testing.T) {
	f := &fakeFetcher{}
	p := New(f, Options{AlertsInterval: 10 * time.Millisecond, CampsInterval: 10 * time.Millisecond})

	p.Stop()
	p.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	if n := f.alertCalls.Load(); n != 0 {
		t.Errorf("alert fetches after teardown = %d, want 0", n)
	}
}
