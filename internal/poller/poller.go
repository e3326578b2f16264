// Package poller keeps a local cache of alerts and camps in sync with the
// backend. Each resource is polled by its own loop with at most one request
// in flight; the cache is only ever replaced by a full snapshot.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/idro/idro/internal/models"
)

// Fetcher is the read side of the backend API.
type Fetcher interface {
	ListAlerts(ctx context.Context) ([]models.Disaster, error)
	ListCamps(ctx context.Context) ([]models.Camp, error)
}

// Options configures a Poller. Zero values use the defaults.
type Options struct {
	AlertsInterval time.Duration
	CampsInterval  time.Duration
	Timeout        time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Default intervals.
const (
	DefaultAlertsInterval = 3 * time.Second
	DefaultCampsInterval  = 10 * time.Second
	DefaultTimeout        = 5 * time.Second
)

// Snapshot is an immutable view of the cache. Callers must not modify the
// slices it holds.
type Snapshot struct {
	Alerts         []models.Disaster
	Camps          []models.Camp
	SelectedID     string
	AlertsSyncedAt time.Time
	CampsSyncedAt  time.Time

	// AlertsErr and CampsErr hold the last failure of each resource and are
	// cleared by that resource's next successful sync.
	AlertsErr error
	CampsErr  error
}

// Err returns the sync failure to surface, preferring the alerts error.
func (s Snapshot) Err() error {
	if s.AlertsErr != nil {
		return s.AlertsErr
	}
	return s.CampsErr
}

// Selected returns the selected disaster, resolved against the current alerts.
func (s Snapshot) Selected() (models.Disaster, bool) {
	if s.SelectedID == "" {
		return models.Disaster{}, false
	}
	for _, d := range s.Alerts {
		if d.ID == s.SelectedID {
			return d, true
		}
	}
	return models.Disaster{}, false
}

// CampsFor returns the camps attached to a disaster.
func (s Snapshot) CampsFor(disasterID string) []models.Camp {
	var out []models.Camp
	for _, c := range s.Camps {
		if c.AlertID == disasterID {
			out = append(out, c)
		}
	}
	return out
}

// resource is one polled endpoint.
type resource struct {
	name     string
	interval time.Duration
	trigger  chan struct{}
	fetch    func(ctx context.Context, seq uint64) error

	// Guarded by Poller.mu.
	issued  uint64
	applied uint64
}

// Poller owns the sync loops. It is safe for concurrent use.
type Poller struct {
	fetcher Fetcher
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	alerts *resource
	camps  *resource

	mu      sync.Mutex
	snap    Snapshot
	subs    map[int]chan Snapshot
	nextSub int
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a poller. Call Start to begin syncing.
func New(fetcher Fetcher, opts Options) *Poller {
	if opts.AlertsInterval <= 0 {
		opts.AlertsInterval = DefaultAlertsInterval
	}
	if opts.CampsInterval <= 0 {
		opts.CampsInterval = DefaultCampsInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	p := &Poller{
		fetcher: fetcher,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		now:     opts.Now,
		subs:    make(map[int]chan Snapshot),
	}

	p.alerts = &resource{
		name:     "alerts",
		interval: opts.AlertsInterval,
		trigger:  make(chan struct{}, 1),
		fetch: func(ctx context.Context, seq uint64) error {
			ds, err := p.fetcher.ListAlerts(ctx)
			if err != nil {
				return err
			}
			p.applyAlerts(seq, ds)
			return nil
		},
	}
	p.camps = &resource{
		name:     "camps",
		interval: opts.CampsInterval,
		trigger:  make(chan struct{}, 1),
		fetch: func(ctx context.Context, seq uint64) error {
			cs, err := p.fetcher.ListCamps(ctx)
			if err != nil {
				return err
			}
			p.applyCamps(seq, cs)
			return nil
		},
	}

	return p
}

// Start launches one loop per resource. Each loop fetches immediately and
// then on its interval. Start is a no-op after the first call and after Stop.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for _, r := range []*resource{p.alerts, p.camps} {
		p.wg.Add(1)
		go p.loop(ctx, r)
	}
	p.logger.Debug("poller started")
}

// Stop cancels in-flight fetches, waits for the loops to exit and closes all
// subscriptions. Results arriving after Stop are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()

	p.mu.Lock()
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
	p.mu.Unlock()
	p.logger.Debug("poller stopped")
}

// RefreshNow asks every loop to fetch as soon as possible. Requests made
// while a fetch is in flight collapse into one follow-up fetch.
func (p *Poller) RefreshNow() {
	for _, r := range []*resource{p.alerts, p.camps} {
		select {
		case r.trigger <- struct{}{}:
		default:
		}
	}
}

// Snapshot returns the current cache.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Select stores the selected disaster by id. An empty id clears it.
func (p *Poller) Select(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.SelectedID = id
	p.publishLocked()
}

// Subscribe returns a channel receiving the latest snapshot after every
// change, and a function to cancel the subscription. Slow readers only see
// the most recent snapshot. The channel is closed by Stop or cancel.
func (p *Poller) Subscribe() (<-chan Snapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if p.stopped {
		close(ch)
		return ch, func() {}
	}

	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.subs[id]; ok {
			close(c)
			delete(p.subs, id)
		}
	}
}

func (p *Poller) loop(ctx context.Context, r *resource) {
	defer p.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	p.poll(ctx, r)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.trigger:
		}

		p.poll(ctx, r)

		// A tick that fired during the fetch is skipped, not replayed.
		select {
		case <-ticker.C:
		default:
		}
	}
}

func (p *Poller) poll(ctx context.Context, r *resource) {
	p.mu.Lock()
	r.issued++
	seq := r.issued
	p.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := r.fetch(fctx, seq)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}

	if models.IsTransient(err) {
		p.logger.Warn("sync failed, retrying next tick", "resource", r.name, "error", err)
	} else {
		p.logger.Error("sync failed", "resource", r.name, "error", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.setErrLocked(r, err)
	p.publishLocked()
}

// acceptLocked reports whether a response with seq may replace the cache.
func (p *Poller) acceptLocked(r *resource, seq uint64) bool {
	if p.stopped {
		p.logger.Debug("discarding response after stop", "resource", r.name, "seq", seq)
		return false
	}
	if seq <= r.applied {
		p.logger.Debug("discarding stale response", "resource", r.name, "seq", seq, "applied", r.applied)
		return false
	}
	r.applied = seq
	return true
}

func (p *Poller) applyAlerts(seq uint64, ds []models.Disaster) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.acceptLocked(p.alerts, seq) {
		return
	}

	if ds == nil {
		ds = []models.Disaster{}
	}
	p.snap.Alerts = ds
	p.snap.AlertsSyncedAt = p.now()
	p.setErrLocked(p.alerts, nil)

	if p.snap.SelectedID != "" {
		if _, ok := p.snap.Selected(); !ok {
			p.logger.Debug("selected disaster disappeared", "disaster_id", p.snap.SelectedID)
			p.snap.SelectedID = ""
		}
	}
	p.publishLocked()
}

func (p *Poller) applyCamps(seq uint64, cs []models.Camp) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.acceptLocked(p.camps, seq) {
		return
	}

	if cs == nil {
		cs = []models.Camp{}
	}
	p.snap.Camps = cs
	p.snap.CampsSyncedAt = p.now()
	p.setErrLocked(p.camps, nil)
	p.publishLocked()
}

func (p *Poller) setErrLocked(r *resource, err error) {
	if r == p.alerts {
		p.snap.AlertsErr = err
	} else {
		p.snap.CampsErr = err
	}
}

// publishLocked delivers the snapshot to every subscriber, replacing any
// snapshot the subscriber has not read yet.
func (p *Poller) publishLocked() {
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p.snap:
		default:
		}
	}
}
