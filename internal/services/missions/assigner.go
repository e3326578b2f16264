package missions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/idro/idro/internal/models"
)

// ErrDeclined is returned when the operator declines a low-trust assignment.
var ErrDeclined = errors.New("assignment declined by operator")

// AssignAPI is the backend call that claims a mission.
type AssignAPI interface {
	AssignMission(ctx context.Context, id, responderName string) (*models.Disaster, error)
}

// Confirmer asks the operator to confirm a low-trust assignment.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AlwaysConfirm accepts every prompt.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// Resyncer triggers an immediate refresh of the disaster cache.
type Resyncer interface {
	RefreshNow()
}

// Assigner claims missions for a responder. Attempts on the same mission are
// serialized; the cache is never patched locally, only re-synced.
type Assigner struct {
	api    AssignAPI
	resync Resyncer
	logger *slog.Logger

	locks keyedMutex
	mu    sync.Mutex
	// claimed holds missions this session assigned until a synced snapshot
	// shows them as no longer OPEN.
	claimed map[string]string
}

// NewAssigner creates an assigner. resync may be nil.
func NewAssigner(api AssignAPI, resync Resyncer, logger *slog.Logger) *Assigner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assigner{
		api:     api,
		resync:  resync,
		logger:  logger,
		claimed: make(map[string]string),
	}
}

// Accept assigns the disaster to responder. It returns a ConflictError when
// the mission is not OPEN (locally or at the backend) and ErrDeclined when a
// low-trust confirmation is refused. A nil confirmer declines.
func (a *Assigner) Accept(ctx context.Context, d models.Disaster, responder string, c Confirmer) (*models.Disaster, error) {
	responder = strings.TrimSpace(responder)
	if responder == "" {
		return nil, models.NewValidationError("responderName", "is required")
	}

	if !d.IsOpen() {
		a.refresh()
		return nil, &models.ConflictError{
			Resource: "mission",
			ID:       d.ID,
			Reason:   fmt.Sprintf("status is %s", d.MissionStatus),
		}
	}

	if EvaluateTrust(d.TrustScore) == RequireConfirmation {
		if c == nil {
			return nil, ErrDeclined
		}
		ok, err := c.Confirm(ctx, ConfirmationPrompt(d.TrustScore))
		if err != nil {
			return nil, fmt.Errorf("confirming assignment: %w", err)
		}
		if !ok {
			a.logger.Info("low-trust assignment declined",
				"mission_id", d.ID,
				"trust_score", d.EffectiveTrustScore(),
			)
			return nil, ErrDeclined
		}
	}

	unlock := a.locks.Lock(d.ID)
	defer unlock()

	if prev, ok := a.claimedBy(d.ID); ok {
		a.refresh()
		return nil, &models.ConflictError{
			Resource: "mission",
			ID:       d.ID,
			Reason:   fmt.Sprintf("already assigned to %s", prev),
		}
	}

	updated, err := a.api.AssignMission(ctx, d.ID, responder)
	a.refresh()
	if err != nil {
		a.logger.Warn("mission assignment failed",
			"mission_id", d.ID,
			"responder", responder,
			"error", err,
		)
		if models.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("assigning mission %s: %w", d.ID, err)
	}

	a.mu.Lock()
	a.claimed[d.ID] = responder
	a.mu.Unlock()

	if updated == nil {
		assigned := d
		assigned.MissionStatus = models.MissionStatusAssigned
		assigned.ResponderName = responder
		updated = &assigned
	}

	a.logger.Info("mission assigned", "mission_id", d.ID, "responder", responder)
	return updated, nil
}

// Reconcile drops local claims that a freshly synced alert list already
// reflects: missions that left OPEN or are gone. Claims on missions still
// listed as OPEN are kept, since that list may predate the assignment.
func (a *Assigner) Reconcile(ds []models.Disaster) {
	open := make(map[string]bool, len(ds))
	for _, d := range ds {
		open[d.ID] = d.IsOpen()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for id := range a.claimed {
		if !open[id] {
			delete(a.claimed, id)
		}
	}
}

func (a *Assigner) claimedBy(id string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	who, ok := a.claimed[id]
	return who, ok
}

func (a *Assigner) refresh() {
	if a.resync != nil {
		a.resync.RefreshNow()
	}
}

// Available returns the missions that can still be claimed.
func Available(ds []models.Disaster) []models.Disaster {
	out := make([]models.Disaster, 0, len(ds))
	for _, d := range ds {
		if d.IsOpen() {
			out = append(out, d)
		}
	}
	return out
}

// Mine returns the missions assigned to or resolved by responder.
func Mine(ds []models.Disaster, responder string) []models.Disaster {
	out := make([]models.Disaster, 0)
	for _, d := range ds {
		if d.MissionStatus.HasResponder() && d.ResponderName == responder {
			out = append(out, d)
		}
	}
	return out
}

// keyedMutex serializes work per key and frees idle entries.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
