package watch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/statuspulse/pulse-api/internal/stream"
)

// Gate reports whether the current session is allowed to observe
// analysis jobs. Implementations fail closed: a definite "no" and an
// indefinite "couldn't tell" are distinct outcomes.
type Gate interface {
	// CheckSession returns true when the session is valid. A non-nil
	// error means the probe itself failed (e.g. network); the session
	// state is then unknown and the caller must not proceed.
	CheckSession(ctx context.Context) (bool, error)
}

// SnapshotSource fetches the point-in-time set of queued and running
// jobs visible to this session.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context) ([]JobRecord, error)
}

// Engine is the task-status reconciliation engine. It owns the
// registry of in-flight jobs and merges two independently-arriving
// sources of truth, the one-shot snapshot fetch and the open-ended
// event stream, into a single consistent view, emitting deduplicated
// lifecycle notifications along the way.
//
// An activation cycle runs on every (re)connect of the event feed:
// gate check, ingress install, snapshot load. Each cycle is tagged
// with a generation; snapshot results belonging to a superseded
// generation are discarded, so an in-flight load can never repopulate
// a registry that was torn down after the load started.
type Engine struct {
	gate   Gate
	source SnapshotSource
	bus    stream.Bus
	logger *slog.Logger

	registry *Registry
	notifier *Notifier
	ingress  *Ingress

	generation atomic.Int64

	// mu serializes snapshot application against teardown.
	mu sync.Mutex

	// tombstones remembers entities that received a terminal signal
	// during the current cycle, so a snapshot row that resolves later
	// cannot resurrect them: a terminal event is strictly newer
	// information than a status enumerated at some earlier instant.
	tombMu     sync.Mutex
	tombstones map[string]struct{}
}

// NewEngine creates an Engine with its own registry, notifier and
// ingress, consuming events from the given bus.
func NewEngine(gate Gate, source SnapshotSource, bus stream.Bus, ncfg NotifierConfig, logger *slog.Logger) *Engine {
	e := &Engine{
		gate:       gate,
		source:     source,
		bus:        bus,
		logger:     logger.With("component", "watch_engine"),
		registry:   NewRegistry(logger),
		notifier:   NewNotifier(ncfg, logger),
		tombstones: make(map[string]struct{}),
	}
	e.ingress = NewIngress(e.registry, e.notifier, logger)
	e.ingress.onTerminal = e.recordTerminal
	return e
}

// Activate runs one activation cycle. It is called whenever the event
// feed reports connected, including reconnects; the registry is not
// assumed empty, and every failure degrades to "no visibility" rather
// than surfacing to the caller.
func (e *Engine) Activate(ctx context.Context) {
	gen := e.generation.Add(1)
	e.resetTombstones()

	ok, err := e.gate.CheckSession(ctx)
	if err != nil {
		// Unknown session state: log and skip this cycle entirely.
		e.logger.Warn("identity probe failed, skipping activation cycle", "error", err)
		return
	}
	if !ok {
		// Fail closed: if a reconnect finds the session gone, stop
		// consuming events too.
		e.ingress.Uninstall()
		e.logger.Debug("session not authorized, engine stays inactive")
		return
	}

	// Ingress goes in before the snapshot request so terminal events
	// delivered while the request is in flight are observed; the
	// tombstone set then keeps them ahead of the stale rows the
	// snapshot may still report.
	e.ingress.Install(e.bus)

	records, err := e.source.LoadSnapshot(ctx)
	if err != nil {
		e.logger.Warn("snapshot load failed, continuing with stream only", "error", err)
		records = nil
	}

	e.applySnapshot(gen, records)
}

// Deactivate uninstalls the ingress when the feed drops. The registry
// keeps its contents: they are still this client's best knowledge, and
// the next cycle reconciles them.
func (e *Engine) Deactivate() {
	e.ingress.Uninstall()
}

// Stop tears the engine down: the ingress is uninstalled, the registry
// cleared, live notifications dropped, and any in-flight snapshot load
// invalidated via the generation counter.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation.Add(1)
	e.ingress.Uninstall()
	e.registry.Clear()
	e.notifier.Stop()
	e.logger.Info("engine stopped")
}

// CurrentJobs returns the tracked jobs.
func (e *Engine) CurrentJobs() []JobRecord {
	return e.registry.Snapshot()
}

// OnJobsChanged registers a listener invoked with the full contents on
// every registry mutation. Returns a cancellation handle.
func (e *Engine) OnJobsChanged(l Listener) func() {
	return e.registry.Subscribe(l)
}

// OnNotification registers a callback for fired notifications.
// Returns a cancellation handle.
func (e *Engine) OnNotification(fn func(Notification)) func() {
	return e.notifier.Subscribe(fn)
}

// ActiveNotifications returns the notifications currently live.
func (e *Engine) ActiveNotifications() []Notification {
	return e.notifier.Active()
}

// applySnapshot merges snapshot rows into the registry through the same
// idempotent upsert the stream path uses, unless the cycle was
// superseded while the request was in flight.
func (e *Engine) applySnapshot(gen int64, records []JobRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.generation.Load() != gen {
		e.logger.Debug("discarding snapshot from superseded cycle",
			"snapshot_generation", gen,
			"current_generation", e.generation.Load())
		return
	}

	applied := 0
	for _, rec := range records {
		if e.isTombstoned(rec.EntityID) {
			e.logger.Debug("skipping snapshot row superseded by terminal event",
				"entity_id", rec.EntityID)
			continue
		}
		e.registry.Upsert(rec)
		applied++
	}

	e.logger.Info("snapshot applied",
		"row_count", len(records),
		"applied_count", applied,
		"tracked_count", e.registry.Len())
}

func (e *Engine) recordTerminal(entityID string) {
	e.tombMu.Lock()
	defer e.tombMu.Unlock()
	e.tombstones[entityID] = struct{}{}
}

func (e *Engine) isTombstoned(entityID string) bool {
	e.tombMu.Lock()
	defer e.tombMu.Unlock()
	_, ok := e.tombstones[entityID]
	return ok
}

func (e *Engine) resetTombstones() {
	e.tombMu.Lock()
	defer e.tombMu.Unlock()
	e.tombstones = make(map[string]struct{})
}
