package watch

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Listener receives the full registry contents after every mutation,
// in application order. Listeners must not call back into the registry.
type Listener func(jobs []JobRecord)

// Registry is the authoritative in-memory map of entity to job state.
// It is constructed per session and torn down (cleared) on logout; it
// is never reached through ambient process state.
//
// All operations are atomic read-modify-write with respect to each
// other. In particular RemoveIfPresent tests membership and removes in
// one step, so "was this entity tracked" can never accidentally observe
// its own just-applied removal.
type Registry struct {
	mu        sync.Mutex
	records   map[string]JobRecord
	listeners map[uuid.UUID]Listener
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		records:   make(map[string]JobRecord),
		listeners: make(map[uuid.UUID]Listener),
		logger:    logger.With("component", "task_registry"),
	}
}

// Upsert inserts or overwrites the record for rec.EntityID. Repeated
// upserts for the same key leave exactly one record, with the latest
// task id and label winning. A Queued signal never demotes an entity
// already observed Running: jobs move queued -> running, not back, so
// a stale queued row only refreshes the label and timestamp.
func (r *Registry) Upsert(rec JobRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[rec.EntityID]; ok {
		if existing.Phase == PhaseRunning && rec.Phase == PhaseQueued {
			rec.Phase = PhaseRunning
		}
		if rec.TaskID == "" {
			rec.TaskID = existing.TaskID
		}
		if rec.EntityLabel == "" {
			rec.EntityLabel = existing.EntityLabel
		}
	}
	r.records[rec.EntityID] = rec

	r.logger.Debug("job record upserted",
		"entity_id", rec.EntityID,
		"task_id", rec.TaskID,
		"phase", rec.Phase,
		"tracked_count", len(r.records))

	r.notifyLocked()
}

// RemoveIfPresent atomically tests membership and removes the record
// for entityID, returning the record that was present. The returned
// bool reports membership as of the moment of removal; callers use it
// to decide whether a user-facing notification is warranted.
func (r *Registry) RemoveIfPresent(entityID string) (JobRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[entityID]
	if !ok {
		return JobRecord{}, false
	}
	delete(r.records, entityID)

	r.logger.Debug("job record removed",
		"entity_id", entityID,
		"task_id", rec.TaskID,
		"tracked_count", len(r.records))

	r.notifyLocked()
	return rec, true
}

// Snapshot returns a copy of the current contents. The slice reflects
// every mutation applied so far, in application order; element order
// within the slice carries no meaning.
func (r *Registry) Snapshot() []JobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Subscribe registers a listener invoked on every mutation with the new
// full contents. The returned handle stops delivery when cancelled.
func (r *Registry) Subscribe(l Listener) func() {
	id := uuid.New()

	r.mu.Lock()
	r.listeners[id] = l
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

// Clear empties the registry. Called on logout/teardown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) == 0 {
		return
	}
	r.records = make(map[string]JobRecord)
	r.logger.Debug("registry cleared")
	r.notifyLocked()
}

// Len reports how many jobs are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *Registry) snapshotLocked() []JobRecord {
	out := make([]JobRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// notifyLocked dispatches the new contents to every listener while the
// registry lock is held, which is what guarantees listeners see
// mutations in application order.
func (r *Registry) notifyLocked() {
	if len(r.listeners) == 0 {
		return
	}
	contents := r.snapshotLocked()
	for _, l := range r.listeners {
		l(contents)
	}
}
