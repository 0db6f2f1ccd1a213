package watch

import "time"

// Phase represents the tracked lifecycle phase of a background
// analysis job. Only non-terminal phases are stored; a terminal signal
// (completed/failed) removes the record instead of being stored.
type Phase string

// Possible phase values
const (
	PhaseQueued  Phase = "queued"
	PhaseRunning Phase = "running"
)

// JobRecord describes one tracked analysis job for a single entity.
// The registry holds at most one record per EntityID; the record's
// presence means "as far as this client knows, this entity has an
// unfinished job".
type JobRecord struct {
	// EntityID is the unique key: the customer the job analyzes.
	EntityID string

	// EntityLabel is a display name for the entity. It is not
	// authoritative; the latest signal's label wins.
	EntityLabel string

	// TaskID identifies the underlying job instance. Opaque.
	TaskID string

	// Phase is the job's non-terminal phase.
	Phase Phase

	// ObservedAt records when this client last saw a signal for the
	// job, used for ordering tie-breaks in rendering.
	ObservedAt time.Time
}
