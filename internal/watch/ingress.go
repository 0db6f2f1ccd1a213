package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/statuspulse/pulse-api/internal/stream"
)

// Topics carried on the stream bus.
const (
	TopicAnalysisStarted   = "analysis.started"
	TopicAnalysisCompleted = "analysis.completed"
	TopicAnalysisFailed    = "analysis.failed"
)

// ErrMalformedPayload is returned when a frame is missing its entity
// key. Such frames are dropped; they never crash the registry or leave
// it partially mutated.
var ErrMalformedPayload = errors.New("malformed event payload")

type startedPayload struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	TaskID       string `json:"task_id"`
}

type completedPayload struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
}

type failedPayload struct {
	CustomerID string `json:"customer_id"`
}

// Ingress applies analysis lifecycle frames from the stream bus to the
// registry. It is installed while the underlying feed is connected and
// uninstalled when the feed drops; reinstalling after a reconnect never
// assumes the registry is empty, and never duplicates entries already
// present from a still-valid prior session (upserts are idempotent by
// key).
type Ingress struct {
	registry *Registry
	notifier *Notifier
	logger   *slog.Logger

	// onTerminal, when set, observes every terminal signal applied.
	// The engine uses it to keep terminal precedence over snapshot
	// rows that resolve later.
	onTerminal func(entityID string)

	mu   sync.Mutex
	subs []stream.Subscription
}

// NewIngress creates an Ingress applying frames to the given registry
// and reporting removals to the given notifier.
func NewIngress(registry *Registry, notifier *Notifier, logger *slog.Logger) *Ingress {
	return &Ingress{
		registry: registry,
		notifier: notifier,
		logger:   logger.With("component", "event_ingress"),
	}
}

// Install subscribes to the three lifecycle topics on the bus. Calling
// Install while already installed is a no-op.
func (i *Ingress) Install(bus stream.Bus) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.subs) > 0 {
		return
	}
	i.subs = []stream.Subscription{
		bus.Subscribe(TopicAnalysisStarted, stream.HandlerFunc(i.handleStarted)),
		bus.Subscribe(TopicAnalysisCompleted, stream.HandlerFunc(i.handleCompleted)),
		bus.Subscribe(TopicAnalysisFailed, stream.HandlerFunc(i.handleFailed)),
	}
	i.logger.Debug("ingress installed")
}

// Uninstall cancels the topic subscriptions. Safe to call when not
// installed.
func (i *Ingress) Uninstall() {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, sub := range i.subs {
		sub.Cancel()
	}
	if len(i.subs) > 0 {
		i.logger.Debug("ingress uninstalled")
	}
	i.subs = nil
}

// handleStarted upserts the entity as running. Duplicate delivery is
// harmless: the upsert is idempotent by entity id, latest task id and
// label win.
func (i *Ingress) handleStarted(ctx context.Context, msg stream.Message) error {
	var payload startedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		i.logger.Warn("dropping undecodable started event", "error", err)
		return fmt.Errorf("failed to decode started event: %w", err)
	}
	if payload.CustomerID == "" {
		i.logger.Warn("dropping started event without customer id")
		return ErrMalformedPayload
	}

	i.registry.Upsert(JobRecord{
		EntityID:    payload.CustomerID,
		EntityLabel: payload.CustomerName,
		TaskID:      payload.TaskID,
		Phase:       PhaseRunning,
		ObservedAt:  time.Now(),
	})
	return nil
}

// handleCompleted removes the entity's record unconditionally: a client
// that reconnected after the job started must still clear any stale row
// it holds. Membership is decided inside the registry's atomic
// test-and-remove, and only a removal that actually found a record
// fires a notification.
func (i *Ingress) handleCompleted(ctx context.Context, msg stream.Message) error {
	var payload completedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		i.logger.Warn("dropping undecodable completed event", "error", err)
		return fmt.Errorf("failed to decode completed event: %w", err)
	}
	if payload.CustomerID == "" {
		i.logger.Warn("dropping completed event without customer id")
		return ErrMalformedPayload
	}

	rec, wasPresent := i.registry.RemoveIfPresent(payload.CustomerID)
	if i.onTerminal != nil {
		i.onTerminal(payload.CustomerID)
	}

	if rec.EntityLabel == "" {
		rec.EntityLabel = payload.CustomerName
	}
	rec.EntityID = payload.CustomerID
	i.notifier.OnRemoved(rec, wasPresent, true)
	return nil
}

// handleFailed removes the entity's record with the same semantics as
// handleCompleted, but any resulting notice is informational rather
// than a success notification.
func (i *Ingress) handleFailed(ctx context.Context, msg stream.Message) error {
	var payload failedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		i.logger.Warn("dropping undecodable failed event", "error", err)
		return fmt.Errorf("failed to decode failed event: %w", err)
	}
	if payload.CustomerID == "" {
		i.logger.Warn("dropping failed event without customer id")
		return ErrMalformedPayload
	}

	rec, wasPresent := i.registry.RemoveIfPresent(payload.CustomerID)
	if i.onTerminal != nil {
		i.onTerminal(payload.CustomerID)
	}

	rec.EntityID = payload.CustomerID
	i.notifier.OnRemoved(rec, wasPresent, false)
	return nil
}
