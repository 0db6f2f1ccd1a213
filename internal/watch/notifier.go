package watch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification is a transient user-facing notice that an analysis job
// reached a terminal state. Notifications are ephemeral: they are never
// persisted and self-expire after a display duration.
type Notification struct {
	EntityID    string
	EntityLabel string

	// Success is true for a completed job, false for a failed one.
	Success bool

	FiredAt time.Time
}

// NotifierConfig holds the display durations for live notifications.
type NotifierConfig struct {
	// SuccessTTL is how long a completion notice stays live.
	SuccessTTL time.Duration

	// InfoTTL is how long an informational (failure) notice stays live.
	InfoTTL time.Duration
}

// DefaultNotifierConfig returns a NotifierConfig with the standard
// display durations.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		SuccessTTL: 5 * time.Second,
		InfoTTL:    3 * time.Second,
	}
}

// Notifier decides, for each registry removal, whether a user-facing
// notification fires, and owns the expiry timers of live notifications.
//
// Exactly one notification fires per qualifying removal: a removal
// qualifies only when the registry actually held a tracked record at
// the moment of removal. This is what prevents phantom notices for
// entities this client never saw as running (e.g. a job that started
// and finished while the stream connection was still being
// established). A new notification for an entity with one still live
// replaces it rather than stacking.
type Notifier struct {
	cfg    NotifierConfig
	logger *slog.Logger

	mu        sync.Mutex
	live      map[string]*liveNotification
	listeners map[uuid.UUID]func(Notification)

	// timeFunc is injectable for testing.
	timeFunc func() time.Time
}

type liveNotification struct {
	notification Notification
	timer        *time.Timer
}

// NewNotifier creates a Notifier with the given display durations.
// Zero durations fall back to the defaults.
func NewNotifier(cfg NotifierConfig, logger *slog.Logger) *Notifier {
	defaults := DefaultNotifierConfig()
	if cfg.SuccessTTL == 0 {
		cfg.SuccessTTL = defaults.SuccessTTL
	}
	if cfg.InfoTTL == 0 {
		cfg.InfoTTL = defaults.InfoTTL
	}
	return &Notifier{
		cfg:       cfg,
		logger:    logger.With("component", "notifier"),
		live:      make(map[string]*liveNotification),
		listeners: make(map[uuid.UUID]func(Notification)),
		timeFunc:  time.Now,
	}
}

// OnRemoved reports a registry removal to the policy. wasPresent must
// be the membership result returned by the registry's atomic
// test-and-remove; deciding from any later read would race with the
// removal itself. success distinguishes a completed job from a failed
// one; failures fire an informational notice, not a success one.
func (n *Notifier) OnRemoved(rec JobRecord, wasPresent bool, success bool) {
	if !wasPresent {
		// The client never tracked this job; a notice would be a
		// phantom. Duplicate terminal deliveries land here too.
		n.logger.Debug("suppressing notification for untracked entity",
			"entity_id", rec.EntityID,
			"success", success)
		return
	}

	notification := Notification{
		EntityID:    rec.EntityID,
		EntityLabel: rec.EntityLabel,
		Success:     success,
		FiredAt:     n.timeFunc(),
	}

	ttl := n.cfg.SuccessTTL
	if !success {
		ttl = n.cfg.InfoTTL
	}

	n.mu.Lock()
	if existing, ok := n.live[rec.EntityID]; ok {
		// Replace, don't stack.
		existing.timer.Stop()
	}
	entry := &liveNotification{notification: notification}
	entry.timer = time.AfterFunc(ttl, func() { n.expire(rec.EntityID, entry) })
	n.live[rec.EntityID] = entry

	listeners := make([]func(Notification), 0, len(n.listeners))
	for _, l := range n.listeners {
		listeners = append(listeners, l)
	}
	n.mu.Unlock()

	n.logger.Info("notification fired",
		"entity_id", rec.EntityID,
		"entity_label", rec.EntityLabel,
		"success", success,
		"ttl", ttl)

	for _, l := range listeners {
		l(notification)
	}
}

// Subscribe registers a callback invoked for every fired notification.
// The returned handle stops delivery when called.
func (n *Notifier) Subscribe(fn func(Notification)) func() {
	id := uuid.New()

	n.mu.Lock()
	n.listeners[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// Active returns the notifications currently live (fired, not yet
// expired), for renderers that poll instead of subscribing.
func (n *Notifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Notification, 0, len(n.live))
	for _, entry := range n.live {
		out = append(out, entry.notification)
	}
	return out
}

// Stop cancels all expiry timers and drops live notifications. Called
// on engine teardown.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, entry := range n.live {
		entry.timer.Stop()
	}
	n.live = make(map[string]*liveNotification)
}

// expire removes a notification once its display duration elapses. The
// entry comparison guards against expiring a replacement that took the
// slot after this timer was scheduled.
func (n *Notifier) expire(entityID string, entry *liveNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if current, ok := n.live[entityID]; ok && current == entry {
		delete(n.live, entityID)
	}
}
