package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/statuspulse/pulse-api/internal/api/shared"
	"github.com/statuspulse/pulse-api/internal/watch"
)

// JobsHandler exposes the engine's live view of in-flight analysis
// jobs. It makes no assumptions about how consumers render the data.
type JobsHandler struct {
	engine *watch.Engine
	logger *slog.Logger
}

// NewJobsHandler creates a JobsHandler for the given engine.
func NewJobsHandler(engine *watch.Engine, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		engine: engine,
		logger: logger.With("component", "jobs_handler"),
	}
}

// ListJobs handles GET /api/jobs, returning the tracked job set.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	records := h.engine.CurrentJobs()
	sort.Slice(records, func(i, j int) bool {
		return records[i].EntityID < records[j].EntityID
	})
	shared.RespondWithJSON(w, r, http.StatusOK, newJobListResponse(records))
}

// sseFrame is one event pushed to a streaming consumer.
type sseFrame struct {
	event   string
	payload interface{}
}

// StreamJobs handles GET /api/jobs/stream: a server-sent-events feed
// that pushes the full job set on every registry change ("jobs"
// frames) and every fired completion notice ("notification" frames).
// Consumers replace-and-render; they never need to reconcile deltas.
func (h *JobsHandler) StreamJobs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Buffered so a slow consumer cannot block registry mutation;
	// overflow drops frames, and the next change re-sends the full
	// contents anyway.
	frames := make(chan sseFrame, 16)

	unsubscribeJobs := h.engine.OnJobsChanged(func(jobs []watch.JobRecord) {
		select {
		case frames <- sseFrame{event: "jobs", payload: newJobListResponse(jobs)}:
		default:
			h.logger.Debug("dropping jobs frame for slow consumer")
		}
	})
	defer unsubscribeJobs()

	unsubscribeNotifications := h.engine.OnNotification(func(n watch.Notification) {
		select {
		case frames <- sseFrame{event: "notification", payload: newNotificationResponse(n)}:
		default:
			h.logger.Debug("dropping notification frame for slow consumer")
		}
	})
	defer unsubscribeNotifications()

	// Initial state so the consumer renders without waiting for the
	// next mutation.
	if err := h.writeFrame(w, flusher, sseFrame{event: "jobs", payload: newJobListResponse(h.engine.CurrentJobs())}); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-frames:
			if err := h.writeFrame(w, flusher, frame); err != nil {
				return
			}
		}
	}
}

func (h *JobsHandler) writeFrame(w http.ResponseWriter, flusher http.Flusher, frame sseFrame) error {
	data, err := json.Marshal(frame.payload)
	if err != nil {
		h.logger.Error("failed to marshal stream frame", "error", err, "event", frame.event)
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
