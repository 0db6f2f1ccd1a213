package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/statuspulse/pulse-api/internal/stream"
	"github.com/statuspulse/pulse-api/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allowGate struct{}

func (allowGate) CheckSession(ctx context.Context) (bool, error) { return true, nil }

type staticSource struct {
	records []watch.JobRecord
}

func (s *staticSource) LoadSnapshot(ctx context.Context) ([]watch.JobRecord, error) {
	return s.records, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, records []watch.JobRecord) (*watch.Engine, *stream.InMemoryBus) {
	t.Helper()
	bus := stream.NewInMemoryBus(testLogger())
	engine := watch.NewEngine(allowGate{}, &staticSource{records: records}, bus,
		watch.NotifierConfig{SuccessTTL: time.Minute, InfoTTL: time.Minute}, testLogger())
	engine.Activate(context.Background())
	t.Cleanup(engine.Stop)
	return engine, bus
}

func TestListJobs(t *testing.T) {
	t.Run("returns tracked jobs sorted by customer id", func(t *testing.T) {
		engine, _ := newTestEngine(t, []watch.JobRecord{
			{EntityID: "B", EntityLabel: "Bolt", TaskID: "t2", Phase: watch.PhaseQueued, ObservedAt: time.Now()},
			{EntityID: "A", EntityLabel: "Acme", TaskID: "t1", Phase: watch.PhaseRunning, ObservedAt: time.Now()},
		})
		handler := NewJobsHandler(engine, testLogger())

		rec := httptest.NewRecorder()
		handler.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body JobListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Jobs, 2)
		assert.Equal(t, "A", body.Jobs[0].CustomerID)
		assert.Equal(t, "running", body.Jobs[0].Phase)
		assert.Equal(t, "B", body.Jobs[1].CustomerID)
		assert.Equal(t, "queued", body.Jobs[1].Phase)
	})

	t.Run("empty registry yields an empty list", func(t *testing.T) {
		engine, _ := newTestEngine(t, nil)
		handler := NewJobsHandler(engine, testLogger())

		rec := httptest.NewRecorder()
		handler.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body JobListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Empty(t, body.Jobs)
	})
}

// readFrame reads one server-sent-events frame from the reader.
func readFrame(t *testing.T, reader *bufio.Reader) (event string, data string) {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStreamJobs(t *testing.T) {
	engine, bus := newTestEngine(t, []watch.JobRecord{
		{EntityID: "A", EntityLabel: "Acme", TaskID: "t1", Phase: watch.PhaseRunning, ObservedAt: time.Now()},
	})
	handler := NewJobsHandler(engine, testLogger())

	server := httptest.NewServer(http.HandlerFunc(handler.StreamJobs))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	// Initial full contents.
	event, data := readFrame(t, reader)
	assert.Equal(t, "jobs", event)
	var initial JobListResponse
	require.NoError(t, json.Unmarshal([]byte(data), &initial))
	require.Len(t, initial.Jobs, 1)
	assert.Equal(t, "A", initial.Jobs[0].CustomerID)

	// A completion should push an updated jobs frame and a
	// notification frame.
	require.NoError(t, bus.Publish(context.Background(), stream.Message{
		Topic:   watch.TopicAnalysisCompleted,
		Payload: []byte(`{"customer_id":"A","customer_name":"Acme"}`),
	}))

	sawEmptyJobs := false
	sawNotification := false
	for i := 0; i < 2; i++ {
		event, data = readFrame(t, reader)
		switch event {
		case "jobs":
			var update JobListResponse
			require.NoError(t, json.Unmarshal([]byte(data), &update))
			sawEmptyJobs = len(update.Jobs) == 0
		case "notification":
			var notice NotificationResponse
			require.NoError(t, json.Unmarshal([]byte(data), &notice))
			assert.Equal(t, "A", notice.CustomerID)
			assert.Equal(t, "Acme", notice.CompanyName)
			assert.True(t, notice.Success)
			sawNotification = true
		}
	}
	assert.True(t, sawEmptyJobs, "registry change should push updated contents")
	assert.True(t, sawNotification, "completion should push a notification frame")
}
