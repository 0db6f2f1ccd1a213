package stream

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultReconnectDelay is used when RelayConfig.ReconnectDelay is zero.
const DefaultReconnectDelay = 5 * time.Second

// RelayConfig holds the settings for the upstream event feed connection.
type RelayConfig struct {
	// URL is the server-sent-events endpoint of the upstream backend.
	URL string

	// Token is the bearer token presented to the upstream, if any.
	Token string

	// ReconnectDelay is how long to wait before redialing after the
	// feed drops. Zero means DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// HTTPClient lets callers inject a client; nil means a client
	// without a timeout, since the feed is long-lived by design.
	HTTPClient *http.Client
}

// Relay maintains a connection to the upstream server-sent-events feed
// and republishes every frame onto the bus under the frame's event name
// as topic. It reports connection transitions through the OnConnect and
// OnDisconnect hooks so the reconciliation engine can run its
// activation cycles; the reconnect policy lives here, not in the engine.
type Relay struct {
	cfg    RelayConfig
	bus    Bus
	logger *slog.Logger

	onConnect    func(ctx context.Context)
	onDisconnect func()

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRelay creates a Relay publishing onto the given bus.
func NewRelay(cfg RelayConfig, bus Bus, logger *slog.Logger) *Relay {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Relay{
		cfg:    cfg,
		bus:    bus,
		logger: logger.With("component", "stream_relay"),
	}
}

// OnConnect registers a hook invoked after each successful connection,
// including reconnects. The hook should return promptly; frame
// consumption does not begin until it returns.
func (r *Relay) OnConnect(fn func(ctx context.Context)) {
	r.onConnect = fn
}

// OnDisconnect registers a hook invoked whenever an established
// connection drops.
func (r *Relay) OnDisconnect(fn func()) {
	r.onDisconnect = fn
}

// Start begins dialing the upstream feed in the background. It returns
// immediately; use Stop to shut the relay down.
func (r *Relay) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.run(ctx)
}

// Stop terminates the relay and waits for the feed goroutine to exit.
func (r *Relay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Relay) run(ctx context.Context) {
	defer r.wg.Done()

	for {
		if err := r.consumeOnce(ctx); err != nil {
			r.logger.Warn("event feed connection failed", "error", err, "url", r.cfg.URL)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.ReconnectDelay):
		}
	}
}

// consumeOnce dials the feed, announces the connection, and republishes
// frames until the connection drops or the context is cancelled.
func (r *Relay) consumeOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}

	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to event feed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			r.logger.Debug("failed to close feed body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event feed returned status %d", resp.StatusCode)
	}

	r.logger.Info("connected to event feed", "url", r.cfg.URL)
	if r.onConnect != nil {
		r.onConnect(ctx)
	}
	defer func() {
		r.logger.Info("disconnected from event feed", "url", r.cfg.URL)
		if r.onDisconnect != nil {
			r.onDisconnect()
		}
	}()

	return r.readFrames(ctx, resp)
}

// readFrames parses server-sent-events frames and publishes each one on
// the bus, using the frame's event name as the topic. Frames without an
// event name are ignored.
func (r *Relay) readFrames(ctx context.Context, resp *http.Response) error {
	scanner := bufio.NewScanner(resp.Body)

	var event string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			// Blank line terminates a frame.
			if event != "" && len(data) > 0 {
				r.publish(ctx, event, strings.Join(data, "\n"))
			}
			event = ""
			data = nil
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, ":"):
			// Comment/keep-alive line.
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("event feed read failed: %w", err)
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, topic, payload string) {
	msg := Message{Topic: topic, Payload: []byte(payload)}
	if err := r.bus.Publish(ctx, msg); err != nil {
		// Subscriber errors are already logged by the bus; nothing to
		// do here but note the frame.
		r.logger.Debug("frame dispatch reported error", "topic", topic, "error", err)
	}
}
