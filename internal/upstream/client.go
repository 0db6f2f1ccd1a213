// Package upstream holds the HTTP client for the analysis backend this
// service watches: the one-shot job snapshot fetch and the session
// identity probe.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/statuspulse/pulse-api/internal/config"
	"github.com/statuspulse/pulse-api/internal/watch"
)

// statusRow is one entry of the upstream GET /status payload.
type statusRow struct {
	CustomerID  string `json:"customer_id"`
	CompanyName string `json:"company_name"`
	TaskID      string `json:"task_id"`
}

// statusResponse mirrors the upstream GET /status payload. Absent
// arrays simply decode to nil and count as zero records.
type statusResponse struct {
	Running []statusRow `json:"running"`
	Queued  []statusRow `json:"queued"`
}

// Client talks to the upstream analysis backend. It implements both
// watch.Gate and watch.SnapshotSource.
type Client struct {
	baseURL      string
	token        string
	statusPath   string
	identityPath string
	httpClient   *http.Client
	logger       *slog.Logger
}

// Compile-time interface checks.
var (
	_ watch.Gate           = (*Client)(nil)
	_ watch.SnapshotSource = (*Client)(nil)
)

// NewClient creates a Client from the upstream configuration.
func NewClient(cfg config.UpstreamConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		statusPath:   cfg.StatusPath,
		identityPath: cfg.IdentityPath,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		logger: logger.With("component", "upstream_client"),
	}
}

// CheckSession probes the upstream identity endpoint. A 2xx response
// means the session is valid; any other status means it is not (fail
// closed, no retry). A transport failure returns an error: the session
// state is unknown, which is not the same as unauthorized.
func (c *Client) CheckSession(ctx context.Context) (bool, error) {
	resp, err := c.get(ctx, c.identityPath)
	if err != nil {
		return false, fmt.Errorf("identity probe failed: %w", err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, nil
	}

	c.logger.Debug("identity probe rejected", "status", resp.StatusCode)
	return false, nil
}

// LoadSnapshot fetches the current queued and running job sets and
// normalizes them into JobRecords. Both sets go through the caller's
// idempotent upsert path, so the snapshot can never disagree with the
// stream about merge precedence.
//
// Failures are absorbed: any fetch or decode problem, and any non-2xx
// status, yields an empty set. A 401/403 in particular is silent; the
// user may simply be logged out.
func (c *Client) LoadSnapshot(ctx context.Context) ([]watch.JobRecord, error) {
	resp, err := c.get(ctx, c.statusPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot fetch failed: %w", err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.logger.Debug("snapshot fetch unauthorized", "status", resp.StatusCode)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("snapshot fetch returned unexpected status", "status", resp.StatusCode)
		return nil, nil
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot response: %w", err)
	}

	now := time.Now()
	records := make([]watch.JobRecord, 0, len(body.Running)+len(body.Queued))
	records = c.appendRows(records, body.Running, watch.PhaseRunning, now)
	records = c.appendRows(records, body.Queued, watch.PhaseQueued, now)

	c.logger.Debug("snapshot loaded",
		"running_count", len(body.Running),
		"queued_count", len(body.Queued))
	return records, nil
}

// appendRows normalizes rows into JobRecords, dropping entries without
// a customer id rather than letting them corrupt the registry key space.
func (c *Client) appendRows(records []watch.JobRecord, rows []statusRow, phase watch.Phase, observedAt time.Time) []watch.JobRecord {
	for _, row := range rows {
		if row.CustomerID == "" {
			c.logger.Warn("dropping snapshot row without customer id", "phase", phase)
			continue
		}
		records = append(records, watch.JobRecord{
			EntityID:    row.CustomerID,
			EntityLabel: row.CompanyName,
			TaskID:      row.TaskID,
			Phase:       phase,
			ObservedAt:  observedAt,
		})
	}
	return records
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Debug("failed to close response body", "error", err)
	}
}
