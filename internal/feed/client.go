// Package feed is the HTTP client for the upstream screening service. It
// fetches the per-poll snapshots (accounts, events, analyses, graph,
// stats) that drive the dashboard.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/takurot/susanoh/internal/models"
)

// Client provides access to the screening service API
type Client struct {
	baseURL    string
	httpClient *http.Client
	eventLimit int
}

// Snapshot bundles one poll's worth of upstream state.
type Snapshot struct {
	Users    []models.UserInfo
	Events   []models.GameEvent
	Analyses []models.Analysis
	Graph    models.GraphData
	Stats    models.Stats
}

// NewClient creates a new feed client
func NewClient(baseURL string, eventLimit int, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		eventLimit: eventLimit,
	}
}

// FetchUsers retrieves all known accounts and their current states
func (c *Client) FetchUsers(ctx context.Context) ([]models.UserInfo, error) {
	var users []models.UserInfo
	if err := c.getJSON(ctx, "/api/users", nil, &users); err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	return users, nil
}

// FetchRecentEvents retrieves the newest screened events, newest first
func (c *Client) FetchRecentEvents(ctx context.Context) ([]models.GameEvent, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", c.eventLimit))

	var events []models.GameEvent
	if err := c.getJSON(ctx, "/api/events/recent", q, &events); err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	return events, nil
}

// FetchAnalyses retrieves the L2 analysis results, newest first
func (c *Client) FetchAnalyses(ctx context.Context) ([]models.Analysis, error) {
	var analyses []models.Analysis
	if err := c.getJSON(ctx, "/api/analyses", nil, &analyses); err != nil {
		return nil, fmt.Errorf("failed to fetch analyses: %w", err)
	}
	return analyses, nil
}

// FetchGraph retrieves the aggregated transfer graph
func (c *Client) FetchGraph(ctx context.Context) (models.GraphData, error) {
	var graph models.GraphData
	if err := c.getJSON(ctx, "/api/graph", nil, &graph); err != nil {
		return models.GraphData{}, fmt.Errorf("failed to fetch graph: %w", err)
	}
	return graph, nil
}

// FetchStats retrieves the aggregate pipeline counters
func (c *Client) FetchStats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	if err := c.getJSON(ctx, "/api/stats", nil, &stats); err != nil {
		return models.Stats{}, fmt.Errorf("failed to fetch stats: %w", err)
	}
	return stats, nil
}

// FetchSnapshot retrieves one complete poll's worth of upstream state.
// The endpoints are fetched sequentially; the snapshot is only as atomic
// as the upstream service, which is good enough for a 3 second cadence.
func (c *Client) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error

	if snap.Users, err = c.FetchUsers(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Events, err = c.FetchRecentEvents(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Analyses, err = c.FetchAnalyses(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Graph, err = c.FetchGraph(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Stats, err = c.FetchStats(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// getJSON performs a GET with retry logic and decodes the JSON body
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
