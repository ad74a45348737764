// Package runnerclient is the remote half of the §6 runner protocol: it
// implements the same scheduler.Store and scheduler.Ingestor interfaces the
// in-process controller wiring uses, but backed by HTTP calls to
// GET /api/runner/checks and POST /api/runner/report instead of a direct
// Store, so cmd/defcon-runner can drive the identical scheduler.Scheduler
// loop the controller does (see internal/scheduler's package doc).
package runnerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonsson/defcon/internal/jwtkeys"
	"github.com/jonsson/defcon/internal/model"
)

// Client calls a controller's runner API on behalf of a single site,
// signing every request with a freshly-minted 30s runner JWT.
type Client struct {
	baseURL string
	site    string
	keys    *jwtkeys.RunnerKeys
	http    *http.Client
}

// New builds a Client against baseURL (e.g. "https://controller.example.com")
// representing site, signing requests with keys (loaded from PRIVATE_KEY).
func New(baseURL, site string, keys *jwtkeys.RunnerKeys, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		site:    site,
		keys:    keys,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) authedRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.keys.Generate(c.site)
	if err != nil {
		return nil, fmt.Errorf("runnerclient: sign token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// runnerCheckPayload mirrors internal/api/runner.go's response shape.
type runnerCheckPayload struct {
	UUID     string         `json:"uuid"`
	Name     string         `json:"name"`
	Interval model.Duration `json:"interval"`
	Spec     model.Spec     `json:"spec"`
}

// StaleChecks implements scheduler.Store by calling GET /api/runner/checks.
// The controller already filters by staleness and by c.site; the returned
// Check values carry only what the Prober and Scheduler need (uuid, name,
// interval, kind), not the full row the controller holds.
func (c *Client) StaleChecks(site string) ([]model.StaleCheck, error) {
	req, err := c.authedRequest(context.Background(), http.MethodGet, "/api/runner/checks", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runnerclient: list stale checks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runnerclient: list stale checks: unexpected status %d", resp.StatusCode)
	}

	var payload []runnerCheckPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("runnerclient: decode stale checks: %w", err)
	}

	out := make([]model.StaleCheck, 0, len(payload))
	for _, p := range payload {
		out = append(out, model.StaleCheck{
			Check: model.Check{
				UUID:     p.UUID,
				Name:     p.Name,
				Kind:     p.Spec.Kind,
				Interval: p.Interval,
			},
			Site: site,
			Spec: p.Spec,
		})
	}
	return out, nil
}

type runnerReportRequest struct {
	Check   string       `json:"check"`
	Status  model.Status `json:"status"`
	Message string       `json:"message"`
}

// Ingest implements scheduler.Ingestor by calling POST /api/runner/report.
// The controller reconstructs the full Check, attributes the event to
// claims.Site, and runs the same ingest.Ingestor the in-process scheduler
// uses, so only the check uuid, status and message are sent; the site
// argument is not sent.
func (c *Client) Ingest(check *model.Check, site string, status model.Status, message string) error {
	body, err := json.Marshal(runnerReportRequest{Check: check.UUID, Status: status, Message: message})
	if err != nil {
		return err
	}

	req, err := c.authedRequest(context.Background(), http.MethodPost, "/api/runner/report", bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("runnerclient: report event for check=%s: %w", check.UUID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("runnerclient: report event for check=%s: unexpected status %d", check.UUID, resp.StatusCode)
	}
	return nil
}
