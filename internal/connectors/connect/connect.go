// Package connect is a Kafka Connect-compatible REST client used by the
// Pipeline Orchestrator to create, inspect, and tear down source/sink
// connectors.
package connect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	retry "github.com/avast/retry-go"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// Client talks to one Kafka Connect REST endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client against baseURL (e.g. "http://connect:8083").
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// ConnectorConfig is the JSON body accepted by the connector-creation endpoint.
type ConnectorConfig struct {
	Name   string            `json:"name"`
	Config map[string]string `json:"config"`
}

// ConnectorStatus mirrors the /connectors/{name}/status response.
type ConnectorStatus struct {
	Name      string `json:"name"`
	Connector struct {
		State    string `json:"state"`
		WorkerID string `json:"worker_id"`
	} `json:"connector"`
	Tasks []struct {
		ID    int    `json:"id"`
		State string `json:"state"`
		Trace string `json:"trace,omitempty"`
	} `json:"tasks"`
}

// CreateConnector registers a new connector, returning models.ErrQueryFailed
// wrapped with the response body on a non-2xx status.
func (c *Client) CreateConnector(ctx context.Context, cfg ConnectorConfig) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal connector config: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/connectors", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrConnectFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: create connector %s: status %d", models.ErrQueryFailed, cfg.Name, resp.StatusCode)
	}
	return nil
}

// DeleteConnector removes a connector, tolerating a 404 for idempotent teardown.
func (c *Client) DeleteConnector(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/connectors/"+name, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrConnectFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: delete connector %s: status %d", models.ErrQueryFailed, name, resp.StatusCode)
	}
	return nil
}

// Pause requests the connect cluster stop processing for name, tolerating a
// 404 so a resource already reclaimed doesn't fail the orchestrator's pause
// fan-out.
func (c *Client) Pause(ctx context.Context, name string) error {
	return c.putAction(ctx, name, "pause")
}

// Resume is the symmetric counterpart to Pause.
func (c *Client) Resume(ctx context.Context, name string) error {
	return c.putAction(ctx, name, "resume")
}

func (c *Client) putAction(ctx context.Context, name, action string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/connectors/"+name+"/"+action, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrConnectFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: %s connector %s: status %d", models.ErrQueryFailed, action, name, resp.StatusCode)
	}
	return nil
}

// Status fetches a connector's current state, retrying transient failures
// since this path is read-only.
func (c *Client) Status(ctx context.Context, name string) (*ConnectorStatus, error) {
	var status ConnectorStatus

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/connectors/"+name+"/status", nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("build request: %w", err))
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("%w: %v", models.ErrConnectFailed, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(models.ErrNotFound)
			}
			if resp.StatusCode >= 300 {
				return fmt.Errorf("%w: status %s: http %d", models.ErrQueryFailed, name, resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&status)
		},
		retry.Attempts(3),
		retry.DelayType(retry.FixedDelay),
	)
	if err != nil {
		return nil, err
	}

	return &status, nil
}
