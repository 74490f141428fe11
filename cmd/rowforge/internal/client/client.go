// Package client is a thin REST client for the rowforge server API.
// CLI job commands use it to submit and control jobs on a running
// server instead of touching the store directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rowforge/rowforge/pkg/engine"
	"github.com/rowforge/rowforge/pkg/server/api"
	v1 "github.com/rowforge/rowforge/pkg/server/api/v1"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response decoded from the server error body.
type APIError struct {
	StatusCode int
	Label      string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Label != "" {
		return e.Label
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 response, i.e. an illegal
// job state transition.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Client talks to a rowforge server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the server at baseURL, e.g. "http://127.0.0.1:8470".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitJob creates a new enrichment job and returns its assigned ID.
func (c *Client) SubmitJob(ctx context.Context, req v1.SubmitJobRequest) (*api.SubmitJobResponse, error) {
	var resp api.SubmitJobResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetJob fetches a single job with its progress report.
func (c *Client) GetJob(ctx context.Context, id string) (*api.JobResponse, error) {
	var resp api.JobResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListJobs lists jobs, optionally filtered by status. A non-positive
// limit leaves the server default in place.
func (c *Client) ListJobs(ctx context.Context, status string, limit int) ([]api.JobResponse, error) {
	path := "/api/v1/jobs"
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp []api.JobResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PauseJob requests a pause at the next row boundary.
func (c *Client) PauseJob(ctx context.Context, id string) (*api.JobResponse, error) {
	return c.action(ctx, id, "pause")
}

// ResumeJob re-enqueues a paused job.
func (c *Client) ResumeJob(ctx context.Context, id string) (*api.JobResponse, error) {
	return c.action(ctx, id, "resume")
}

// CancelJob cancels a job permanently.
func (c *Client) CancelJob(ctx context.Context, id string) (*api.JobResponse, error) {
	return c.action(ctx, id, "cancel")
}

// RetryJob re-enqueues a failed job from its last checkpoint.
func (c *Client) RetryJob(ctx context.Context, id string) (*api.JobResponse, error) {
	return c.action(ctx, id, "retry")
}

// Stats fetches engine-wide queue and worker counters.
func (c *Client) Stats(ctx context.Context) (*engine.Stats, error) {
	var resp engine.Stats
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Healthy reports whether the server answers its readiness probe.
func (c *Client) Healthy(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/readyz", nil, nil)
}

func (c *Client) action(ctx context.Context, id, name string) (*api.JobResponse, error) {
	var resp api.JobResponse
	path := "/api/v1/jobs/" + url.PathEscape(id) + "/" + name
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(raw) > 0 {
		var body api.ErrorResponse
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Label = body.Error
			apiErr.Message = body.Message
		}
	}
	return apiErr
}
