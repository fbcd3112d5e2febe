// Package client talks to the form API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cardform-service/models"
)

// Client is a form API client
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the service at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

// StatusError is returned for unexpected HTTP responses
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("form api returned status %d: %s", e.Code, e.Message)
}

// Create opens a new form session.
func (c *Client) Create(ctx context.Context) (*models.FormSnapshot, error) {
	var snap models.FormSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/forms", nil, &snap, http.StatusCreated); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Get fetches the current form view.
func (c *Client) Get(ctx context.Context, id string) (*models.FormSnapshot, error) {
	var snap models.FormSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/forms/"+id, nil, &snap, http.StatusOK); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Input sends a field change.
func (c *Client) Input(ctx context.Context, id string, field models.Field, value string) (*models.FormSnapshot, error) {
	var snap models.FormSnapshot
	body := models.InputEvent{Field: string(field), Value: value}
	if err := c.do(ctx, http.MethodPost, "/api/forms/"+id+"/input", body, &snap, http.StatusOK); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Reset clears every field of the form.
func (c *Client) Reset(ctx context.Context, id string) (*models.FormSnapshot, error) {
	var snap models.FormSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/forms/"+id+"/reset", nil, &snap, http.StatusOK); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Submit asks the service to submit the form. A rejected submission is not an
// error: the failing fields come back in the second result.
func (c *Client) Submit(ctx context.Context, id string) (*models.FormSnapshot, map[models.Field]string, error) {
	var raw json.RawMessage
	code, err := c.send(ctx, http.MethodPost, "/api/forms/"+id+"/submit", nil, &raw)
	if err != nil {
		return nil, nil, err
	}

	switch code {
	case http.StatusAccepted:
		var snap models.FormSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, nil, fmt.Errorf("failed to decode form: %w", err)
		}
		return &snap, nil, nil
	case http.StatusUnprocessableEntity:
		var rejected models.SubmitErrors
		if err := json.Unmarshal(raw, &rejected); err != nil {
			return nil, nil, fmt.Errorf("failed to decode submit errors: %w", err)
		}
		return rejected.Form, rejected.Fields, nil
	default:
		return nil, nil, &StatusError{Code: code, Message: errorMessage(raw)}
	}
}

// WaitIdle polls until the form leaves the submitting state.
func (c *Client) WaitIdle(ctx context.Context, id string, interval time.Duration) (*models.FormSnapshot, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snap, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap.State == models.StateIdle {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, want int) error {
	var raw json.RawMessage
	code, err := c.send(ctx, method, path, body, &raw)
	if err != nil {
		return err
	}
	if code != want {
		return &StatusError{Code: code, Message: errorMessage(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any, out *json.RawMessage) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call form api: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	*out = data
	return resp.StatusCode, nil
}

func errorMessage(raw []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}
