// internal/client/client.go
// Package client calls a running inference service.
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

	"github.com/mwiater/cardia/internal/appconfig"
	"github.com/mwiater/cardia/internal/inference"
	"github.com/mwiater/cardia/internal/logging"
	"github.com/mwiater/cardia/internal/patient"
)

// APIError is a non-200 response from the service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("inference service returned %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Client makes single-attempt calls to the inference service. Failures are
// returned to the caller; nothing is retried or cached.
type Client struct {
	baseURL string
	client  *http.Client
}

// New builds a Client for baseURL with a per-call timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FromConfig builds a Client from the client section of the configuration.
func FromConfig(cfg appconfig.ClientConfig) *Client {
	return New(cfg.URL, cfg.Timeout())
}

// Predict posts rec to /predict.
func (c *Client) Predict(ctx context.Context, rec patient.Record) (inference.Result, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return inference.Result{}, err
	}
	logging.LogPayload("predict request", body)

	respBody, err := c.do(ctx, http.MethodPost, "/predict", body)
	if err != nil {
		return inference.Result{}, err
	}
	logging.LogPayload("predict response", respBody)

	var res inference.Result
	if err := json.Unmarshal(respBody, &res); err != nil {
		return inference.Result{}, fmt.Errorf("decode predict response: %w", err)
	}
	return res, nil
}

// Health calls GET / and returns the acknowledgement message.
func (c *Client) Health(ctx context.Context) (string, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return "", err
	}
	var ack struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return "", fmt.Errorf("decode health response: %w", err)
	}
	return ack.Message, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
