// Package jsonapi is the shared JSON-over-HTTP client used by the OTP and
// one-click adapters. It maps transport and status failures onto
// ports.GatewayError categories.
package jsonapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"onboarding/internal/registration/ports"
)

const maxBodyBytes = 1 << 20

// Client calls one backend.
type Client struct {
	gateway string
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a client for baseURL. gateway names the backend in errors.
func New(gateway, baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		gateway: gateway,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// ErrorBody is the failure envelope shared by both backends.
type ErrorBody struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Text returns the most specific message in the envelope.
func (b ErrorBody) Text() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}

// Do sends in (when non-nil) as JSON and decodes the response into out.
// A 2xx body carrying a non-empty "error" field is reported as rejected.
func (c *Client) Do(ctx context.Context, operation, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return c.fail(operation, ports.CategoryInternal, "", fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return c.fail(operation, ports.CategoryInternal, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return c.fail(operation, ports.CategoryTimeout, "", err)
		}
		return c.fail(operation, ports.CategoryUnavailable, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.fail(operation, ports.CategoryUnavailable, "", fmt.Errorf("read response: %w", err))
	}

	var envelope ErrorBody
	_ = json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(operation, categoryForStatus(resp.StatusCode), envelope.Text(),
			fmt.Errorf("status %d", resp.StatusCode))
	}
	if envelope.Error != "" {
		return c.fail(operation, ports.CategoryRejected, envelope.Text(), nil)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.fail(operation, ports.CategoryBadData, "", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) fail(operation string, category ports.ErrorCategory, message string, err error) error {
	return ports.NewGatewayError(c.gateway, operation, category, message, err)
}

func categoryForStatus(status int) ports.ErrorCategory {
	switch {
	case status == http.StatusNotFound:
		return ports.CategoryNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ports.CategoryTimeout
	case status >= 500:
		return ports.CategoryUnavailable
	default:
		return ports.CategoryRejected
	}
}
