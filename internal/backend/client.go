package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a response body is decoded.
const maxResponseBytes = 1 << 20 // 1MB

// Client talks to the remote chat service over JSON/HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL: "http://localhost:5000",
		Timeout: 10 * time.Second,
	}
}

// NewClient creates a client for the service rooted at cfg.BaseURL.
// No network I/O happens until the first call.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must use http or https", cfg.BaseURL)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// BaseURL returns the service root the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health reports whether the service and its model runtime are up.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Chat sends one user message and returns the model's reply.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", ChatRequest{Message: message}, &resp); err != nil {
		return "", err
	}
	if resp.Success == nil {
		return "", fmt.Errorf("%w: /chat response has no success flag", ErrMalformed)
	}
	if !*resp.Success {
		msg := resp.Error
		if msg == "" && resp.Response != nil {
			msg = *resp.Response
		}
		return "", &ServiceError{Endpoint: "/chat", Message: msg}
	}
	if resp.Response == nil {
		return "", fmt.Errorf("%w: /chat response has no reply", ErrMalformed)
	}
	return *resp.Response, nil
}

// Models lists the model names the service can switch to.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var resp ModelsResponse
	if err := c.do(ctx, http.MethodGet, "/models", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Models == nil {
		return nil, fmt.Errorf("%w: /models response has no models list", ErrMalformed)
	}
	return resp.Models, nil
}

// SetModel switches the service's active model.
func (c *Client) SetModel(ctx context.Context, name string) error {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodPost, "/model", SetModelRequest{Model: name}, &resp); err != nil {
		return err
	}
	return checkStatus("/model", resp)
}

// Clear asks the service to forget the conversation.
func (c *Client) Clear(ctx context.Context) error {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodPost, "/clear", nil, &resp); err != nil {
		return err
	}
	return checkStatus("/clear", resp)
}

func checkStatus(endpoint string, resp StatusResponse) error {
	if resp.Success == nil {
		return fmt.Errorf("%w: %s response has no success flag", ErrMalformed, endpoint)
	}
	if !*resp.Success {
		return &ServiceError{Endpoint: endpoint, Message: resp.Error}
	}
	return nil
}

// do performs one request bounded by the client timeout and decodes the
// JSON body into out.
func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("%w: build %s request: %w", ErrTransport, endpoint, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, endpoint, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close backend response body", "endpoint", endpoint, "error", closeErr)
		}
	}()

	c.logger.Debug("Backend call",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes)); err != nil {
			c.logger.Debug("failed to drain backend response body", "endpoint", endpoint, "error", err)
		}
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: read %s: %w", ErrTransport, endpoint, ctxErr)
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s body truncated or empty", ErrMalformed, endpoint)
		}
		return fmt.Errorf("%w: decode %s: %w", ErrMalformed, endpoint, err)
	}
	return nil
}
