package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gridswap/gridswap/internal/logging"
	"github.com/gridswap/gridswap/pkg/domain"
)

// Client is an agent's view of a gateway.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the structured logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClientHTTP swaps the underlying HTTP client.
func WithClientHTTP(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient builds a client for the gateway at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c
}

// Register announces the agent to the gateway.
func (c *Client) Register(ctx context.Context, reg domain.Registration) error {
	body, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshal registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/register", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("register with gateway: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("register with gateway: unexpected status %s", resp.Status)
	}
	return nil
}

// RegisterWithRetry keeps registering until it succeeds or ctx ends.
// Agents and gateway boot in no particular order, so the first attempts
// routinely hit a connection refused.
func (c *Client) RegisterWithRetry(ctx context.Context, reg domain.Registration, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}

	var lastErr error
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		lastErr = c.Register(ctx, reg)
		if lastErr == nil {
			c.logger.Info("registered with gateway", "subscriber", reg.SubscriberID, "type", reg.Role)
			return nil
		}
		c.logger.Debug("gateway registration failed, retrying",
			"subscriber", reg.SubscriberID,
			"err", lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("register with gateway: %w (last attempt: %v)", ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}

// Subscribers lists gateway registrations, optionally filtered by role.
func (c *Client) Subscribers(ctx context.Context, role domain.Role) ([]domain.Registration, error) {
	endpoint := c.baseURL + "/subscribers"
	if role != "" {
		endpoint += "?role=" + url.QueryEscape(string(role))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build subscribers request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list subscribers: unexpected status %s", resp.Status)
	}

	var regs []domain.Registration
	if err := json.NewDecoder(resp.Body).Decode(&regs); err != nil {
		return nil, fmt.Errorf("decode subscribers: %w", err)
	}
	return regs, nil
}
