// Package httpx implements the HTTP side of the protocol: a client
// that delivers envelopes to peer agents and expects the synchronous
// ACK receipt back.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gridswap/gridswap/pkg/domain"
)

const defaultTimeout = 10 * time.Second

// maxAckBody caps how much of a peer's response is read while decoding
// the receipt.
const maxAckBody = 64 << 10

// Transport implements ports.Transport over JSON-on-POST.
type Transport struct {
	client *http.Client
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient swaps the underlying HTTP client, for proxies or test
// doubles.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		t.client = client
	}
}

// WithTimeout bounds each delivery attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.client.Timeout = timeout
	}
}

// New creates an HTTP transport.
func New(opts ...Option) *Transport {
	transport := &Transport{
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(transport)
	}
	return transport
}

// Send posts the envelope to targetURL and verifies the peer ACKed it.
func (t *Transport) Send(ctx context.Context, targetURL string, env *domain.Envelope) error {
	action := domain.Action("unknown")
	if env.Context != nil {
		action = env.Context.Action
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s to %s: %w", action, targetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxAckBody))
		return fmt.Errorf("post %s to %s: unexpected status %s", action, targetURL, resp.Status)
	}

	var receipt domain.Envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAckBody)).Decode(&receipt); err != nil {
		return fmt.Errorf("decode %s receipt from %s: %w", action, targetURL, err)
	}
	if receipt.Message == nil || receipt.Message.Ack == nil {
		return fmt.Errorf("post %s to %s: response carries no ack", action, targetURL)
	}
	if receipt.Message.Ack.Status != domain.AckStatusACK {
		return fmt.Errorf("post %s to %s: peer answered %s", action, targetURL, receipt.Message.Ack.Status)
	}
	return nil
}
