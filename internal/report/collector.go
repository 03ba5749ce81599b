package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gridswap/gridswap/internal/logging"
)

// defaultPollTimeout bounds one status request so a single dead agent
// cannot stall the whole snapshot.
const defaultPollTimeout = 5 * time.Second

// Collector polls a fixed set of agent base URLs for their status.
type Collector struct {
	urls   []string
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithHTTPClient replaces the polling client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Collector) {
		c.client = client
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// New builds a collector over the given agent base URLs.
func New(urls []string, opts ...Option) *Collector {
	c := &Collector{
		urls: urls,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: defaultPollTimeout}
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c
}

// Snapshot polls every agent concurrently and assembles the fleet
// report. A failed poll becomes that agent's error entry; only a
// canceled context fails the snapshot as a whole.
func (c *Collector) Snapshot(ctx context.Context) (*FleetReport, error) {
	report := &FleetReport{
		Timestamp: c.now(),
		Agents:    make([]AgentReport, len(c.urls)),
	}

	var wg sync.WaitGroup
	for i, url := range c.urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			entry := AgentReport{URL: url}
			status, err := c.poll(ctx, url)
			if err != nil {
				c.logger.Warn("status poll failed", "url", url, "err", err)
				entry.Err = err.Error()
			} else {
				entry.Status = status
			}
			report.Agents[i] = entry
		}(i, url)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect fleet snapshot: %w", err)
	}
	return report, nil
}

// URLs returns the polled agent base URLs.
func (c *Collector) URLs() []string {
	return c.urls
}

// Poll fetches the status of a single agent by base URL, which does
// not have to be one of the configured fleet.
func (c *Collector) Poll(ctx context.Context, baseURL string) (*AgentStatus, error) {
	return c.poll(ctx, baseURL)
}

func (c *Collector) poll(ctx context.Context, baseURL string) (*AgentStatus, error) {
	endpoint := strings.TrimRight(baseURL, "/") + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("poll %s: unexpected status %s", endpoint, resp.Status)
	}

	var status AgentStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status from %s: %w", endpoint, err)
	}
	return &status, nil
}
