// Package gateway implements the discovery hub of a market. Sellers
// register their endpoints; a buyer's search is acknowledged and fanned
// out to every registered seller, which answer the buyer directly on
// its callback URI. The gateway holds no negotiation state at all.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gridswap/gridswap/internal/logging"
	"github.com/gridswap/gridswap/pkg/domain"
	"github.com/gridswap/gridswap/pkg/ports"
)

// defaultForwardTimeout bounds each background forward to one seller.
const defaultForwardTimeout = 10 * time.Second

// Gateway is the discovery service.
type Gateway struct {
	registry  ports.Registry
	transport ports.Transport
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	inflight sync.WaitGroup
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithForwardTimeout bounds each background search forward.
func WithForwardTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = timeout
	}
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New builds a gateway over the given registry and transport.
func New(registry ports.Registry, transport ports.Transport, opts ...Option) *Gateway {
	g := &Gateway{
		registry:  registry,
		transport: transport,
		timeout:   defaultForwardTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.NewNop()
	}
	return g
}

// Handler returns the chi router with every route mounted.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/register", g.handleRegister)
	r.Post("/search", g.handleSearch)
	r.Get("/subscribers", g.handleSubscribers)
	r.Get("/healthz", g.handleHealth)
	return r
}

// Drain blocks until background forwards finish or ctx expires.
func (g *Gateway) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleRegister stores or refreshes a subscriber entry.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		http.Error(w, "invalid registration body", http.StatusBadRequest)
		return
	}
	reg.RegisteredAt = g.now().UTC()

	if err := g.registry.Register(r.Context(), reg); err != nil {
		g.logger.Warn("registration rejected", "subscriber", reg.SubscriberID, "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g.logger.Info("subscriber registered",
		"subscriber", reg.SubscriberID,
		"uri", reg.SubscriberURI,
		"type", reg.Role)
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleSearch acknowledges the buyer and forwards its search to every
// registered seller in the background, so a slow seller never blocks
// the receipt.
func (g *Gateway) handleSearch(w http.ResponseWriter, r *http.Request) {
	var env domain.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		g.writeJSON(w, http.StatusBadRequest, domain.NackEnvelope())
		return
	}
	if err := env.Validate(); err != nil {
		g.logger.Warn("rejecting invalid search", "err", err)
		g.writeJSON(w, http.StatusBadRequest, domain.NackEnvelope())
		return
	}

	sellers, err := g.registry.List(r.Context(), domain.RoleBPP)
	if err != nil {
		g.logger.Error("registry list failed", "err", err)
		g.writeJSON(w, http.StatusInternalServerError, domain.NackEnvelope())
		return
	}

	g.logger.Info("broadcasting search",
		"transaction", env.Context.TransactionID,
		"buyer", env.Context.BapID,
		"sellers", len(sellers))

	for _, seller := range sellers {
		// A prosumer registered both ways must not be asked to answer
		// its own search.
		if seller.SubscriberID == env.Context.BapID {
			continue
		}
		g.forward(seller, &env)
	}

	g.writeJSON(w, http.StatusOK, domain.AckEnvelope())
}

// forward delivers the search to one seller on a background goroutine.
func (g *Gateway) forward(seller domain.Registration, env *domain.Envelope) {
	g.inflight.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	go func() {
		defer g.inflight.Done()
		defer cancel()

		target := endpoint(seller.SubscriberURI, domain.ActionSearch)
		if err := g.transport.Send(ctx, target, env); err != nil {
			g.logger.Warn("search forward failed",
				"transaction", env.Context.TransactionID,
				"seller", seller.SubscriberID,
				"err", err)
			return
		}
		g.logger.Debug("search forwarded",
			"transaction", env.Context.TransactionID,
			"seller", seller.SubscriberID)
	}()
}

// handleSubscribers lists registrations, optionally filtered with the
// role query parameter.
func (g *Gateway) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}

	regs, err := g.registry.List(r.Context(), role)
	if err != nil {
		g.logger.Error("registry list failed", "err", err)
		http.Error(w, "registry unavailable", http.StatusInternalServerError)
		return
	}
	g.writeJSON(w, http.StatusOK, regs)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("response encode failed", "err", err)
	}
}

// endpoint joins a subscriber's base URI with the action path.
func endpoint(base string, action domain.Action) string {
	return strings.TrimRight(base, "/") + "/" + string(action)
}
