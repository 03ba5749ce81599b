// Package server exposes an agent's protocol endpoint. Every wire
// action is a POST of a JSON envelope; the server validates, answers
// the synchronous ACK, and hands the envelope to the dispatcher on a
// background goroutine. The negotiation itself continues through
// asynchronous callbacks, never through the HTTP response.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gridswap/gridswap/internal/logging"
	"github.com/gridswap/gridswap/pkg/domain"
	"github.com/gridswap/gridswap/pkg/ports"
	"github.com/gridswap/gridswap/pkg/session"
)

// defaultDispatchTimeout bounds the background processing of one
// envelope after its ACK went out.
const defaultDispatchTimeout = 30 * time.Second

// Dispatcher is the part of internal/dispatch the server needs.
type Dispatcher interface {
	Deliver(ctx context.Context, env *domain.Envelope) error
}

// Server is the HTTP face of one agent.
type Server struct {
	agentID    string
	dispatcher Dispatcher
	ledger     ports.ProfileLedger
	sessions   *session.Manager
	logger     *slog.Logger
	metrics    http.Handler
	timeout    time.Duration

	inflight sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts a handler at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithDispatchTimeout bounds background envelope processing.
func WithDispatchTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.timeout = timeout
	}
}

// New builds the server for an agent.
func New(agentID string, dispatcher Dispatcher, ledger ports.ProfileLedger, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		agentID:    agentID,
		dispatcher: dispatcher,
		ledger:     ledger,
		sessions:   sessions,
		timeout:    defaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	return s
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/{action}", s.handleAction)
	r.Get("/profile", s.handleProfile)
	r.Get("/status", s.handleStatus)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Get("/metrics", s.metrics.ServeHTTP)
	}
	return r
}

// Drain blocks until background envelope processing finishes or ctx
// expires.
func (s *Server) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleAction accepts one protocol envelope. The response is only the
// receipt; the reply the peer is actually waiting for arrives later on
// its own callback endpoint.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := domain.Action(chi.URLParam(r, "action"))
	if !action.Valid() {
		s.nack(w, http.StatusNotFound)
		return
	}

	var env domain.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.logger.Warn("rejecting undecodable envelope", "agent", s.agentID, "action", action, "err", err)
		s.nack(w, http.StatusBadRequest)
		return
	}
	if env.Context != nil && env.Context.Action == "" {
		env.Context.Action = action
	}
	if err := env.Validate(); err != nil {
		s.logger.Warn("rejecting invalid envelope", "agent", s.agentID, "action", action, "err", err)
		s.nack(w, http.StatusBadRequest)
		return
	}
	if env.Context.Action != action {
		s.logger.Warn("rejecting envelope with mismatched action",
			"agent", s.agentID,
			"path_action", action,
			"context_action", env.Context.Action)
		s.nack(w, http.StatusBadRequest)
		return
	}

	s.inflight.Add(1)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.timeout)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if err := s.dispatcher.Deliver(ctx, &env); err != nil {
			s.logger.Error("envelope processing failed",
				"agent", s.agentID,
				"action", env.Context.Action,
				"transaction", env.Context.TransactionID,
				"err", err)
		}
	}()

	s.writeJSON(w, http.StatusOK, domain.AckEnvelope())
}

// handleProfile reports the agent's current energy position.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.ledger.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("profile snapshot failed", "agent", s.agentID, "err", err)
		http.Error(w, "profile unavailable", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

type statusResponse struct {
	AgentID             string           `json:"agent_id"`
	AgentType           domain.AgentType `json:"agent_type"`
	Phase               domain.Phase     `json:"phase"`
	ActiveTransactionID string           `json:"active_transaction_id,omitempty"`
	StoredKWh           float64          `json:"stored_kwh"`
	CapacityKWh         float64          `json:"capacity_kwh"`
	FillRatio           float64          `json:"fill_ratio"`
	UpdatedAt           time.Time        `json:"updated_at,omitempty"`
}

// handleStatus reports the agent's position plus the simulation
// record's view of any in-flight negotiation.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	profile, err := s.ledger.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("profile snapshot failed", "agent", s.agentID, "err", err)
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}

	resp := statusResponse{
		AgentID:     s.agentID,
		AgentType:   profile.AgentType,
		Phase:       domain.PhaseIdle,
		StoredKWh:   profile.CurrentEnergyKWh,
		CapacityKWh: profile.MaxCapacityKWh,
		FillRatio:   profile.FillRatio(),
	}

	sim, err := s.sessions.Load(r.Context(), session.SimKey(s.agentID))
	switch {
	case errors.Is(err, domain.ErrStateNotFound):
		// No tick has run yet; idle defaults stand.
	case err != nil:
		s.logger.Error("status load failed", "agent", s.agentID, "err", err)
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	default:
		resp.Phase = sim.Phase
		resp.ActiveTransactionID = sim.ActiveTransactionID
		resp.UpdatedAt = sim.UpdatedAt
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) nack(w http.ResponseWriter, code int) {
	s.writeJSON(w, code, domain.NackEnvelope())
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "agent", s.agentID, "err", err)
	}
}
