// Package engine implements the negotiation state machine: a router
// from triggers to transition handlers, and the buyer and seller
// handler sets themselves.
//
// The engine is deliberately I/O free. A run takes a state whose
// Trigger field names the event, walks the handler chain for it, and
// returns the rewritten state. Sending the Outgoing request, applying
// the PendingDelta, and persisting the result all happen in
// internal/dispatch, outside the machine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gridswap/gridswap/internal/logging"
	"github.com/gridswap/gridswap/pkg/domain"
	"github.com/gridswap/gridswap/pkg/policy"
	"github.com/gridswap/gridswap/pkg/ports"
)

const (
	// offerValidity is how long a cataloged offer stays selectable.
	offerValidity = 60 * time.Second

	// settlementOfferValidity is the shelf life of the offer snapshot
	// embedded in a contract at confirmation.
	settlementOfferValidity = 10 * time.Second

	// fulfillmentDelay is how far after confirmation delivery begins.
	fulfillmentDelay = 5 * time.Second

	// sellReadyRatio is the fill ratio above which the supervisor
	// reports an agent as holding sellable surplus.
	sellReadyRatio = 0.7

	// maxChain bounds internal trigger chaining within one run. The
	// routing tables are acyclic, so hitting the bound means a handler
	// regression, not a long negotiation.
	maxChain = 8
)

// HandlerFunc is one transition step. Handlers own the state they
// receive, mutate it freely, and return it; the engine clones before
// the first hop so callers never see partial writes.
type HandlerFunc func(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error)

// Engine routes triggers to handlers. Implements ports.Engine.
type Engine struct {
	pricing      ports.PricingPolicy
	availability ports.AvailabilityPolicy
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	callbackURI  string
	now          func() time.Time
	newID        func() string

	routes map[domain.Trigger]route
	chains map[string]map[domain.Trigger]bool
}

type route struct {
	name string
	fn   HandlerFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithPricingPolicy overrides the seller's commercial terms.
func WithPricingPolicy(p ports.PricingPolicy) Option {
	return func(e *Engine) {
		e.pricing = p
	}
}

// WithAvailabilityPolicy overrides the participation rules.
func WithAvailabilityPolicy(a ports.AvailabilityPolicy) Option {
	return func(e *Engine) {
		e.availability = a
	}
}

// WithCallbackURI sets the public URI other agents use to reach this
// one. It is stamped into outgoing contexts as bap_uri or bpp_uri
// depending on the side being played.
func WithCallbackURI(uri string) Option {
	return func(e *Engine) {
		e.callbackURI = uri
	}
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator injects an ID source for deterministic tests.
// Defaults to UUIDv4.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// New builds an engine with the standard market policies unless
// overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.pricing == nil {
		e.pricing = policy.NewStandardPricing()
	}
	if e.availability == nil {
		e.availability = policy.NewStandardAvailability()
	}

	e.routes = map[domain.Trigger]route{
		domain.TriggerSimulationCycle: {"supervisor", e.supervise},
		domain.TriggerStartBAPFlow:    {"initiate_search", e.startSearch},

		domain.TriggerIncomingOnSearch:  {"evaluate_offers", e.evaluateOffers},
		domain.TriggerSelectionMade:     {"send_select", e.sendSelect},
		domain.TriggerIncomingOnSelect:  {"send_init", e.sendInit},
		domain.TriggerIncomingOnInit:    {"send_confirm", e.sendConfirm},
		domain.TriggerIncomingOnConfirm: {"complete_transaction", e.completeTransaction},

		domain.TriggerIncomingSearch:  {"formulate_offer", e.formulateOffer},
		domain.TriggerIncomingSelect:  {"process_selection", e.processSelection},
		domain.TriggerIncomingInit:    {"process_init", e.processInit},
		domain.TriggerIncomingConfirm: {"process_confirmation", e.processConfirmation},
	}

	// Decision points: after these handlers, the named internal triggers
	// continue the run through the routing table. Anything else ends it.
	e.chains = map[string]map[domain.Trigger]bool{
		"supervisor":      {domain.TriggerStartBAPFlow: true},
		"evaluate_offers": {domain.TriggerSelectionMade: true},
	}
	return e
}

// Run executes the transition chain for state.Trigger.
func (e *Engine) Run(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	if st == nil {
		return nil, fmt.Errorf("run: nil state")
	}
	trigger := st.Trigger
	if !st.Phase.Admits(trigger) {
		e.logger.Warn("trigger rejected by phase guard",
			"agent", st.AgentID,
			"trigger", trigger,
			"phase", st.Phase,
			"transaction", st.ActiveTransactionID)
		return st, fmt.Errorf("%s in phase %s: %w", trigger, st.Phase, domain.ErrIllegalPhase)
	}
	r, ok := e.routes[trigger]
	if !ok {
		return st, fmt.Errorf("%q: %w", trigger, domain.ErrUnknownTrigger)
	}

	cur := st.Clone()
	for hop := 0; ; hop++ {
		if hop >= maxChain {
			return nil, fmt.Errorf("run for %s exceeded %d chained handlers", trigger, maxChain)
		}

		before := cur.Phase
		start := e.now()
		ev := domain.HandlerEvent{
			AgentID:       cur.AgentID,
			TransactionID: transactionID(cur),
			Trigger:       cur.Trigger,
			Handler:       r.name,
			Start:         start,
		}
		e.hooks.HandlerStart(ctx, ev)

		out, err := r.fn(ctx, cur)
		ev.Duration = e.now().Sub(start)
		ev.Err = err
		e.hooks.HandlerFinish(ctx, ev)
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", r.name, err)
		}
		if out == nil {
			out = cur
		}
		if out.Phase != before {
			e.hooks.PhaseChange(ctx, domain.PhaseChangeEvent{
				AgentID:       out.AgentID,
				TransactionID: transactionID(out),
				From:          before,
				To:            out.Phase,
			})
		}

		if !e.chains[r.name][out.Trigger] {
			return out, nil
		}
		next, ok := e.routes[out.Trigger]
		if !ok {
			return out, nil
		}
		r, cur = next, out
	}
}

// transactionID picks the most specific transaction identity available
// for logs and events.
func transactionID(st *domain.NegotiationState) string {
	if st.ActiveTransactionID != "" {
		return st.ActiveTransactionID
	}
	if st.Incoming != nil && st.Incoming.Context != nil {
		return st.Incoming.Context.TransactionID
	}
	return ""
}

// incomingContext returns the validated context of the envelope that
// raised the current trigger.
func incomingContext(st *domain.NegotiationState) (*domain.Context, error) {
	if st.Incoming == nil || st.Incoming.Context == nil {
		return nil, domain.ErrNoContext
	}
	return st.Incoming.Context, nil
}

// incomingOrder returns the order payload of the incoming envelope, or
// nil when there is none.
func incomingOrder(st *domain.NegotiationState) *domain.Order {
	if st.Incoming == nil || st.Incoming.Message == nil {
		return nil
	}
	return st.Incoming.Message.Order
}
