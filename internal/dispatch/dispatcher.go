// Package dispatch connects the transition engine to the world. A
// dispatcher owns the read-run-write cycle around engine runs: it locks
// the state key, loads or seeds the record, executes the run, settles
// the pending energy delta through the ledger, persists what should
// survive, and delivers the outbound request.
//
// The rules for what survives are scope dependent. Simulation records
// persist on every run. Transaction records persist only while the
// agent is bound to the negotiation, which keeps the seller side
// stateless: its replies derive entirely from the incoming envelope,
// and nothing is written. Terminal and abandoned negotiations retire
// their record, so a redelivered callback finds no state and is dropped
// by the phase guard.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gridswap/gridswap/internal/logging"
	"github.com/gridswap/gridswap/pkg/domain"
	"github.com/gridswap/gridswap/pkg/ports"
	"github.com/gridswap/gridswap/pkg/session"
)

// Dispatcher drives one agent's transition runs.
type Dispatcher struct {
	agentID    string
	sessions   *session.Manager
	engine     ports.Engine
	transport  ports.Transport
	ledger     ports.ProfileLedger
	gatewayURL string
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithGatewayURL sets the discovery gateway search requests are posted
// to.
func WithGatewayURL(url string) Option {
	return func(d *Dispatcher) {
		d.gatewayURL = url
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks for outbound sends.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = hooks
	}
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// New builds a dispatcher for the agent.
func New(agentID string, sessions *session.Manager, eng ports.Engine, transport ports.Transport, ledger ports.ProfileLedger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		agentID:   agentID,
		sessions:  sessions,
		engine:    eng,
		transport: transport,
		ledger:    ledger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.NewNop()
	}
	return d
}

// Tick runs one simulation cycle on the agent's simulation record.
func (d *Dispatcher) Tick(ctx context.Context) error {
	return d.invoke(ctx, session.SimKey(d.agentID), domain.TriggerSimulationCycle, nil)
}

// Deliver routes an inbound envelope to the transition it raises. The
// error reports infrastructure failures only; protocol-level drops,
// like a callback for a finished negotiation, are logged and absorbed.
func (d *Dispatcher) Deliver(ctx context.Context, env *domain.Envelope) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrMalformedPayload, err)
	}
	trigger, ok := domain.TriggerForAction(env.Context.Action)
	if !ok {
		return fmt.Errorf("action %q: %w", env.Context.Action, domain.ErrUnknownTrigger)
	}
	return d.invoke(ctx, session.TxnKey(env.Context.TransactionID), trigger, env)
}

func (d *Dispatcher) invoke(ctx context.Context, key string, trigger domain.Trigger, env *domain.Envelope) error {
	var outgoing *domain.OutboundRequest

	err := d.sessions.WithLock(ctx, key, func(ctx context.Context) error {
		st, err := d.loadOrSpawn(ctx, key)
		if err != nil {
			return err
		}
		prevTxn := st.ActiveTransactionID
		st.Trigger = trigger
		st.Incoming = env

		result, err := d.engine.Run(ctx, st)
		switch {
		case errors.Is(err, domain.ErrIllegalPhase) || errors.Is(err, domain.ErrUnknownTrigger):
			d.logger.Warn("dropping trigger",
				"agent", d.agentID,
				"key", key,
				"trigger", trigger,
				"err", err)
			return nil
		case err != nil:
			return fmt.Errorf("run %s on %s: %w", trigger, key, err)
		}

		if result.PendingDelta != nil {
			profile, err := d.ledger.Apply(ctx, *result.PendingDelta)
			if err != nil {
				return fmt.Errorf("settle %s on %s: %w", result.PendingDelta.Reason, key, err)
			}
			result.Profile = profile
			result.PendingDelta = nil
		}

		outgoing = result.Outgoing
		result.Outgoing = nil
		result.Incoming = nil

		return d.persist(ctx, key, prevTxn, result)
	})
	if err != nil {
		return err
	}

	// Delivery happens outside the lock so a slow peer never stalls
	// other runs on the same key.
	if outgoing != nil {
		d.send(ctx, outgoing)
	}
	return nil
}

// loadOrSpawn fetches the record for key with its profile refreshed
// from the ledger, or builds a fresh idle record when none exists. The
// fresh record is not saved here; whether it survives is decided after
// the run.
func (d *Dispatcher) loadOrSpawn(ctx context.Context, key string) (*domain.NegotiationState, error) {
	profile, err := d.ledger.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	st, err := d.sessions.Store().Load(ctx, key)
	if errors.Is(err, domain.ErrStateNotFound) {
		return domain.NewNegotiationState(d.agentID, profile), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	st.Profile = profile
	return st, nil
}

// persist applies the scope rules to the finished run.
func (d *Dispatcher) persist(ctx context.Context, key, prevTxn string, result *domain.NegotiationState) error {
	result.UpdatedAt = d.now().UTC()
	store := d.sessions.Store()

	if session.IsSimKey(key) {
		if err := store.Save(ctx, key, result); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
		switch {
		case result.ActiveTransactionID != "" && result.ActiveTransactionID != prevTxn:
			// A fresh search spawns the transaction record the seller
			// callbacks will land on.
			txnKey := session.TxnKey(result.ActiveTransactionID)
			if err := store.Save(ctx, txnKey, result); err != nil {
				return fmt.Errorf("spawn %s: %w", txnKey, err)
			}
		case prevTxn != "" && result.ActiveTransactionID == "":
			// The supervisor swept a stalled negotiation; retire its
			// record so late callbacks find nothing.
			if err := store.Delete(ctx, session.TxnKey(prevTxn)); err != nil {
				d.logger.Warn("failed to retire swept transaction record",
					"agent", d.agentID,
					"transaction", prevTxn,
					"err", err)
			}
		}
		return nil
	}

	if result.Phase.IsTerminal() || result.Trigger == domain.TriggerTransactionFailed {
		if err := store.Delete(ctx, key); err != nil {
			return fmt.Errorf("retire %s: %w", key, err)
		}
		if result.InTransaction() {
			d.releaseBuyer(ctx, result.ActiveTransactionID)
		}
		return nil
	}

	if result.InTransaction() {
		if err := store.Save(ctx, key, result); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

// releaseBuyer clears the simulation record's transaction binding once
// the negotiation it points at is over, so the next tick can open a new
// search instead of sweeping. Failure is logged, not returned: the
// sweep covers for it.
func (d *Dispatcher) releaseBuyer(ctx context.Context, txnID string) {
	simKey := session.SimKey(d.agentID)
	err := d.sessions.WithLock(ctx, simKey, func(ctx context.Context) error {
		store := d.sessions.Store()
		sim, err := store.Load(ctx, simKey)
		if errors.Is(err, domain.ErrStateNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if sim.ActiveTransactionID != txnID {
			return nil
		}
		sim.ClearTransaction()
		if profile, err := d.ledger.Snapshot(ctx); err == nil {
			sim.Profile = profile
		}
		sim.UpdatedAt = d.now().UTC()
		return store.Save(ctx, simKey, sim)
	})
	if err != nil {
		d.logger.Warn("failed to release simulation record, next sweep will",
			"agent", d.agentID,
			"transaction", txnID,
			"err", err)
	}
}

// send resolves the target and delivers the request. Failures are
// logged and counted, never returned: the protocol is fire-and-forget
// past the synchronous receipt, and the negotiation recovers through
// sweeps.
func (d *Dispatcher) send(ctx context.Context, out *domain.OutboundRequest) {
	var action domain.Action
	if out.Envelope != nil && out.Envelope.Context != nil {
		action = out.Envelope.Context.Action
	}

	target, err := d.target(out, action)
	ev := domain.DispatchEvent{AgentID: d.agentID, Action: action, Target: target}
	if err != nil {
		ev.Err = err
		d.hooks.Dispatch(ctx, ev)
		d.logger.Error("undeliverable request",
			"agent", d.agentID,
			"action", action,
			"err", err)
		return
	}

	start := d.now()
	err = d.transport.Send(ctx, target, out.Envelope)
	ev.Duration = d.now().Sub(start)
	ev.Err = err
	d.hooks.Dispatch(ctx, ev)
	if err != nil {
		d.logger.Warn("delivery failed",
			"agent", d.agentID,
			"action", action,
			"target", target,
			"err", err)
		return
	}
	d.logger.Debug("delivered", "agent", d.agentID, "action", action, "target", target)
}

// target picks the URL for an outbound request: an explicit override
// wins, searches go to the gateway, callbacks to the buyer's bap_uri,
// and the remaining requests to the chosen seller's bpp_uri.
func (d *Dispatcher) target(out *domain.OutboundRequest, action domain.Action) (string, error) {
	if out.TargetURL != "" {
		return out.TargetURL, nil
	}
	c := out.Envelope.Context
	if c == nil {
		return "", fmt.Errorf("request without context: %w", domain.ErrNoContext)
	}

	switch {
	case action == domain.ActionSearch:
		if d.gatewayURL == "" {
			return "", errors.New("no gateway configured for search")
		}
		return endpoint(d.gatewayURL, action), nil
	case action.IsCallback():
		if c.BapURI == "" {
			return "", errors.New("callback without bap_uri")
		}
		return endpoint(c.BapURI, action), nil
	default:
		if c.BppURI == "" {
			return "", fmt.Errorf("%s without bpp_uri", action)
		}
		return endpoint(c.BppURI, action), nil
	}
}

// endpoint joins a participant's base URI with the action path.
func endpoint(base string, action domain.Action) string {
	return strings.TrimRight(base, "/") + "/" + string(action)
}
