// Package sim drives an agent's clock. Each cycle applies the agent's
// ambient energy drift through the ledger, then runs a simulation tick
// so the supervisor can react to the new position.
package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/gridswap/gridswap/internal/logging"
	"github.com/gridswap/gridswap/pkg/domain"
	"github.com/gridswap/gridswap/pkg/ports"
)

const (
	// DefaultInterval is the pause between simulation cycles.
	DefaultInterval = 20 * time.Second

	// DefaultStartDelay holds the first cycle back so the gateway and
	// the other agents can finish booting.
	DefaultStartDelay = 5 * time.Second
)

// Ticker runs one simulation cycle. Implemented by the dispatcher.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Loop periodically advances one agent's simulation.
type Loop struct {
	agentID    string
	ticker     Ticker
	ledger     ports.ProfileLedger
	interval   time.Duration
	startDelay time.Duration
	driftKWh   float64
	logger     *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithInterval sets the pause between cycles.
func WithInterval(interval time.Duration) Option {
	return func(l *Loop) {
		l.interval = interval
	}
}

// WithStartDelay sets the boot delay before the first cycle.
func WithStartDelay(delay time.Duration) Option {
	return func(l *Loop) {
		l.startDelay = delay
	}
}

// WithDrift sets the signed energy change applied each cycle: positive
// models generation, negative consumption. Zero disables drift.
func WithDrift(kwh float64) Option {
	return func(l *Loop) {
		l.driftKWh = kwh
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New builds a simulation loop for the agent.
func New(agentID string, ticker Ticker, ledger ports.ProfileLedger, opts ...Option) *Loop {
	l := &Loop{
		agentID:    agentID,
		ticker:     ticker,
		ledger:     ledger,
		interval:   DefaultInterval,
		startDelay: DefaultStartDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logging.NewNop()
	}
	return l
}

// Run cycles until ctx ends. Cycle failures are logged and the loop
// continues; only ctx stops it.
func (l *Loop) Run(ctx context.Context) error {
	if l.startDelay > 0 {
		l.logger.Info("simulation loop starting",
			"agent", l.agentID,
			"delay", l.startDelay,
			"interval", l.interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.startDelay):
		}
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		l.Step(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step runs a single cycle: drift first, then the tick.
func (l *Loop) Step(ctx context.Context) {
	if l.driftKWh != 0 {
		reason := domain.DeltaGeneration
		if l.driftKWh < 0 {
			reason = domain.DeltaConsumption
		}
		profile, err := l.ledger.Apply(ctx, domain.EnergyDelta{
			AgentID: l.agentID,
			KWh:     l.driftKWh,
			Reason:  reason,
		})
		if err != nil {
			l.logger.Warn("drift apply failed", "agent", l.agentID, "err", err)
		} else {
			l.logger.Debug("drift applied",
				"agent", l.agentID,
				"kwh", l.driftKWh,
				"stored_kwh", profile.CurrentEnergyKWh)
		}
	}

	if err := l.ticker.Tick(ctx); err != nil {
		l.logger.Error("simulation cycle failed", "agent", l.agentID, "err", err)
	}
}
