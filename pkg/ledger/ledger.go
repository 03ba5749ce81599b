// Package ledger owns agent profiles. Each Ledger is a small actor: a
// goroutine holding the profile, fed by a mailbox of EnergyDelta
// requests. Serializing all mutation through one goroutine is what
// makes concurrent settlements safe; nothing else in the process writes
// CurrentEnergyKWh.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gridswap/gridswap/internal/logging"
	"github.com/gridswap/gridswap/pkg/domain"
)

// ErrClosed is returned by operations on a closed ledger.
var ErrClosed = errors.New("ledger closed")

// mailboxSize buffers bursts of deltas so settlement-heavy ticks do not
// block dispatch goroutines.
const mailboxSize = 16

type request struct {
	delta *domain.EnergyDelta // nil requests a snapshot
	reply chan result
}

type result struct {
	profile *domain.AgentProfile
	err     error
}

// Ledger serializes access to one agent's profile.
// Implements ports.ProfileLedger.
type Ledger struct {
	agentID   string
	logger    *slog.Logger
	requests  chan request
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New validates the starting profile and starts the actor goroutine.
// Close releases it.
func New(profile *domain.AgentProfile, opts ...Option) (*Ledger, error) {
	if profile == nil {
		return nil, domain.ErrNoProfile
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	l := &Ledger{
		agentID:  profile.AgentID,
		requests: make(chan request, mailboxSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logging.NewNop()
	}

	go l.run(profile.Clone())
	return l, nil
}

// run is the actor loop. It alone touches the profile.
func (l *Ledger) run(profile *domain.AgentProfile) {
	for {
		select {
		case <-l.done:
			return
		case req := <-l.requests:
			if req.delta == nil {
				req.reply <- result{profile: profile.Clone()}
				continue
			}
			req.reply <- l.apply(profile, req.delta)
		}
	}
}

func (l *Ledger) apply(profile *domain.AgentProfile, delta *domain.EnergyDelta) result {
	if delta.AgentID != "" && delta.AgentID != l.agentID {
		return result{err: fmt.Errorf("delta for %q routed to ledger of %q", delta.AgentID, l.agentID)}
	}

	next := profile.CurrentEnergyKWh + delta.KWh
	clamped := next
	if clamped > profile.MaxCapacityKWh {
		clamped = profile.MaxCapacityKWh
	}
	if clamped < 0 {
		clamped = 0
	}
	if clamped != next {
		l.logger.Warn("energy delta clamped to capacity",
			"agent", l.agentID,
			"reason", delta.Reason,
			"requested_kwh", delta.KWh,
			"stored_kwh", clamped)
	}
	profile.CurrentEnergyKWh = clamped

	l.logger.Debug("energy delta applied",
		"agent", l.agentID,
		"reason", delta.Reason,
		"kwh", delta.KWh,
		"transaction", delta.TransactionID,
		"stored_kwh", profile.CurrentEnergyKWh)
	return result{profile: profile.Clone()}
}

// Apply moves the stored energy by the delta, clamped to
// [0, MaxCapacityKWh], and returns the profile after the change.
func (l *Ledger) Apply(ctx context.Context, delta domain.EnergyDelta) (*domain.AgentProfile, error) {
	return l.send(ctx, request{delta: &delta, reply: make(chan result, 1)})
}

// Snapshot returns a copy of the current profile.
func (l *Ledger) Snapshot(ctx context.Context) (*domain.AgentProfile, error) {
	return l.send(ctx, request{reply: make(chan result, 1)})
}

func (l *Ledger) send(ctx context.Context, req request) (*domain.AgentProfile, error) {
	select {
	case l.requests <- req:
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.profile, res.err
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the actor. Pending requests may go unanswered; callers
// blocked in Apply or Snapshot return ErrClosed.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}
