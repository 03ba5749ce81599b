package ports

import (
	"context"

	"github.com/gridswap/gridswap/pkg/domain"
)

// Engine runs one transition: it routes state.Trigger to a handler
// chain and returns the rewritten state. Implementations never touch
// stores or the network; persistence and delivery belong to the
// dispatch loop around the engine.
type Engine interface {
	// Run executes the transition for state.Trigger. The input state is
	// not mutated; the returned state is a derived copy. An unroutable
	// trigger returns the input state unchanged together with
	// domain.ErrUnknownTrigger.
	Run(ctx context.Context, state *domain.NegotiationState) (*domain.NegotiationState, error)
}
