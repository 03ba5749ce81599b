package ports

import (
	"context"

	"github.com/gridswap/gridswap/pkg/domain"
)

// StateStore persists negotiation state across transition runs. Keys
// are opaque to the store; pkg/session builds them from the agent ID or
// the transaction ID, which is what separates an agent's long-lived
// simulation record from the per-negotiation records.
type StateStore interface {
	// Save persists the state under the given key, replacing any
	// previous value.
	Save(ctx context.Context, key string, state *domain.NegotiationState) error

	// Load retrieves the state for a key.
	// Returns domain.ErrStateNotFound if no record exists.
	Load(ctx context.Context, key string) (*domain.NegotiationState, error)

	// Delete removes the record for a key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys of every stored record.
	List(ctx context.Context) ([]string, error)
}
