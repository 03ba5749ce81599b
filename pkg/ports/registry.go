package ports

import (
	"context"

	"github.com/gridswap/gridswap/pkg/domain"
)

// Registry is the gateway's subscriber directory. The gateway fans a
// buyer's search out to every registered BPP and routes callbacks by
// subscriber ID.
type Registry interface {
	// Register adds or refreshes a subscriber entry. Re-registering the
	// same subscriber ID replaces the previous entry.
	Register(ctx context.Context, reg domain.Registration) error

	// Deregister removes a subscriber. Removing a missing subscriber is
	// not an error.
	Deregister(ctx context.Context, subscriberID string) error

	// Lookup returns the entry for a subscriber ID.
	// Returns domain.ErrAgentNotFound if the subscriber is unknown.
	Lookup(ctx context.Context, subscriberID string) (domain.Registration, error)

	// List returns every registration with the given role, or all
	// registrations when role is empty.
	List(ctx context.Context, role domain.Role) ([]domain.Registration, error)
}
