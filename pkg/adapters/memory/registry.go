package memory

import (
	"context"
	"sync"

	"github.com/gridswap/gridswap/pkg/domain"
)

// Registry implements ports.Registry in memory.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.Registration
}

// NewRegistry creates an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]domain.Registration),
	}
}

// Register adds or replaces the entry for reg.SubscriberID.
func (r *Registry) Register(ctx context.Context, reg domain.Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[reg.SubscriberID] = reg
	return nil
}

// Deregister removes a subscriber. Missing IDs are a no-op.
func (r *Registry) Deregister(ctx context.Context, subscriberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, subscriberID)
	return nil
}

// Lookup returns the entry for a subscriber ID.
func (r *Registry) Lookup(ctx context.Context, subscriberID string) (domain.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[subscriberID]
	if !ok {
		return domain.Registration{}, domain.ErrAgentNotFound
	}
	return reg, nil
}

// List returns registrations with the given role, or all of them when
// role is empty.
func (r *Registry) List(ctx context.Context, role domain.Role) ([]domain.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]domain.Registration, 0, len(r.entries))
	for _, reg := range r.entries {
		if role == "" || reg.Role == role {
			regs = append(regs, reg)
		}
	}
	return regs, nil
}
