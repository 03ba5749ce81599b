package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/gridswap/gridswap/pkg/domain"
)

// Registry implements ports.Registry on a Redis hash so every agent in
// a fleet discovers the same subscriber set.
type Registry struct {
	client *backend.Client
	key    string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryKey overrides the hash key that holds registrations.
func WithRegistryKey(key string) RegistryOption {
	return func(r *Registry) {
		r.key = key
	}
}

// NewRegistry creates a registry over an existing client.
func NewRegistry(client *backend.Client, opts ...RegistryOption) *Registry {
	reg := &Registry{
		client: client,
		key:    "gridswap:registry",
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Register validates and stores the registration, replacing any
// previous entry for the same subscriber.
func (r *Registry) Register(ctx context.Context, reg domain.Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshal registration: %w", err)
	}
	if err := r.client.HSet(ctx, r.key, reg.SubscriberID, data).Err(); err != nil {
		return fmt.Errorf("register subscriber: %w", err)
	}
	return nil
}

// Lookup returns the registration for the subscriber.
func (r *Registry) Lookup(ctx context.Context, subscriberID string) (domain.Registration, error) {
	val, err := r.client.HGet(ctx, r.key, subscriberID).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Registration{}, fmt.Errorf("subscriber %q: %w", subscriberID, domain.ErrAgentNotFound)
		}
		return domain.Registration{}, fmt.Errorf("lookup subscriber: %w", err)
	}
	var reg domain.Registration
	if err := json.Unmarshal([]byte(val), &reg); err != nil {
		return domain.Registration{}, fmt.Errorf("unmarshal registration: %w", err)
	}
	return reg, nil
}

// List returns registrations for the role, or all of them when role is
// empty.
func (r *Registry) List(ctx context.Context, role domain.Role) ([]domain.Registration, error) {
	entries, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	regs := make([]domain.Registration, 0, len(entries))
	for id, val := range entries {
		var reg domain.Registration
		if err := json.Unmarshal([]byte(val), &reg); err != nil {
			return nil, fmt.Errorf("unmarshal registration %q: %w", id, err)
		}
		if role != "" && reg.Role != role {
			continue
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// Deregister removes the subscriber. Removing an unknown subscriber is
// not an error.
func (r *Registry) Deregister(ctx context.Context, subscriberID string) error {
	return r.client.HDel(ctx, r.key, subscriberID).Err()
}
