package ports

import (
	"context"

	"github.com/gridswap/gridswap/pkg/domain"
)

// ProfileLedger serializes all mutation of an agent's energy position.
// Handlers describe changes as domain.EnergyDelta values; the ledger
// applies them one at a time so concurrent transition runs can never
// lose an update to the profile.
type ProfileLedger interface {
	// Apply moves the stored energy by the delta, clamped to
	// [0, MaxCapacityKWh], and returns the profile after the change.
	Apply(ctx context.Context, delta domain.EnergyDelta) (*domain.AgentProfile, error)

	// Snapshot returns a copy of the current profile.
	Snapshot(ctx context.Context) (*domain.AgentProfile, error)
}
