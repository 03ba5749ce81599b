package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridswap/gridswap/pkg/domain"
)

// RunStateStoreContract verifies that a StateStore implementation
// honors the interface contract. Adapter packages call it from their
// own tests so every backend proves the same behavior.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405.000")

	t.Run("save and load", func(t *testing.T) {
		state := domain.NewNegotiationState("agent-1", &domain.AgentProfile{
			AgentID:          "agent-1",
			AgentType:        domain.AgentHousehold,
			CurrentEnergyKWh: 4,
			MaxCapacityKWh:   15,
		})
		state.Phase = domain.PhaseAwaitingOffers
		state.ActiveTransactionID = "txn-1"
		state.ReceivedOffers = []domain.EnergyOffer{
			{OfferID: "offer-1", ProviderID: "utility-1", QuantityKWh: 10, PricePerKWh: 0.25},
		}

		require.NoError(t, store.Save(ctx, key, state))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseAwaitingOffers, loaded.Phase)
		assert.Equal(t, "txn-1", loaded.ActiveTransactionID)
		require.Len(t, loaded.ReceivedOffers, 1)
		assert.Equal(t, 0.25, loaded.ReceivedOffers[0].PricePerKWh)
		require.NotNil(t, loaded.Profile)
		assert.Equal(t, 4.0, loaded.Profile.CurrentEnergyKWh)
	})

	t.Run("loaded state is a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		loaded.Profile.CurrentEnergyKWh = 999

		again, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 4.0, again.Profile.CurrentEnergyKWh,
			"mutating a loaded state must not leak into the store")
	})

	t.Run("load missing", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+key)
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, key))
		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrStateNotFound)

		// Deleting again is a no-op, not an error.
		assert.NoError(t, store.Delete(ctx, key))
	})

	t.Run("list", func(t *testing.T) {
		k1, k2 := key+"-1", key+"-2"
		require.NoError(t, store.Save(ctx, k1, domain.NewNegotiationState("a", nil)))
		require.NoError(t, store.Save(ctx, k2, domain.NewNegotiationState("b", nil)))
		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}

// RunRegistryContract verifies that a Registry implementation honors
// the interface contract.
func RunRegistryContract(t *testing.T, reg Registry) {
	ctx := context.Background()

	seller := domain.Registration{
		SubscriberID:  "utility-1",
		SubscriberURI: "http://localhost:9002",
		Role:          domain.RoleBPP,
		AgentType:     domain.AgentUtility,
	}
	buyer := domain.Registration{
		SubscriberID:  "household-1",
		SubscriberURI: "http://localhost:9001",
		Role:          domain.RoleBAP,
		AgentType:     domain.AgentHousehold,
	}

	t.Run("register and lookup", func(t *testing.T) {
		require.NoError(t, reg.Register(ctx, seller))
		require.NoError(t, reg.Register(ctx, buyer))

		got, err := reg.Lookup(ctx, "utility-1")
		require.NoError(t, err)
		assert.Equal(t, seller.SubscriberURI, got.SubscriberURI)
		assert.Equal(t, domain.RoleBPP, got.Role)
	})

	t.Run("re-register replaces", func(t *testing.T) {
		moved := seller
		moved.SubscriberURI = "http://localhost:9102"
		require.NoError(t, reg.Register(ctx, moved))

		got, err := reg.Lookup(ctx, "utility-1")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9102", got.SubscriberURI)

		all, err := reg.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2, "replacement must not grow the registry")
	})

	t.Run("list filters by role", func(t *testing.T) {
		bpps, err := reg.List(ctx, domain.RoleBPP)
		require.NoError(t, err)
		require.Len(t, bpps, 1)
		assert.Equal(t, "utility-1", bpps[0].SubscriberID)

		baps, err := reg.List(ctx, domain.RoleBAP)
		require.NoError(t, err)
		require.Len(t, baps, 1)
		assert.Equal(t, "household-1", baps[0].SubscriberID)
	})

	t.Run("lookup missing", func(t *testing.T) {
		_, err := reg.Lookup(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrAgentNotFound)
	})

	t.Run("deregister", func(t *testing.T) {
		require.NoError(t, reg.Deregister(ctx, "household-1"))
		_, err := reg.Lookup(ctx, "household-1")
		assert.ErrorIs(t, err, domain.ErrAgentNotFound)

		assert.NoError(t, reg.Deregister(ctx, "household-1"))
	})
}
