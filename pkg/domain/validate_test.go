package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentProfileValidate(t *testing.T) {
	valid := AgentProfile{
		AgentID:          "household-1",
		AgentType:        AgentHousehold,
		CurrentEnergyKWh: 4.0,
		MaxCapacityKWh:   15.0,
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		p := valid
		p.AgentType = "datacenter"
		require.Error(t, p.Validate())
	})

	t.Run("overfull storage", func(t *testing.T) {
		p := valid
		p.CurrentEnergyKWh = 20.0
		require.Error(t, p.Validate())
	})

	t.Run("fill ratio", func(t *testing.T) {
		assert.InDelta(t, 4.0/15.0, valid.FillRatio(), 1e-9)
		empty := AgentProfile{}
		assert.Zero(t, empty.FillRatio())
	})
}

func TestEnergyOfferValidate(t *testing.T) {
	valid := EnergyOffer{
		OfferID:     "offer-1",
		ProviderID:  "utility-1",
		QuantityKWh: 10,
		PricePerKWh: 0.25,
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("zero quantity", func(t *testing.T) {
		o := valid
		o.QuantityKWh = 0
		err := o.Validate()
		require.ErrorIs(t, err, ErrInvalidOffer)
	})

	t.Run("negative price", func(t *testing.T) {
		o := valid
		o.PricePerKWh = -0.1
		require.ErrorIs(t, o.Validate(), ErrInvalidOffer)
	})
}

func TestEnergyOfferExpired(t *testing.T) {
	now := time.Now()
	o := EnergyOffer{ValidUntil: now.Add(-time.Second)}
	assert.True(t, o.Expired(now))

	o.ValidUntil = now.Add(time.Minute)
	assert.False(t, o.Expired(now))

	// No validity window means the offer never goes stale.
	o.ValidUntil = time.Time{}
	assert.False(t, o.Expired(now))
}
