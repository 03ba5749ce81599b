package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gridswap/gridswap/pkg/domain"
)

func household(fill float64) *domain.AgentProfile {
	return &domain.AgentProfile{
		AgentID:          "household-1",
		AgentType:        domain.AgentHousehold,
		CurrentEnergyKWh: fill * 15.0,
		MaxCapacityKWh:   15.0,
	}
}

func utility() *domain.AgentProfile {
	return &domain.AgentProfile{
		AgentID:          "utility-1",
		AgentType:        domain.AgentUtility,
		CurrentEnergyKWh: 800,
		MaxCapacityKWh:   1000,
	}
}

func solar() *domain.AgentProfile {
	return &domain.AgentProfile{
		AgentID:          "solar-1",
		AgentType:        domain.AgentSolar,
		CurrentEnergyKWh: 40,
		MaxCapacityKWh:   50,
	}
}

func TestStandardPricingOffer(t *testing.T) {
	p := NewStandardPricing()

	qty, price := p.Offer(household(0.9))
	assert.Equal(t, 10.0, qty)
	assert.Equal(t, 0.15, price)

	qty, price = p.Offer(utility())
	assert.Equal(t, 500.0, qty)
	assert.Equal(t, 0.25, price)

	qty, price = p.Offer(solar())
	assert.Equal(t, 500.0, qty, "solar farms sell on bulk terms")
	assert.Equal(t, 0.25, price)
}

func TestStandardPricingQuote(t *testing.T) {
	p := NewStandardPricing()
	q := p.Quote(&domain.Order{Items: []domain.ItemRef{{ID: "offer-1"}}})

	assert.Equal(t, "USD", q.Price.Currency)
	assert.Equal(t, "2.50", q.Price.Value)
}

func TestStandardPricingContractTerms(t *testing.T) {
	p := NewStandardPricing()
	offer := &domain.EnergyOffer{OfferID: "offer-1", QuantityKWh: 500, PricePerKWh: 0.25}

	qty, price := p.ContractTerms(utility(), offer)
	assert.Equal(t, SettlementKWh, qty, "settlement moves the standard block, not the advertised quantity")
	assert.Equal(t, 0.25, price)

	qty, price = p.ContractTerms(household(0.9), offer)
	assert.Equal(t, SettlementKWh, qty)
	assert.Equal(t, 0.15, price)
}

func TestWillingToSell(t *testing.T) {
	never := func() float64 { return 0.99 } // never declines
	always := func() float64 { return 0.0 } // always declines

	t.Run("flush household sells", func(t *testing.T) {
		a := NewStandardAvailability()
		a.Rand = never
		assert.True(t, a.WillingToSell(household(0.8)))
	})

	t.Run("household below surplus floor declines", func(t *testing.T) {
		a := NewStandardAvailability()
		a.Rand = never
		assert.False(t, a.WillingToSell(household(0.5)))
	})

	t.Run("decline roll wins over surplus", func(t *testing.T) {
		a := NewStandardAvailability()
		a.Rand = always
		assert.False(t, a.WillingToSell(household(0.9)))
		assert.False(t, a.WillingToSell(utility()))
	})

	t.Run("utility ignores the surplus floor", func(t *testing.T) {
		a := NewStandardAvailability()
		a.Rand = never
		low := utility()
		low.CurrentEnergyKWh = 10
		assert.True(t, a.WillingToSell(low))
	})

	t.Run("solar ignores the surplus floor", func(t *testing.T) {
		a := NewStandardAvailability()
		a.Rand = never
		low := solar()
		low.CurrentEnergyKWh = 5
		assert.True(t, a.WillingToSell(low))
	})
}

func TestShouldBuy(t *testing.T) {
	a := NewStandardAvailability()

	assert.True(t, a.ShouldBuy(household(0.2)))
	assert.False(t, a.ShouldBuy(household(0.5)))
	assert.False(t, a.ShouldBuy(utility()), "utilities never buy")
	assert.False(t, a.ShouldBuy(solar()), "producers never buy")
	assert.False(t, a.ShouldBuy(nil))
}
