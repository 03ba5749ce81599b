package policy

import (
	"github.com/gridswap/gridswap/pkg/domain"
)

// Standard market terms by agent type.
const (
	// HouseholdOfferKWh and HouseholdRate are a prosumer's catalog terms.
	HouseholdOfferKWh = 10.0
	HouseholdRate     = 0.15

	// ProducerOfferKWh and ProducerRate are the bulk catalog terms
	// shared by grid utilities and solar farms.
	ProducerOfferKWh = 500.0
	ProducerRate     = 0.25

	// SettlementKWh is the standard block every contract settles,
	// regardless of the quantity advertised in the offer.
	SettlementKWh = 10.0

	// QuoteCurrency and QuoteValue are the flat service quote attached
	// to on_init replies.
	QuoteCurrency = "USD"
	QuoteValue    = "2.50"
)

// StandardPricing prices participation by agent type: households offer
// small cheap blocks, utilities and solar farms offer bulk at a
// premium.
type StandardPricing struct{}

// NewStandardPricing returns the default pricing table.
func NewStandardPricing() *StandardPricing {
	return &StandardPricing{}
}

// Offer returns the catalog quantity and unit price for the profile.
func (p *StandardPricing) Offer(profile *domain.AgentProfile) (quantityKWh, pricePerKWh float64) {
	if profile != nil && profile.AgentType != domain.AgentHousehold {
		return ProducerOfferKWh, ProducerRate
	}
	return HouseholdOfferKWh, HouseholdRate
}

// Quote returns the flat service quote.
//
// TODO: derive the quote from order.Items instead of quoting a flat
// fee; today the quoted amount ignores the selected offer entirely.
func (p *StandardPricing) Quote(order *domain.Order) domain.Quote {
	_ = order
	return domain.Quote{
		Price: domain.Price{Currency: QuoteCurrency, Value: QuoteValue},
		TTL:   domain.DefaultTTL,
	}
}

// ContractTerms returns the settled quantity and unit price. Settlement
// always moves the standard block at the seller's rate; the offer's
// advertised quantity bounds nothing here.
func (p *StandardPricing) ContractTerms(profile *domain.AgentProfile, offer *domain.EnergyOffer) (quantityKWh, pricePerKWh float64) {
	rate := HouseholdRate
	if profile != nil && profile.AgentType != domain.AgentHousehold {
		rate = ProducerRate
	}
	_ = offer
	return SettlementKWh, rate
}
