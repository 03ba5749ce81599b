package ports

import "github.com/gridswap/gridswap/pkg/domain"

// PricingPolicy supplies the seller's commercial terms. Implementations
// are pure decision tables over the agent's current position; the
// engine turns their answers into wire messages.
type PricingPolicy interface {
	// Offer returns the quantity and unit price the seller advertises in
	// an on_search catalog.
	Offer(profile *domain.AgentProfile) (quantityKWh, pricePerKWh float64)

	// Quote returns the priced terms attached to an on_init reply for
	// the given order.
	Quote(order *domain.Order) domain.Quote

	// ContractTerms returns the quantity and unit price written into the
	// final contract at confirmation.
	ContractTerms(profile *domain.AgentProfile, offer *domain.EnergyOffer) (quantityKWh, pricePerKWh float64)
}

// AvailabilityPolicy decides whether an agent participates in the
// market right now.
type AvailabilityPolicy interface {
	// ShouldBuy reports whether an idle buyer should open a search for
	// energy.
	ShouldBuy(profile *domain.AgentProfile) bool

	// WillingToSell reports whether a seller answers a search at all. A
	// false here is a silent decline: no reply, no state change.
	WillingToSell(profile *domain.AgentProfile) bool
}
