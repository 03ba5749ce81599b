package domain

import (
	"fmt"
	"time"
)

// EnergyOffer is a seller's proposal to deliver a quantity of energy at
// a unit price. Offers travel inside on_search catalogs and are copied
// verbatim into the contract at confirmation time.
type EnergyOffer struct {
	OfferID     string    `json:"offer_id" mapstructure:"offer_id"`
	ProviderID  string    `json:"provider_id" mapstructure:"provider_id"`
	QuantityKWh float64   `json:"quantity_kwh" mapstructure:"quantity_kwh"`
	PricePerKWh float64   `json:"price_per_kwh" mapstructure:"price_per_kwh"`
	Timestamp   time.Time `json:"timestamp" mapstructure:"timestamp"`
	ValidUntil  time.Time `json:"valid_until" mapstructure:"valid_until"`
}

// Validate checks the structural invariants of the offer.
func (o *EnergyOffer) Validate() error {
	if o.OfferID == "" {
		return fmt.Errorf("%w: offer_id is required", ErrInvalidOffer)
	}
	if o.ProviderID == "" {
		return fmt.Errorf("%w: offer %s has no provider_id", ErrInvalidOffer, o.OfferID)
	}
	if o.QuantityKWh <= 0 {
		return fmt.Errorf("%w: offer %s quantity_kwh must be positive, got %.2f",
			ErrInvalidOffer, o.OfferID, o.QuantityKWh)
	}
	if o.PricePerKWh <= 0 {
		return fmt.Errorf("%w: offer %s price_per_kwh must be positive, got %.4f",
			ErrInvalidOffer, o.OfferID, o.PricePerKWh)
	}
	return nil
}

// Expired reports whether the offer's validity window has passed at now.
// Offers without a ValidUntil never expire.
func (o *EnergyOffer) Expired(now time.Time) bool {
	return !o.ValidUntil.IsZero() && now.After(o.ValidUntil)
}

// Clone returns an independent copy of the offer.
func (o *EnergyOffer) Clone() *EnergyOffer {
	if o == nil {
		return nil
	}
	cp := *o
	return &cp
}
