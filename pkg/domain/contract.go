package domain

import (
	"fmt"
	"time"
)

// FulfillmentStatus tracks delivery progress of a confirmed contract.
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "pending_start"
	FulfillmentActive    FulfillmentStatus = "active"
	FulfillmentCompleted FulfillmentStatus = "completed"
)

// EnergyContract is the binding agreement produced when a seller
// confirms an order. It embeds the offer it settles so the terms remain
// auditable even after the offer itself is gone from any store.
type EnergyContract struct {
	ContractID        string            `json:"contract_id" mapstructure:"contract_id"`
	BuyerID           string            `json:"buyer_id" mapstructure:"buyer_id"`
	SellerID          string            `json:"seller_id" mapstructure:"seller_id"`
	Offer             *EnergyOffer      `json:"original_offer,omitempty" mapstructure:"original_offer"`
	AgreedQuantityKWh float64           `json:"agreed_quantity_kwh" mapstructure:"agreed_quantity_kwh"`
	AgreedPricePerKWh float64           `json:"agreed_price_per_kwh" mapstructure:"agreed_price_per_kwh"`
	ConfirmedAt       time.Time         `json:"confirmed_at" mapstructure:"confirmed_at"`
	FulfillmentStart  time.Time         `json:"fulfillment_start" mapstructure:"fulfillment_start"`
	Status            FulfillmentStatus `json:"fulfillment_status" mapstructure:"fulfillment_status"`
}

// Validate checks the structural invariants of the contract.
func (c *EnergyContract) Validate() error {
	if c.ContractID == "" {
		return fmt.Errorf("contract: contract_id is required")
	}
	if c.BuyerID == "" || c.SellerID == "" {
		return fmt.Errorf("contract %s: buyer_id and seller_id are required", c.ContractID)
	}
	if c.AgreedQuantityKWh <= 0 {
		return fmt.Errorf("contract %s: agreed_quantity_kwh must be positive, got %.2f",
			c.ContractID, c.AgreedQuantityKWh)
	}
	if c.AgreedPricePerKWh <= 0 {
		return fmt.Errorf("contract %s: agreed_price_per_kwh must be positive, got %.4f",
			c.ContractID, c.AgreedPricePerKWh)
	}
	return nil
}

// Clone returns an independent deep copy of the contract.
func (c *EnergyContract) Clone() *EnergyContract {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Offer = c.Offer.Clone()
	return &cp
}
