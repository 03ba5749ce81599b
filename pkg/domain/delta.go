package domain

// DeltaReason classifies why an agent's stored energy changed.
type DeltaReason string

const (
	// DeltaPurchase credits energy bought through a completed contract.
	DeltaPurchase DeltaReason = "purchase"
	// DeltaSale debits energy sold through a confirmed contract.
	DeltaSale DeltaReason = "sale"
	// DeltaGeneration credits local production between ticks.
	DeltaGeneration DeltaReason = "generation"
	// DeltaConsumption debits local load between ticks.
	DeltaConsumption DeltaReason = "consumption"
)

// EnergyDelta is a request to move an agent's stored energy by a signed
// amount. All profile mutation flows through deltas serialized by the
// agent's ledger; nothing else writes CurrentEnergyKWh.
type EnergyDelta struct {
	AgentID       string      `json:"agent_id"`
	TransactionID string      `json:"transaction_id,omitempty"`
	KWh           float64     `json:"kwh"`
	Reason        DeltaReason `json:"reason"`
}

// Clone returns an independent copy of the delta.
func (d *EnergyDelta) Clone() *EnergyDelta {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}
