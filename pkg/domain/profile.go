package domain

import "fmt"

// AgentType distinguishes the participant classes of the market.
// Households buy and sell; solar farms and utilities only sell.
type AgentType string

const (
	// AgentHousehold is a small prosumer with rooftop generation.
	AgentHousehold AgentType = "household"
	// AgentSolar is a dedicated solar producer selling its generation.
	AgentSolar AgentType = "solar"
	// AgentUtility is a grid-scale provider with effectively deep reserves.
	AgentUtility AgentType = "utility"
)

// Valid reports whether t is a known agent type.
func (t AgentType) Valid() bool {
	return t == AgentHousehold || t == AgentSolar || t == AgentUtility
}

// AgentProfile is the persistent identity and energy position of an
// agent. The simulation loop mutates it over time through EnergyDelta
// messages; handlers only ever read it and describe the change they
// want as a delta.
type AgentProfile struct {
	AgentID           string    `json:"agent_id" mapstructure:"agent_id"`
	AgentType         AgentType `json:"agent_type" mapstructure:"agent_type"`
	CurrentEnergyKWh  float64   `json:"current_energy_kwh" mapstructure:"current_energy_kwh"`
	MaxCapacityKWh    float64   `json:"max_capacity_kwh" mapstructure:"max_capacity_kwh"`
	GenerationRateKW  float64   `json:"generation_rate_kw" mapstructure:"generation_rate_kw"`
	ConsumptionRateKW float64   `json:"consumption_rate_kw" mapstructure:"consumption_rate_kw"`
}

// Validate checks the structural invariants of the profile.
func (p *AgentProfile) Validate() error {
	if p.AgentID == "" {
		return fmt.Errorf("agent profile: agent_id is required")
	}
	if !p.AgentType.Valid() {
		return fmt.Errorf("agent profile %s: unknown agent_type %q", p.AgentID, p.AgentType)
	}
	if p.MaxCapacityKWh <= 0 {
		return fmt.Errorf("agent profile %s: max_capacity_kwh must be positive", p.AgentID)
	}
	if p.CurrentEnergyKWh < 0 || p.CurrentEnergyKWh > p.MaxCapacityKWh {
		return fmt.Errorf("agent profile %s: current_energy_kwh %.2f outside [0, %.2f]",
			p.AgentID, p.CurrentEnergyKWh, p.MaxCapacityKWh)
	}
	return nil
}

// FillRatio is the stored energy as a fraction of capacity, in [0, 1].
func (p *AgentProfile) FillRatio() float64 {
	if p.MaxCapacityKWh <= 0 {
		return 0
	}
	return p.CurrentEnergyKWh / p.MaxCapacityKWh
}

// Clone returns an independent copy of the profile.
func (p *AgentProfile) Clone() *AgentProfile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
