package policy

import (
	"math/rand/v2"

	"github.com/gridswap/gridswap/pkg/domain"
)

// Default participation thresholds.
const (
	// DefaultDeclineProbability is the chance a seller sits out a search
	// even when it has surplus, modeling real-world unavailability.
	DefaultDeclineProbability = 0.3

	// DefaultSurplusFloor is the fill ratio below which a household
	// keeps its energy instead of selling.
	DefaultSurplusFloor = 0.6

	// DefaultBuyThreshold is the fill ratio below which an idle
	// household opens a search.
	DefaultBuyThreshold = 0.3
)

// StandardAvailability implements the default participation rules.
// Fields are exported so tests can pin the thresholds and the random
// source; the zero value declines everything, use
// NewStandardAvailability for working defaults.
type StandardAvailability struct {
	DeclineProbability float64
	SurplusFloor       float64
	BuyThreshold       float64

	// Rand yields values in [0, 1) for the decline roll. Defaults to
	// the shared math/rand/v2 source.
	Rand func() float64
}

// NewStandardAvailability returns the default participation rules.
func NewStandardAvailability() *StandardAvailability {
	return &StandardAvailability{
		DeclineProbability: DefaultDeclineProbability,
		SurplusFloor:       DefaultSurplusFloor,
		BuyThreshold:       DefaultBuyThreshold,
		Rand:               rand.Float64,
	}
}

// ShouldBuy reports whether an idle buyer should open a search. Only
// households buy; utilities and solar farms model effectively
// unlimited supply.
func (a *StandardAvailability) ShouldBuy(profile *domain.AgentProfile) bool {
	if profile == nil || profile.AgentType != domain.AgentHousehold {
		return false
	}
	return profile.FillRatio() < a.BuyThreshold
}

// WillingToSell reports whether a seller answers a search. The decline
// roll runs first so even a flush seller occasionally sits one out;
// households additionally require a surplus above the floor.
func (a *StandardAvailability) WillingToSell(profile *domain.AgentProfile) bool {
	if profile == nil {
		return false
	}
	if a.roll() < a.DeclineProbability {
		return false
	}
	if profile.AgentType == domain.AgentHousehold && profile.FillRatio() < a.SurplusFloor {
		return false
	}
	return true
}

func (a *StandardAvailability) roll() float64 {
	if a.Rand != nil {
		return a.Rand()
	}
	return rand.Float64()
}
