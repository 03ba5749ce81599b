package domain

// Phase is the explicit position of a negotiation state machine. Buyer
// transactions walk Idle through Completed in order; seller
// transactions stay Idle while answering requests and jump to Completed
// when they confirm a contract.
type Phase string

const (
	// PhaseIdle is the rest state. New records start here; the zero
	// value is treated as Idle.
	PhaseIdle Phase = "idle"

	// PhaseAwaitingOffers means a search is out and on_search catalogs
	// are being collected.
	PhaseAwaitingOffers Phase = "awaiting_offers"

	// PhaseOfferSelected means evaluation picked a winner and select has
	// been (or is being) sent.
	PhaseOfferSelected Phase = "offer_selected"

	// PhaseAwaitingQuote means init is out and the buyer is waiting for
	// the seller's priced terms.
	PhaseAwaitingQuote Phase = "awaiting_quote"

	// PhaseAwaitingConfirmation means confirm is out and the buyer is
	// waiting for the signed contract.
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"

	// PhaseCompleted is terminal. The transaction record is deleted once
	// its run finishes.
	PhaseCompleted Phase = "completed"
)

// IsTerminal reports whether the phase ends the transaction's life.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted
}

// or returns p with the zero value normalized to Idle.
func (p Phase) or() Phase {
	if p == "" {
		return PhaseIdle
	}
	return p
}

// externalAdmission maps each external trigger to the phases that admit
// it. A trigger arriving in any other phase is stale or duplicated and
// is rejected without touching state.
var externalAdmission = map[Trigger][]Phase{
	TriggerSimulationCycle: nil, // legal in every phase

	TriggerIncomingSearch:  {PhaseIdle},
	TriggerIncomingSelect:  {PhaseIdle},
	TriggerIncomingInit:    {PhaseIdle},
	TriggerIncomingConfirm: {PhaseIdle},

	TriggerIncomingOnSearch:  {PhaseAwaitingOffers},
	TriggerIncomingOnSelect:  {PhaseOfferSelected},
	TriggerIncomingOnInit:    {PhaseAwaitingQuote},
	TriggerIncomingOnConfirm: {PhaseAwaitingConfirmation},
}

// Admits reports whether the phase accepts the given trigger. Internal
// triggers are always admitted; the engine chains them deliberately
// after a handler has already advanced the phase.
func (p Phase) Admits(t Trigger) bool {
	if !t.External() {
		return true
	}
	allowed, ok := externalAdmission[t]
	if !ok {
		return false
	}
	if allowed == nil {
		return true
	}
	cur := p.or()
	for _, a := range allowed {
		if a == cur {
			return true
		}
	}
	return false
}
