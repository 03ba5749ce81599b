package domain

import "time"

// OutboundRequest is the single protocol request a transition run may
// emit. The dispatch loop harvests it after the run, resolves the
// target, and sends it; handlers never perform I/O themselves.
type OutboundRequest struct {
	// Envelope is the fully formed wire unit to send.
	Envelope *Envelope `json:"envelope"`

	// TargetURL overrides target resolution when set. When empty the
	// dispatcher derives the target from the envelope action: search
	// goes to the gateway, requests to bpp_uri, callbacks to bap_uri.
	TargetURL string `json:"target_url,omitempty"`
}

// Clone returns an independent copy of the outbound request. The
// envelope context is copied; the message is shared, handlers build a
// fresh one per run and never mutate it afterwards.
func (r *OutboundRequest) Clone() *OutboundRequest {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Envelope = &Envelope{
		Context: r.Envelope.Context.Clone(),
		Message: r.Envelope.Message,
	}
	return &cp
}

// NegotiationState is the record a single transition run reads and
// rewrites. Simulation-scoped records (one per agent) carry the profile
// and the buyer's active-transaction lock; transaction-scoped records
// (one per negotiation) carry the offer and contract fields.
//
// Handlers treat the state as immutable input: they derive a copy,
// change the copy, and return it. The incoming envelope and the
// outbound slot are working fields owned by the dispatch loop.
type NegotiationState struct {
	// AgentID names the agent this record belongs to.
	AgentID string `json:"agent_id"`

	// Phase is the machine's position. Zero means idle.
	Phase Phase `json:"phase,omitempty"`

	// Trigger is the event being routed. The engine sets it before the
	// first hop; handlers overwrite it to chain an internal follow-up.
	Trigger Trigger `json:"trigger,omitempty"`

	// Profile is the agent's energy position as of the last merge from
	// the ledger. Only simulation-scoped records hold the authoritative
	// copy; transaction records carry a snapshot taken at seed time.
	Profile *AgentProfile `json:"profile,omitempty"`

	// ActiveTransactionID is the buyer-side lock: while set on the
	// simulation record, the supervisor starts no new search.
	ActiveTransactionID string `json:"active_transaction_id,omitempty"`

	// ActiveContext is the protocol context of the negotiation this
	// record is part of.
	ActiveContext *Context `json:"active_context,omitempty"`

	// ReceivedOffers accumulates catalog items from on_search callbacks.
	ReceivedOffers []EnergyOffer `json:"received_offers,omitempty"`

	// ProviderURIs maps provider IDs to the callback URIs learned from
	// their on_search contexts, so select can be addressed to the
	// winning seller.
	ProviderURIs map[string]string `json:"provider_uris,omitempty"`

	// SelectedOffer is the winner picked by evaluation.
	SelectedOffer *EnergyOffer `json:"selected_offer,omitempty"`

	// FinalContract is the confirmed agreement, set on on_confirm.
	FinalContract *EnergyContract `json:"final_contract,omitempty"`

	// Outgoing is the run's single outbound request slot. The dispatch
	// loop harvests and clears it before persisting.
	Outgoing *OutboundRequest `json:"outgoing,omitempty"`

	// PendingDelta is the energy movement this run wants applied to the
	// agent's profile. The dispatch loop forwards it to the ledger and
	// clears it; handlers never write the profile directly.
	PendingDelta *EnergyDelta `json:"pending_delta,omitempty"`

	// Incoming is the envelope that raised the current trigger. It is
	// transport input, never persisted.
	Incoming *Envelope `json:"-"`

	// UpdatedAt is stamped by the dispatch loop on every persist.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// NewNegotiationState returns an idle record for the given agent.
func NewNegotiationState(agentID string, profile *AgentProfile) *NegotiationState {
	return &NegotiationState{
		AgentID: agentID,
		Phase:   PhaseIdle,
		Profile: profile.Clone(),
	}
}

// Clone returns a deep copy of the state. Runs operate on clones so a
// failed transition never leaks partial writes into the store's copy.
func (s *NegotiationState) Clone() *NegotiationState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Profile = s.Profile.Clone()
	cp.ActiveContext = s.ActiveContext.Clone()
	cp.SelectedOffer = s.SelectedOffer.Clone()
	cp.FinalContract = s.FinalContract.Clone()
	cp.Outgoing = s.Outgoing.Clone()
	cp.PendingDelta = s.PendingDelta.Clone()
	if s.ReceivedOffers != nil {
		cp.ReceivedOffers = make([]EnergyOffer, len(s.ReceivedOffers))
		copy(cp.ReceivedOffers, s.ReceivedOffers)
	}
	if s.ProviderURIs != nil {
		cp.ProviderURIs = make(map[string]string, len(s.ProviderURIs))
		for id, uri := range s.ProviderURIs {
			cp.ProviderURIs[id] = uri
		}
	}
	return &cp
}

// ClearTransaction zeroes every transaction-scoped field and returns
// the state to idle. The profile survives; it belongs to the agent, not
// to any one negotiation.
func (s *NegotiationState) ClearTransaction() {
	s.Phase = PhaseIdle
	s.ActiveTransactionID = ""
	s.ActiveContext = nil
	s.ReceivedOffers = nil
	s.ProviderURIs = nil
	s.SelectedOffer = nil
	s.FinalContract = nil
}

// InTransaction reports whether the record is currently bound to a
// negotiation.
func (s *NegotiationState) InTransaction() bool {
	return s.ActiveTransactionID != ""
}
