package engine

import (
	"context"
	"fmt"

	"github.com/gridswap/gridswap/pkg/domain"
)

// formulateOffer answers an incoming search with a catalog, or declines
// silently. A decline leaves no trace: no reply, no state, the buyer
// simply never hears from this seller.
func (e *Engine) formulateOffer(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	if st.Profile == nil {
		return nil, domain.ErrNoProfile
	}
	inCtx, err := incomingContext(st)
	if err != nil {
		return nil, fmt.Errorf("formulate offer: %w", err)
	}

	if !e.availability.WillingToSell(st.Profile) {
		e.logger.Info("sitting out search",
			"agent", st.AgentID,
			"transaction", inCtx.TransactionID,
			"stored_kwh", st.Profile.CurrentEnergyKWh)
		st.Trigger = domain.TriggerIdle
		return st, nil
	}

	now := e.now().UTC()
	qty, price := e.pricing.Offer(st.Profile)
	offer := domain.EnergyOffer{
		OfferID:     e.newID(),
		ProviderID:  st.AgentID,
		QuantityKWh: qty,
		PricePerKWh: price,
		Timestamp:   now,
		ValidUntil:  now.Add(offerValidity),
	}

	reply := inCtx.Reply(domain.ActionOnSearch, e.newID(), now)
	reply.BppID = st.AgentID
	reply.BppURI = e.callbackURI
	st.Outgoing = &domain.OutboundRequest{
		Envelope: &domain.Envelope{
			Context: reply,
			Message: &domain.Message{
				Catalog: &domain.Catalog{
					ProviderID: st.AgentID,
					Items:      []domain.EnergyOffer{offer},
				},
			},
		},
	}

	e.logger.Info("catalog published",
		"agent", st.AgentID,
		"transaction", inCtx.TransactionID,
		"quantity_kwh", qty,
		"price_per_kwh", price)
	return st, nil
}

// processSelection acknowledges the buyer's choice with an on_select
// carrying an empty order stub. Nothing is recorded; the buyer drives
// the rest of the flow from its own state.
func (e *Engine) processSelection(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	inCtx, err := incomingContext(st)
	if err != nil {
		return nil, fmt.Errorf("process selection: %w", err)
	}

	reply := inCtx.Reply(domain.ActionOnSelect, e.newID(), e.now())
	reply.BppID = st.AgentID
	reply.BppURI = e.callbackURI
	st.Outgoing = &domain.OutboundRequest{
		Envelope: &domain.Envelope{
			Context: reply,
			Message: &domain.Message{Order: &domain.Order{}},
		},
	}

	e.logger.Info("selection acknowledged", "agent", st.AgentID, "transaction", inCtx.TransactionID)
	return st, nil
}

// processInit answers an init with the priced terms.
func (e *Engine) processInit(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	inCtx, err := incomingContext(st)
	if err != nil {
		return nil, fmt.Errorf("process init: %w", err)
	}

	quote := e.pricing.Quote(incomingOrder(st))

	reply := inCtx.Reply(domain.ActionOnInit, e.newID(), e.now())
	reply.BppID = st.AgentID
	reply.BppURI = e.callbackURI
	st.Outgoing = &domain.OutboundRequest{
		Envelope: &domain.Envelope{
			Context: reply,
			Message: &domain.Message{Order: &domain.Order{Quote: &quote}},
		},
	}

	e.logger.Info("quote issued",
		"agent", st.AgentID,
		"transaction", inCtx.TransactionID,
		"quote", quote.Price.Value+" "+quote.Price.Currency)
	return st, nil
}

// processConfirmation finalizes the sale: it writes the contract, queues
// the energy debit, and emits the on_confirm carrying the contract.
func (e *Engine) processConfirmation(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	if st.Profile == nil {
		return nil, domain.ErrNoProfile
	}
	inCtx, err := incomingContext(st)
	if err != nil {
		return nil, fmt.Errorf("process confirmation: %w", err)
	}

	now := e.now().UTC()
	qty, rate := e.pricing.ContractTerms(st.Profile, st.SelectedOffer)
	settled := &domain.EnergyOffer{
		OfferID:     e.newID(),
		ProviderID:  st.AgentID,
		QuantityKWh: qty,
		PricePerKWh: rate,
		Timestamp:   now,
		ValidUntil:  now.Add(settlementOfferValidity),
	}
	contract := &domain.EnergyContract{
		ContractID:        e.newID(),
		BuyerID:           inCtx.BapID,
		SellerID:          st.AgentID,
		Offer:             settled,
		AgreedQuantityKWh: qty,
		AgreedPricePerKWh: rate,
		ConfirmedAt:       now,
		FulfillmentStart:  now.Add(fulfillmentDelay),
		Status:            domain.FulfillmentPending,
	}

	st.FinalContract = contract
	st.PendingDelta = &domain.EnergyDelta{
		AgentID:       st.AgentID,
		TransactionID: inCtx.TransactionID,
		KWh:           -qty,
		Reason:        domain.DeltaSale,
	}
	st.Phase = domain.PhaseCompleted

	reply := inCtx.Reply(domain.ActionOnConfirm, e.newID(), now)
	reply.BppID = st.AgentID
	reply.BppURI = e.callbackURI
	st.Outgoing = &domain.OutboundRequest{
		Envelope: &domain.Envelope{
			Context: reply,
			Message: &domain.Message{
				Order: &domain.Order{
					ID:       contract.ContractID,
					Status:   domain.OrderStatusConfirmed,
					Contract: contract,
				},
			},
		},
	}

	e.logger.Info("contract finalized, energy sold",
		"agent", st.AgentID,
		"transaction", inCtx.TransactionID,
		"buyer", contract.BuyerID,
		"kwh", qty,
		"price_per_kwh", rate)
	return st, nil
}
