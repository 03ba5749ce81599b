package engine

import (
	"context"
	"fmt"

	"github.com/gridswap/gridswap/pkg/domain"
)

// supervise runs on every simulation tick against the agent's
// simulation-scoped record. It sweeps stalled negotiations back to
// idle, then decides whether to open a new search.
//
// TODO: track transaction age and only sweep entries older than one
// tick interval; today any in-flight negotiation seen at tick time is
// treated as stalled.
func (e *Engine) supervise(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	if st.Profile == nil {
		return nil, domain.ErrNoProfile
	}

	if st.InTransaction() {
		e.logger.Warn("sweeping stalled transaction",
			"agent", st.AgentID,
			"transaction", st.ActiveTransactionID,
			"phase", st.Phase)
		st.ClearTransaction()
		st.Trigger = domain.TriggerIdle
		return st, nil
	}

	if e.availability.ShouldBuy(st.Profile) {
		e.logger.Info("energy low, starting buy flow",
			"agent", st.AgentID,
			"stored_kwh", st.Profile.CurrentEnergyKWh,
			"capacity_kwh", st.Profile.MaxCapacityKWh)
		st.Trigger = domain.TriggerStartBAPFlow
		return st, nil
	}

	if st.Profile.FillRatio() > sellReadyRatio {
		e.logger.Debug("surplus available, ready to answer searches",
			"agent", st.AgentID,
			"stored_kwh", st.Profile.CurrentEnergyKWh)
	}
	st.Trigger = domain.TriggerIdle
	return st, nil
}

// startSearch opens a new negotiation: it mints a transaction, takes
// the buyer-side lock, and emits the search request for the gateway.
func (e *Engine) startSearch(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	if st.Profile == nil {
		return nil, domain.ErrNoProfile
	}

	now := e.now().UTC()
	c := &domain.Context{
		Domain:        domain.ProtocolDomain,
		Action:        domain.ActionSearch,
		Version:       domain.ProtocolVersion,
		TransactionID: e.newID(),
		MessageID:     e.newID(),
		BapID:         st.AgentID,
		BapURI:        e.callbackURI,
		Timestamp:     now,
		TTL:           domain.DefaultTTL,
	}

	st.ClearTransaction()
	st.Phase = domain.PhaseAwaitingOffers
	st.ActiveTransactionID = c.TransactionID
	st.ActiveContext = c

	need := st.Profile.MaxCapacityKWh - st.Profile.CurrentEnergyKWh
	st.Outgoing = &domain.OutboundRequest{
		Envelope: &domain.Envelope{
			Context: c,
			Message: &domain.Message{
				Intent: &domain.Intent{
					Descriptor:  &domain.Descriptor{Code: "energy"},
					QuantityKWh: need,
				},
			},
		},
	}

	e.logger.Info("search opened",
		"agent", st.AgentID,
		"transaction", c.TransactionID,
		"need_kwh", need)
	return st, nil
}

// evaluateOffers folds the incoming catalog into the accumulated offers
// and picks the cheapest. Ties keep the earliest arrival. With nothing
// to pick from it reports search_failed and leaves the state otherwise
// untouched.
func (e *Engine) evaluateOffers(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	if st.Profile == nil {
		e.logger.Warn("evaluation without a profile, abandoning search", "agent", st.AgentID)
		st.Trigger = domain.TriggerSearchFailed
		return st, nil
	}

	now := e.now()
	if st.Incoming != nil && st.Incoming.Message != nil && st.Incoming.Message.Catalog != nil {
		inCtx := st.Incoming.Context
		for _, offer := range st.Incoming.Message.Catalog.Items {
			if err := offer.Validate(); err != nil {
				e.logger.Warn("dropping invalid offer", "agent", st.AgentID, "error", err)
				continue
			}
			if offer.Expired(now) {
				e.logger.Warn("dropping expired offer",
					"agent", st.AgentID,
					"offer", offer.OfferID,
					"provider", offer.ProviderID)
				continue
			}
			st.ReceivedOffers = append(st.ReceivedOffers, offer)
			if inCtx != nil && inCtx.BppURI != "" {
				if st.ProviderURIs == nil {
					st.ProviderURIs = make(map[string]string)
				}
				st.ProviderURIs[offer.ProviderID] = inCtx.BppURI
			}
		}
	}

	if len(st.ReceivedOffers) == 0 {
		e.logger.Warn("no offers to evaluate", "agent", st.AgentID, "transaction", st.ActiveTransactionID)
		st.Trigger = domain.TriggerSearchFailed
		return st, nil
	}

	best := st.ReceivedOffers[0]
	for _, offer := range st.ReceivedOffers[1:] {
		if offer.PricePerKWh < best.PricePerKWh {
			best = offer
		}
	}

	uri := st.ProviderURIs[best.ProviderID]
	if uri == "" {
		e.logger.Error("winning provider has no callback uri, abandoning",
			"agent", st.AgentID,
			"provider", best.ProviderID)
		st.Trigger = domain.TriggerTransactionFailed
		return st, nil
	}
	if st.ActiveContext == nil {
		return nil, fmt.Errorf("evaluation with no active context: %w", domain.ErrNoContext)
	}

	c := st.ActiveContext.Clone()
	c.BppID = best.ProviderID
	c.BppURI = uri
	st.ActiveContext = c
	st.SelectedOffer = best.Clone()
	st.Phase = domain.PhaseOfferSelected
	st.Trigger = domain.TriggerSelectionMade

	e.logger.Info("offer selected",
		"agent", st.AgentID,
		"transaction", st.ActiveTransactionID,
		"provider", best.ProviderID,
		"price_per_kwh", best.PricePerKWh)
	return st, nil
}

// sendSelect tells the winning seller it was chosen.
func (e *Engine) sendSelect(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	return e.sendOrderRequest(st, domain.ActionSelect)
}

// sendInit moves the negotiation to the quoting stage after the seller
// acknowledged the selection.
func (e *Engine) sendInit(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	out, err := e.sendOrderRequest(st, domain.ActionInit)
	if err != nil || out.Trigger == domain.TriggerTransactionFailed {
		return out, err
	}
	out.Phase = domain.PhaseAwaitingQuote
	return out, nil
}

// sendConfirm accepts the quoted terms and asks for the contract.
func (e *Engine) sendConfirm(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	out, err := e.sendOrderRequest(st, domain.ActionConfirm)
	if err != nil || out.Trigger == domain.TriggerTransactionFailed {
		return out, err
	}
	out.Phase = domain.PhaseAwaitingConfirmation
	return out, nil
}

// sendOrderRequest emits a select, init or confirm referencing the
// selected offer. A missing selection abandons the negotiation instead
// of failing the run; the callback that should have set it was answered
// long ago.
func (e *Engine) sendOrderRequest(st *domain.NegotiationState, action domain.Action) (*domain.NegotiationState, error) {
	if st.ActiveContext == nil {
		return nil, fmt.Errorf("%s with no active context: %w", action, domain.ErrNoContext)
	}
	offer := st.SelectedOffer
	if offer == nil {
		e.logger.Warn("no selected offer, abandoning negotiation",
			"agent", st.AgentID,
			"action", action,
			"transaction", st.ActiveTransactionID)
		st.Trigger = domain.TriggerTransactionFailed
		return st, nil
	}

	c := st.ActiveContext.Reply(action, e.newID(), e.now())
	st.ActiveContext = c
	st.Outgoing = &domain.OutboundRequest{
		Envelope: &domain.Envelope{
			Context: c,
			Message: &domain.Message{
				Order: &domain.Order{
					Provider: &domain.ProviderRef{ID: offer.ProviderID},
					Items:    []domain.ItemRef{{ID: offer.OfferID}},
				},
			},
		},
	}

	e.logger.Info("sending "+string(action),
		"agent", st.AgentID,
		"transaction", c.TransactionID,
		"provider", offer.ProviderID)
	return st, nil
}

// completeTransaction settles the buyer side of a confirmed contract:
// it records the contract, queues the energy credit, and marks the
// negotiation completed.
func (e *Engine) completeTransaction(ctx context.Context, st *domain.NegotiationState) (*domain.NegotiationState, error) {
	order := incomingOrder(st)
	if order == nil || order.Contract == nil {
		return nil, fmt.Errorf("on_confirm without a contract: %w", domain.ErrMalformedPayload)
	}
	contract := order.Contract.Clone()
	if err := contract.Validate(); err != nil {
		return nil, fmt.Errorf("on_confirm contract rejected: %w", err)
	}

	st.FinalContract = contract
	st.PendingDelta = &domain.EnergyDelta{
		AgentID:       st.AgentID,
		TransactionID: transactionID(st),
		KWh:           contract.AgreedQuantityKWh,
		Reason:        domain.DeltaPurchase,
	}
	st.Phase = domain.PhaseCompleted

	e.logger.Info("contract confirmed, energy purchased",
		"agent", st.AgentID,
		"transaction", transactionID(st),
		"seller", contract.SellerID,
		"kwh", contract.AgreedQuantityKWh,
		"price_per_kwh", contract.AgreedPricePerKWh)
	return st, nil
}
