package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridswap/gridswap/pkg/domain"
	"github.com/gridswap/gridswap/pkg/policy"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// seqIDs returns a deterministic ID generator: id-1, id-2, ...
func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func alwaysAvailable() *policy.StandardAvailability {
	return &policy.StandardAvailability{
		DeclineProbability: 0,
		SurplusFloor:       policy.DefaultSurplusFloor,
		BuyThreshold:       policy.DefaultBuyThreshold,
		Rand:               func() float64 { return 0.99 },
	}
}

func newTestEngine(opts ...Option) *Engine {
	base := []Option{
		WithClock(func() time.Time { return testTime }),
		WithIDGenerator(seqIDs()),
		WithCallbackURI("http://localhost:9001"),
		WithAvailabilityPolicy(alwaysAvailable()),
	}
	return New(append(base, opts...)...)
}

func buyerProfile(currentKWh float64) *domain.AgentProfile {
	return &domain.AgentProfile{
		AgentID:          "household-1",
		AgentType:        domain.AgentHousehold,
		CurrentEnergyKWh: currentKWh,
		MaxCapacityKWh:   15,
	}
}

func sellerProfile(agentType domain.AgentType) *domain.AgentProfile {
	if agentType == domain.AgentUtility {
		return &domain.AgentProfile{
			AgentID:          "utility-1",
			AgentType:        domain.AgentUtility,
			CurrentEnergyKWh: 800,
			MaxCapacityKWh:   1000,
		}
	}
	return &domain.AgentProfile{
		AgentID:          "household-2",
		AgentType:        domain.AgentHousehold,
		CurrentEnergyKWh: 14,
		MaxCapacityKWh:   15,
	}
}

func searchEnvelope(txn string) *domain.Envelope {
	return &domain.Envelope{
		Context: &domain.Context{
			Domain:        domain.ProtocolDomain,
			Action:        domain.ActionSearch,
			Version:       domain.ProtocolVersion,
			TransactionID: txn,
			MessageID:     "msg-search",
			BapID:         "household-1",
			BapURI:        "http://localhost:9001",
			Timestamp:     testTime,
		},
		Message: &domain.Message{Intent: &domain.Intent{QuantityKWh: 11}},
	}
}

func onSearchEnvelope(txn, provider, providerURI string, offers ...domain.EnergyOffer) *domain.Envelope {
	return &domain.Envelope{
		Context: &domain.Context{
			Domain:        domain.ProtocolDomain,
			Action:        domain.ActionOnSearch,
			TransactionID: txn,
			MessageID:     "msg-on-search",
			BapID:         "household-1",
			BapURI:        "http://localhost:9001",
			BppID:         provider,
			BppURI:        providerURI,
			Timestamp:     testTime,
		},
		Message: &domain.Message{Catalog: &domain.Catalog{ProviderID: provider, Items: offers}},
	}
}

func TestSupervisorStartsBuyFlowWhenLow(t *testing.T) {
	e := newTestEngine()
	st := domain.NewNegotiationState("household-1", buyerProfile(4)) // 4/15 < 0.3
	st.Trigger = domain.TriggerSimulationCycle

	out, err := e.Run(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseAwaitingOffers, out.Phase)
	assert.Equal(t, "id-1", out.ActiveTransactionID)
	require.NotNil(t, out.ActiveContext)
	assert.Equal(t, domain.ActionSearch, out.ActiveContext.Action)
	assert.Equal(t, "household-1", out.ActiveContext.BapID)
	assert.Equal(t, "http://localhost:9001", out.ActiveContext.BapURI)

	require.NotNil(t, out.Outgoing)
	require.NotNil(t, out.Outgoing.Envelope.Message.Intent)
	assert.Equal(t, 11.0, out.Outgoing.Envelope.Message.Intent.QuantityKWh)

	// The input state is untouched.
	assert.Equal(t, domain.PhaseIdle, st.Phase)
	assert.Empty(t, st.ActiveTransactionID)
}

func TestSupervisorIdlesWhenEnergyStable(t *testing.T) {
	e := newTestEngine()
	st := domain.NewNegotiationState("household-1", buyerProfile(7.5))
	st.Trigger = domain.TriggerSimulationCycle

	out, err := e.Run(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerIdle, out.Trigger)
	assert.Nil(t, out.Outgoing)
	assert.False(t, out.InTransaction())
}

func TestSupervisorNeverBuysForUtilities(t *testing.T) {
	e := newTestEngine()
	st := domain.NewNegotiationState("utility-1", &domain.AgentProfile{
		AgentID:          "utility-1",
		AgentType:        domain.AgentUtility,
		CurrentEnergyKWh: 1, // far below any threshold
		MaxCapacityKWh:   1000,
	})
	st.Trigger = domain.TriggerSimulationCycle

	out, err := e.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerIdle, out.Trigger)
	assert.Nil(t, out.Outgoing)
}

func TestSupervisorSweepsStalledTransaction(t *testing.T) {
	e := newTestEngine()
	st := domain.NewNegotiationState("household-1", buyerProfile(4))
	st.Phase = domain.PhaseAwaitingOffers
	st.ActiveTransactionID = "txn-stuck"
	st.ActiveContext = &domain.Context{TransactionID: "txn-stuck"}
	st.Trigger = domain.TriggerSimulationCycle

	out, err := e.Run(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerIdle, out.Trigger, "sweep wins over the buy decision on the same tick")
	assert.Equal(t, domain.PhaseIdle, out.Phase)
	assert.False(t, out.InTransaction())
	assert.Nil(t, out.ActiveContext)
	require.NotNil(t, out.Profile)
}

func TestEvaluateOffersPicksCheapest(t *testing.T) {
	e := newTestEngine()
	st := domain.NewNegotiationState("household-1", buyerProfile(4))
	st.Phase = domain.PhaseAwaitingOffers
	st.ActiveTransactionID = "txn-1"
	st.ActiveContext = searchEnvelope("txn-1").Context
	// An earlier callback already delivered the utility's offer.
	st.ReceivedOffers = []domain.EnergyOffer{
		{OfferID: "offer-utility", ProviderID: "utility-1", QuantityKWh: 500, PricePerKWh: 0.25, ValidUntil: testTime.Add(time.Minute)},
	}
	st.ProviderURIs = map[string]string{"utility-1": "http://localhost:9002"}

	st.Trigger = domain.TriggerIncomingOnSearch
	st.Incoming = onSearchEnvelope("txn-1", "household-2", "http://localhost:9003",
		domain.EnergyOffer{OfferID: "offer-cheap", ProviderID: "household-2", QuantityKWh: 10, PricePerKWh: 0.15, ValidUntil: testTime.Add(time.Minute)},
	)

	out, err := e.Run(context.Background(), st)
	require.NoError(t, err)

	require.NotNil(t, out.SelectedOffer)
	assert.Equal(t, "offer-cheap", out.SelectedOffer.OfferID)
	assert.Equal(t, 0.15, out.SelectedOffer.PricePerKWh)
	assert.Equal(t, domain.PhaseOfferSelected, out.Phase)

	// The run chains straight into send_select addressed to the winner.
	require.NotNil(t, out.Outgoing)
	env := out.Outgoing.Envelope
	assert.Equal(t, domain.ActionSelect, env.Context.Action)
	assert.Equal(t, "household-2", env.Context.BppID)
	assert.Equal(t, "http://localhost:9003", env.Context.BppURI)
	require.NotNil(t, env.Message.Order)
	require.Len(t, env.Message.Order.Items, 1)
	assert.Equal(t, "offer-cheap", env.Message.Order.Items[0].ID)
	assert.Equal(t, "household-2", env.Message.Order.Provider.ID)
}

func TestEvaluateOffersTieKeepsEarliest(t *testing.T) {
	e := newTestEngine()
	st := domain.NewNegotiationState("household-1", buyerProfile(4))
	st.Phase = domain.PhaseAwaitingOffers
	st.ActiveTransactionID = "txn-1"
	st.ActiveContext = searchEnvelope("txn-1").Context

	st.Trigger = domain.TriggerIncomingOnSearch
	st.Incoming = onSearchEnvelope("txn-1", "household-2", "http://localhost:9003",
		domain.EnergyOffer{OfferID: "offer-first", ProviderID: "household-2", QuantityKWh: 10, PricePerKWh: 0.15},
		domain.EnergyOffer{OfferID: "offer-second", ProviderID: "household-2", QuantityKWh: 10, PricePerKWh: 0.15},
	)

	out, err := e.Run(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, out.SelectedOffer)
	assert.Equal(t, "offer-first", out.SelectedOffer.OfferID)
}

func TestEvaluateOffersEmptyCatalogFailsSearch(t *testing.T) {
	e := newTestEngine()
	st := domain.NewNegotiationState("household-1", buyerProfile(4))
	st.Phase = domain.PhaseAwaitingOffers
	st.ActiveTransactionID = "txn-1"
	st.ActiveContext = searchEnvelope("txn-1").Context
	st.Trigger = domain.TriggerIncomingOnSearch
	st.Incoming = onSearchEnvelope("txn-1", "utility-1", "http://localhost:9002")

	out, err := e.Run(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerSearchFailed, out.Trigger)
	assert.Nil(t, out.SelectedOffer)
	assert.Nil(t, out.Outgoing)
	assert.Empty(t, out.ReceivedOffers)
	assert.Equal(t, domain.PhaseAwaitingOffers, out.Phase, "a failed evaluation leaves the search open")
}

func TestEvaluateOffersDropsExpiredAndInvalid(t *testing.T) {
	e := newTestEngine()
	st := domain.NewNegotiationState("household-1", buyerProfile(4))
	st.Phase = domain.PhaseAwaitingOffers
	st.ActiveTransactionID = "txn-1"
	st.ActiveContext = searchEnvelope("txn-1").Context
	st.Trigger = domain.TriggerIncomingOnSearch
	st.Incoming = onSearchEnvelope("txn-1", "utility-1", "http://localhost:9002",
		domain.EnergyOffer{OfferID: "offer-expired", ProviderID: "utility-1", QuantityKWh: 10, PricePerKWh: 0.10, ValidUntil: testTime.Add(-time.Minute)},
		domain.EnergyOffer{OfferID: "", ProviderID: "utility-1", QuantityKWh: 10, PricePerKWh: 0.05},
		domain.EnergyOffer{OfferID: "offer-ok", ProviderID: "utility-1", QuantityKWh: 10, PricePerKWh: 0.25, ValidUntil: testTime.Add(time.Minute)},
	)

	out, err := e.Run(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, out.SelectedOffer)
	assert.Equal(t, "offer-ok", out.SelectedOffer.OfferID, "expired and invalid offers never win")
	require.Len(t, out.ReceivedOffers, 1)
}

func TestBuyerCallbackProgression(t *testing.T) {
	e := newTestEngine()

	st := domain.NewNegotiationState("household-1", buyerProfile(4))
	st.Phase = domain.PhaseOfferSelected
	st.ActiveTransactionID = "txn-1"
	st.ActiveContext = &domain.Context{
		Domain:        domain.ProtocolDomain,
		Action:        domain.ActionSelect,
		TransactionID: "txn-1",
		BapID:         "household-1",
		BapURI:        "http://localhost:9001",
		BppID:         "utility-1",
		BppURI:        "http://localhost:9002",
	}
	st.SelectedOffer = &domain.EnergyOffer{
		OfferID: "offer-1", ProviderID: "utility-1", QuantityKWh: 500, PricePerKWh: 0.25,
	}

	t.Run("on_select sends init", func(t *testing.T) {
		cur := st.Clone()
		cur.Trigger = domain.TriggerIncomingOnSelect
		cur.Incoming = &domain.Envelope{
			Context: cur.ActiveContext.Reply(domain.ActionOnSelect, "msg-x", testTime),
			Message: &domain.Message{Order: &domain.Order{}},
		}

		out, err := e.Run(context.Background(), cur)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseAwaitingQuote, out.Phase)
		require.NotNil(t, out.Outgoing)
		assert.Equal(t, domain.ActionInit, out.Outgoing.Envelope.Context.Action)
		assert.Equal(t, "offer-1", out.Outgoing.Envelope.Message.Order.Items[0].ID)
		st = out
	})

	t.Run("on_init sends confirm", func(t *testing.T) {
		cur := st.Clone()
		cur.Trigger = domain.TriggerIncomingOnInit
		cur.Incoming = &domain.Envelope{
			Context: cur.ActiveContext.Reply(domain.ActionOnInit, "msg-y", testTime),
			Message: &domain.Message{Order: &domain.Order{
				Quote: &domain.Quote{Price: domain.Price{Currency: "USD", Value: "2.50"}},
			}},
		}

		out, err := e.Run(context.Background(), cur)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseAwaitingConfirmation, out.Phase)
		require.NotNil(t, out.Outgoing)
		assert.Equal(t, domain.ActionConfirm, out.Outgoing.Envelope.Context.Action)
		st = out
	})

	t.Run("on_confirm settles", func(t *testing.T) {
		cur := st.Clone()
		cur.Trigger = domain.TriggerIncomingOnConfirm
		cur.Incoming = &domain.Envelope{
			Context: cur.ActiveContext.Reply(domain.ActionOnConfirm, "msg-z", testTime),
			Message: &domain.Message{Order: &domain.Order{
				ID:     "contract-1",
				Status: domain.OrderStatusConfirmed,
				Contract: &domain.EnergyContract{
					ContractID:        "contract-1",
					BuyerID:           "household-1",
					SellerID:          "utility-1",
					AgreedQuantityKWh: 10,
					AgreedPricePerKWh: 0.25,
					Status:            domain.FulfillmentPending,
				},
			}},
		}

		out, err := e.Run(context.Background(), cur)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseCompleted, out.Phase)
		require.NotNil(t, out.FinalContract)
		assert.Equal(t, "contract-1", out.FinalContract.ContractID)
		require.NotNil(t, out.PendingDelta)
		assert.Equal(t, 10.0, out.PendingDelta.KWh)
		assert.Equal(t, domain.DeltaPurchase, out.PendingDelta.Reason)
		assert.Nil(t, out.Outgoing, "completion sends nothing")
	})
}

func TestSendInitWithoutSelectionAbandons(t *testing.T) {
	e := newTestEngine()
	st := domain.NewNegotiationState("household-1", buyerProfile(4))
	st.Phase = domain.PhaseOfferSelected
	st.ActiveTransactionID = "txn-1"
	st.ActiveContext = &domain.Context{TransactionID: "txn-1", BapID: "household-1", BapURI: "http://localhost:9001"}
	st.Trigger = domain.TriggerIncomingOnSelect

	out, err := e.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerTransactionFailed, out.Trigger)
	assert.Nil(t, out.Outgoing)
}

func TestOnConfirmWithoutContractFailsRun(t *testing.T) {
	e := newTestEngine()
	st := domain.NewNegotiationState("household-1", buyerProfile(4))
	st.Phase = domain.PhaseAwaitingConfirmation
	st.ActiveTransactionID = "txn-1"
	st.Trigger = domain.TriggerIncomingOnConfirm
	st.Incoming = &domain.Envelope{
		Context: &domain.Context{TransactionID: "txn-1", Action: domain.ActionOnConfirm, BapID: "household-1", BapURI: "http://x"},
		Message: &domain.Message{Order: &domain.Order{}},
	}

	_, err := e.Run(context.Background(), st)
	require.ErrorIs(t, err, domain.ErrMalformedPayload)
}

func TestPhaseGuardRejectsStaleAndDuplicate(t *testing.T) {
	e := newTestEngine()

	t.Run("late on_search after selection", func(t *testing.T) {
		st := domain.NewNegotiationState("household-1", buyerProfile(4))
		st.Phase = domain.PhaseOfferSelected
		st.ActiveTransactionID = "txn-1"
		st.Trigger = domain.TriggerIncomingOnSearch

		out, err := e.Run(context.Background(), st)
		require.ErrorIs(t, err, domain.ErrIllegalPhase)
		assert.Same(t, st, out, "rejected runs hand back the input state")
	})

	t.Run("duplicate on_confirm on a fresh record", func(t *testing.T) {
		// After completion the transaction record is deleted, so a
		// redelivered on_confirm sees a fresh idle record and must not
		// credit the profile twice.
		st := domain.NewNegotiationState("household-1", buyerProfile(14))
		st.Trigger = domain.TriggerIncomingOnConfirm

		out, err := e.Run(context.Background(), st)
		require.ErrorIs(t, err, domain.ErrIllegalPhase)
		assert.Nil(t, out.PendingDelta)
		assert.Nil(t, out.FinalContract)
	})
}

func TestUnknownTriggerLeavesStateUntouched(t *testing.T) {
	e := newTestEngine()
	st := domain.NewNegotiationState("household-1", buyerProfile(4))
	st.Trigger = domain.Trigger("solar_flare")

	out, err := e.Run(context.Background(), st)
	require.ErrorIs(t, err, domain.ErrUnknownTrigger)
	assert.Same(t, st, out)
}
