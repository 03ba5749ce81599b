package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *NegotiationState {
	return &NegotiationState{
		AgentID: "household-1",
		Phase:   PhaseAwaitingOffers,
		Profile: &AgentProfile{
			AgentID:          "household-1",
			AgentType:        AgentHousehold,
			CurrentEnergyKWh: 4.0,
			MaxCapacityKWh:   15.0,
		},
		ActiveTransactionID: "txn-1",
		ActiveContext: &Context{
			Domain:        ProtocolDomain,
			Action:        ActionSearch,
			TransactionID: "txn-1",
			BapID:         "household-1",
			BapURI:        "http://localhost:9001",
		},
		ReceivedOffers: []EnergyOffer{
			{OfferID: "offer-1", ProviderID: "utility-1", QuantityKWh: 10, PricePerKWh: 0.25},
		},
		ProviderURIs: map[string]string{"utility-1": "http://localhost:9002"},
	}
}

func TestNegotiationStateClone(t *testing.T) {
	orig := sampleState()
	cp := orig.Clone()

	require.NotSame(t, orig, cp)
	assert.Equal(t, orig, cp)

	cp.Profile.CurrentEnergyKWh = 99
	cp.ReceivedOffers[0].PricePerKWh = 0.01
	cp.ActiveContext.Action = ActionConfirm
	cp.ProviderURIs["utility-1"] = "http://elsewhere"

	assert.Equal(t, 4.0, orig.Profile.CurrentEnergyKWh)
	assert.Equal(t, 0.25, orig.ReceivedOffers[0].PricePerKWh)
	assert.Equal(t, ActionSearch, orig.ActiveContext.Action)
	assert.Equal(t, "http://localhost:9002", orig.ProviderURIs["utility-1"])
}

func TestNegotiationStateClearTransaction(t *testing.T) {
	st := sampleState()
	st.SelectedOffer = &st.ReceivedOffers[0]
	st.FinalContract = &EnergyContract{ContractID: "c-1", BuyerID: "household-1", SellerID: "utility-1"}

	st.ClearTransaction()

	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Empty(t, st.ActiveTransactionID)
	assert.Nil(t, st.ActiveContext)
	assert.Nil(t, st.ReceivedOffers)
	assert.Nil(t, st.ProviderURIs)
	assert.Nil(t, st.SelectedOffer)
	assert.Nil(t, st.FinalContract)
	assert.False(t, st.InTransaction())

	require.NotNil(t, st.Profile, "profile must survive a transaction reset")
	assert.Equal(t, 4.0, st.Profile.CurrentEnergyKWh)
}

func TestContextReply(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := &Context{
		Domain:        ProtocolDomain,
		Action:        ActionSelect,
		TransactionID: "txn-9",
		MessageID:     "msg-1",
		BapID:         "household-1",
		BapURI:        "http://localhost:9001",
		BppID:         "utility-1",
		BppURI:        "http://localhost:9002",
	}

	out := in.Reply(ActionOnSelect, "msg-2", now)

	assert.Equal(t, ActionOnSelect, out.Action)
	assert.Equal(t, "msg-2", out.MessageID)
	assert.Equal(t, now, out.Timestamp)
	assert.Equal(t, "txn-9", out.TransactionID)
	assert.Equal(t, "utility-1", out.BppID)

	// The original context is left alone.
	assert.Equal(t, ActionSelect, in.Action)
	assert.Equal(t, "msg-1", in.MessageID)
}
