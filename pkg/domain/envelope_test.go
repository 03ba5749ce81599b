package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeWireShape(t *testing.T) {
	env := &Envelope{
		Context: &Context{
			Domain:        ProtocolDomain,
			Action:        ActionOnSearch,
			Version:       ProtocolVersion,
			TransactionID: "txn-1",
			MessageID:     "msg-1",
			BapID:         "household-1",
			BapURI:        "http://localhost:9001",
			BppID:         "utility-1",
			BppURI:        "http://localhost:9002",
			Timestamp:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			TTL:           DefaultTTL,
		},
		Message: &Message{
			Catalog: &Catalog{
				ProviderID: "utility-1",
				Items: []EnergyOffer{
					{OfferID: "offer-1", ProviderID: "utility-1", QuantityKWh: 500, PricePerKWh: 0.25},
				},
			},
		},
	}

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	ctx, ok := decoded["context"].(map[string]any)
	require.True(t, ok, "context must be a JSON object")
	assert.Equal(t, "uei:energy", ctx["domain"])
	assert.Equal(t, "on_search", ctx["action"])
	assert.Equal(t, "txn-1", ctx["transaction_id"])
	assert.Equal(t, "household-1", ctx["bap_id"])
	assert.Equal(t, "http://localhost:9002", ctx["bpp_uri"])

	msg, ok := decoded["message"].(map[string]any)
	require.True(t, ok, "message must be a JSON object")
	catalog, ok := msg["catalog"].(map[string]any)
	require.True(t, ok)
	items, ok := catalog["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "offer-1", item["offer_id"])
	assert.Equal(t, 0.25, item["price_per_kwh"])
}

func TestEnvelopeValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     *Envelope
		wantErr string
	}{
		{
			name:    "missing context",
			env:     &Envelope{Message: &Message{}},
			wantErr: "context is required",
		},
		{
			name: "missing transaction id",
			env: &Envelope{Context: &Context{
				Action: ActionSearch, BapID: "a", BapURI: "http://a",
			}},
			wantErr: "transaction_id is required",
		},
		{
			name: "unknown action",
			env: &Envelope{Context: &Context{
				TransactionID: "txn-1", Action: "cancel", BapID: "a", BapURI: "http://a",
			}},
			wantErr: "unknown action",
		},
		{
			name: "valid",
			env: &Envelope{Context: &Context{
				TransactionID: "txn-1", Action: ActionSearch, BapID: "a", BapURI: "http://a",
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAckEnvelopes(t *testing.T) {
	raw, err := json.Marshal(AckEnvelope())
	require.NoError(t, err)
	assert.JSONEq(t, `{"context":null,"message":{"ack":{"status":"ACK"}}}`, string(raw))

	nack := NackEnvelope()
	require.NotNil(t, nack.Message.Ack)
	assert.Equal(t, AckStatusNACK, nack.Message.Ack.Status)
}
