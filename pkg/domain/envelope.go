package domain

import (
	"fmt"
	"time"
)

// ProtocolDomain identifies the energy retail domain on the wire.
const ProtocolDomain = "uei:energy"

// ProtocolVersion is the envelope schema version agents emit.
const ProtocolVersion = "1.0.0"

// DefaultTTL is the validity window stamped on outgoing contexts,
// expressed as an ISO 8601 duration.
const DefaultTTL = "PT10S"

// Action is the protocol verb carried in the envelope context. Requests
// flow Buyer to Seller, callbacks flow back with an on_ prefix.
type Action string

const (
	ActionSearch    Action = "search"
	ActionOnSearch  Action = "on_search"
	ActionSelect    Action = "select"
	ActionOnSelect  Action = "on_select"
	ActionInit      Action = "init"
	ActionOnInit    Action = "on_init"
	ActionConfirm   Action = "confirm"
	ActionOnConfirm Action = "on_confirm"
)

// IsCallback reports whether the action is an asynchronous on_* reply
// addressed to the buyer's callback URI.
func (a Action) IsCallback() bool {
	switch a {
	case ActionOnSearch, ActionOnSelect, ActionOnInit, ActionOnConfirm:
		return true
	}
	return false
}

// Valid reports whether a is a known protocol action.
func (a Action) Valid() bool {
	switch a {
	case ActionSearch, ActionOnSearch, ActionSelect, ActionOnSelect,
		ActionInit, ActionOnInit, ActionConfirm, ActionOnConfirm:
		return true
	}
	return false
}

// Context is the routing header shared by every protocol message. The
// same transaction ID threads through the whole search to on_confirm
// exchange; callbacks reuse the context of the request they answer with
// the action swapped and a fresh message ID.
type Context struct {
	Domain        string    `json:"domain" mapstructure:"domain"`
	Action        Action    `json:"action" mapstructure:"action"`
	Version       string    `json:"version" mapstructure:"version"`
	TransactionID string    `json:"transaction_id" mapstructure:"transaction_id"`
	MessageID     string    `json:"message_id" mapstructure:"message_id"`
	BapID         string    `json:"bap_id" mapstructure:"bap_id"`
	BapURI        string    `json:"bap_uri" mapstructure:"bap_uri"`
	BppID         string    `json:"bpp_id,omitempty" mapstructure:"bpp_id"`
	BppURI        string    `json:"bpp_uri,omitempty" mapstructure:"bpp_uri"`
	Timestamp     time.Time `json:"timestamp" mapstructure:"timestamp"`
	TTL           string    `json:"ttl,omitempty" mapstructure:"ttl"`
}

// Validate checks the fields every inbound context must carry.
func (c *Context) Validate() error {
	if c.TransactionID == "" {
		return fmt.Errorf("context: transaction_id is required")
	}
	if !c.Action.Valid() {
		return fmt.Errorf("context %s: unknown action %q", c.TransactionID, c.Action)
	}
	if c.BapID == "" || c.BapURI == "" {
		return fmt.Errorf("context %s: bap_id and bap_uri are required", c.TransactionID)
	}
	return nil
}

// Reply derives the context for an answer to c: same transaction and
// parties, the given action, a fresh message ID and timestamp.
func (c *Context) Reply(action Action, messageID string, now time.Time) *Context {
	out := *c
	out.Action = action
	out.MessageID = messageID
	out.Timestamp = now.UTC()
	return &out
}

// Clone returns an independent copy of the context.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Descriptor names the thing an intent is searching for.
type Descriptor struct {
	Code string `json:"code,omitempty" mapstructure:"code"`
	Name string `json:"name,omitempty" mapstructure:"name"`
}

// Intent describes a buyer's energy need inside a search message.
type Intent struct {
	Descriptor  *Descriptor `json:"descriptor,omitempty" mapstructure:"descriptor"`
	QuantityKWh float64     `json:"quantity_kwh,omitempty" mapstructure:"quantity_kwh"`
}

// Catalog is a seller's answer to a search: the offers it is willing to
// stand behind right now.
type Catalog struct {
	ProviderID string        `json:"provider_id,omitempty" mapstructure:"provider_id"`
	Items      []EnergyOffer `json:"items" mapstructure:"items"`
}

// Price is a display-oriented money amount. Values travel as strings so
// no party ever re-rounds another party's arithmetic.
type Price struct {
	Currency string `json:"currency" mapstructure:"currency"`
	Value    string `json:"value" mapstructure:"value"`
}

// Quote carries the seller's priced terms during init and on_init.
type Quote struct {
	Price Price  `json:"price" mapstructure:"price"`
	TTL   string `json:"ttl,omitempty" mapstructure:"ttl"`
}

// ProviderRef points at a seller by ID.
type ProviderRef struct {
	ID string `json:"id" mapstructure:"id"`
}

// ItemRef points at a previously cataloged offer by ID.
type ItemRef struct {
	ID string `json:"id" mapstructure:"id"`
}

// Order is the negotiation payload of select, init, confirm and their
// callbacks. Requests reference the chosen offer by ID; callbacks add a
// quote during init and the signed contract at confirmation.
type Order struct {
	ID       string          `json:"id,omitempty" mapstructure:"id"`
	Status   string          `json:"status,omitempty" mapstructure:"status"`
	Provider *ProviderRef    `json:"provider,omitempty" mapstructure:"provider"`
	Items    []ItemRef       `json:"items,omitempty" mapstructure:"items"`
	Quote    *Quote          `json:"quote,omitempty" mapstructure:"quote"`
	Contract *EnergyContract `json:"contract,omitempty" mapstructure:"contract"`
}

// OrderStatusConfirmed marks an order whose contract is signed.
const OrderStatusConfirmed = "CONFIRMED"

// Ack is the synchronous receipt for an accepted request.
type Ack struct {
	Status string `json:"status" mapstructure:"status"`
}

// AckStatus values.
const (
	AckStatusACK  = "ACK"
	AckStatusNACK = "NACK"
)

// Message is the payload half of an envelope. Exactly one field is set
// for a given action; the zero Message is an empty payload.
type Message struct {
	Intent  *Intent  `json:"intent,omitempty" mapstructure:"intent"`
	Catalog *Catalog `json:"catalog,omitempty" mapstructure:"catalog"`
	Order   *Order   `json:"order,omitempty" mapstructure:"order"`
	Ack     *Ack     `json:"ack,omitempty" mapstructure:"ack"`
}

// Envelope is the complete wire unit: routing context plus payload.
type Envelope struct {
	Context *Context `json:"context" mapstructure:"context"`
	Message *Message `json:"message" mapstructure:"message"`
}

// Validate checks that the envelope carries a valid context.
func (e *Envelope) Validate() error {
	if e.Context == nil {
		return fmt.Errorf("envelope: context is required")
	}
	return e.Context.Validate()
}

// AckEnvelope builds the synchronous receipt returned for an accepted
// request.
func AckEnvelope() *Envelope {
	return &Envelope{Message: &Message{Ack: &Ack{Status: AckStatusACK}}}
}

// NackEnvelope builds the synchronous receipt for a rejected request.
func NackEnvelope() *Envelope {
	return &Envelope{Message: &Message{Ack: &Ack{Status: AckStatusNACK}}}
}
