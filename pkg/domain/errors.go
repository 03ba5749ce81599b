package domain

import "errors"

// Sentinel errors shared across the engine, stores, and adapters.
// Callers should match with errors.Is, never by string comparison.
var (
	// ErrStateNotFound is returned by state stores when no record exists
	// for the requested key.
	ErrStateNotFound = errors.New("state not found")

	// ErrUnknownTrigger is returned when a trigger has no route for the
	// agent's role. Unknown triggers leave state untouched.
	ErrUnknownTrigger = errors.New("unknown trigger")

	// ErrIllegalPhase is returned when a trigger arrives in a phase that
	// does not admit it, for example a duplicate on_confirm after the
	// transaction already completed.
	ErrIllegalPhase = errors.New("trigger not legal in current phase")

	// ErrNoProfile is returned by handlers that need an agent profile
	// when the state carries none.
	ErrNoProfile = errors.New("state carries no agent profile")

	// ErrNoContext is returned by handlers that must answer a
	// counterparty but the state carries no transaction context.
	ErrNoContext = errors.New("state carries no transaction context")

	// ErrInvalidOffer is returned when an offer fails validation.
	ErrInvalidOffer = errors.New("invalid offer")

	// ErrMalformedPayload is returned when an envelope's message lacks
	// the parts its action requires, for example an on_confirm without a
	// contract.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrAgentNotFound is returned by registries when an agent ID is not
	// registered.
	ErrAgentNotFound = errors.New("agent not found")
)
