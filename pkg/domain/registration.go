package domain

import (
	"fmt"
	"time"
)

// Role is the protocol-side an agent registers as. A household
// registers both ways; a utility is seller-only.
type Role string

const (
	// RoleBAP marks a buyer endpoint that receives on_* callbacks.
	RoleBAP Role = "BAP"
	// RoleBPP marks a seller endpoint that receives search and order
	// requests.
	RoleBPP Role = "BPP"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleBAP || r == RoleBPP
}

// Registration is a gateway registry entry: an agent's identity, its
// callback endpoint, and the side of the protocol it plays.
type Registration struct {
	SubscriberID  string    `json:"subscriber_id" mapstructure:"subscriber_id"`
	SubscriberURI string    `json:"subscriber_uri" mapstructure:"subscriber_uri"`
	Role          Role      `json:"type" mapstructure:"type"`
	AgentType     AgentType `json:"agent_type,omitempty" mapstructure:"agent_type"`
	RegisteredAt  time.Time `json:"registered_at,omitempty" mapstructure:"registered_at"`
}

// Validate checks the structural invariants of the registration.
func (r *Registration) Validate() error {
	if r.SubscriberID == "" {
		return fmt.Errorf("registration: subscriber_id is required")
	}
	if r.SubscriberURI == "" {
		return fmt.Errorf("registration %s: subscriber_uri is required", r.SubscriberID)
	}
	if !r.Role.Valid() {
		return fmt.Errorf("registration %s: unknown type %q", r.SubscriberID, r.Role)
	}
	return nil
}
