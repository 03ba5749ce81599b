/*
Package domain holds the core types of the energy negotiation protocol:
agent profiles, offers, contracts, the wire envelope, and the
per-transaction negotiation state machine.

Everything in this package is plain data. Types here carry no I/O and no
locking; persistence, transport, and concurrency live behind the
interfaces in pkg/ports. Handlers receive a *NegotiationState, return a
derived copy, and never mutate shared structures in place.

The wire format follows the Beckn-style request/callback split: a Buyer
(BAP) sends search/select/init/confirm actions, a Seller (BPP) answers
asynchronously with on_search/on_select/on_init/on_confirm callbacks.
Envelope and Context model that exchange; Trigger and Phase model how an
agent reacts to it.
*/
package domain
