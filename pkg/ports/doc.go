/*
Package ports defines the driven ports (interfaces) of the negotiation
engine.

These interfaces decouple the transition logic from its surroundings so
the same engine runs against in-memory stores in tests and Redis in a
fleet, and so pricing behavior can be swapped without touching handler
code.

# Key Interfaces

  - StateStore: persistence for simulation- and transaction-scoped
    negotiation state.
  - Registry: the gateway's subscriber directory.
  - Transport: outbound delivery of protocol envelopes.
  - ProfileLedger: serialized application of energy deltas to a profile.
  - PricingPolicy / AvailabilityPolicy: the seller's commercial terms
    and the participation decision.

The package also ships contract test suites (RunStateStoreContract,
RunRegistryContract) that every adapter implementation is expected to
pass.
*/
package ports
