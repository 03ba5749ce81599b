/*
Package gridswap implements an autonomous peer-to-peer energy trading
agent for local electricity markets. Households, solar farms and
utilities run the same binary; each agent watches its own battery,
searches the market when it runs low, and answers other agents'
searches when it holds surplus.

Negotiation follows the Beckn-style asynchronous pattern: every request
(search, select, init, confirm) is acknowledged immediately and
answered later by a callback (on_search, on_select, on_init,
on_confirm) to the buyer's public URL. A gateway fans searches out to
every registered seller; everything after the search flows directly
between the two agents.

# Concept

The engine treats a negotiation as a state machine over triggers:
inbound protocol messages and simulation clock ticks rewrite a
NegotiationState, and the dispatcher persists the result and sends
whatever request the transition produced. Handlers are free of I/O;
storage, transport and the energy ledger sit behind ports, so the same
core runs against the in-memory adapters in tests and Redis in a fleet.

# Key Features

  - Asynchronous protocol: immediate ACKs, callbacks carry the answers.
  - Serialized state: per-transaction locking and an actor-style ledger
    keep concurrent callbacks and ticks from losing updates.
  - Hexagonal architecture: swap storage (memory, Redis), transport and
    market policies without touching the negotiation core.
  - Built-in observability: Prometheus collectors and lifecycle hooks
    watch every transition, dispatch and energy change.

# Usage

Build an Agent from its energy profile, mount its handler, and let the
simulation loop drive it:

	package main

	import (
		"context"
		"log"
		"net/http"

		"github.com/gridswap/gridswap"
		"github.com/gridswap/gridswap/pkg/domain"
	)

	func main() {
		agent, err := gridswap.New(
			&domain.AgentProfile{
				AgentID:          "household-1",
				AgentType:        domain.AgentHousehold,
				CurrentEnergyKWh: 4,
				MaxCapacityKWh:   15,
			},
			gridswap.WithPublicURL("http://localhost:8001"),
			gridswap.WithGatewayURL("http://localhost:9000"),
		)
		if err != nil {
			log.Fatal(err)
		}
		defer agent.Close()

		// Register with the gateway and run the simulation loop.
		go agent.Run(context.Background())

		log.Fatal(http.ListenAndServe(":8001", agent.Handler()))
	}

The cmd/gridswap CLI wraps this wiring with file and environment
configuration; use the library directly when embedding an agent in a
larger process.
*/
package gridswap
