/*
Package session serializes access to negotiation state.

Every transition run is a read-modify-write against one state key, so
two concurrent runs on the same key would silently drop each other's
writes. The Manager hands out a per-key mutex (reference counted, so
idle keys cost nothing) and can additionally take a distributed lock
when replicas share one store.

Keys come in two scopes: SimKey(agentID) for an agent's long-lived
simulation record, TxnKey(transactionID) for a single negotiation.
*/
package session
