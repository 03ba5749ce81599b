/*
Package policy ships the standard pricing and availability rules of the
simulated market.

The numbers here are deliberately simple: households sell small blocks
at a low rate, utilities sell bulk at a premium, and settlement always
moves one standard block. Swap these implementations out through
pkg/ports to model different market behavior without touching the
engine.
*/
package policy
