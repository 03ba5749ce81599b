package domain

// Trigger names the event a state transition reacts to. External
// triggers arrive from the wire or the simulation clock; internal
// triggers are emitted by handlers to chain a follow-up transition in
// the same run.
type Trigger string

// External triggers.
const (
	// TriggerSimulationCycle is the periodic clock tick on an agent's
	// simulation-scoped state.
	TriggerSimulationCycle Trigger = "simulation_cycle"

	// Buyer-to-seller requests.
	TriggerIncomingSearch  Trigger = "incoming_search"
	TriggerIncomingSelect  Trigger = "incoming_select"
	TriggerIncomingInit    Trigger = "incoming_init"
	TriggerIncomingConfirm Trigger = "incoming_confirm"

	// Seller-to-buyer callbacks.
	TriggerIncomingOnSearch  Trigger = "incoming_on_search"
	TriggerIncomingOnSelect  Trigger = "incoming_on_select"
	TriggerIncomingOnInit    Trigger = "incoming_on_init"
	TriggerIncomingOnConfirm Trigger = "incoming_on_confirm"
)

// Internal triggers emitted by handlers.
const (
	// TriggerStartBAPFlow asks the buyer side to open a new search.
	TriggerStartBAPFlow Trigger = "start_bap_flow"

	// TriggerSelectionMade reports that offer evaluation picked a winner.
	TriggerSelectionMade Trigger = "selection_made"

	// TriggerSearchFailed reports that offer evaluation had nothing to
	// pick from.
	TriggerSearchFailed Trigger = "search_failed"

	// TriggerTransactionFailed reports an aborted negotiation, for
	// example a callback that arrived without the state it needs.
	TriggerTransactionFailed Trigger = "transaction_failed"

	// TriggerIdle reports that the supervisor found nothing to do.
	TriggerIdle Trigger = "idle"
)

// actionTriggers maps each wire action to the trigger it raises on the
// receiving agent.
var actionTriggers = map[Action]Trigger{
	ActionSearch:    TriggerIncomingSearch,
	ActionSelect:    TriggerIncomingSelect,
	ActionInit:      TriggerIncomingInit,
	ActionConfirm:   TriggerIncomingConfirm,
	ActionOnSearch:  TriggerIncomingOnSearch,
	ActionOnSelect:  TriggerIncomingOnSelect,
	ActionOnInit:    TriggerIncomingOnInit,
	ActionOnConfirm: TriggerIncomingOnConfirm,
}

// TriggerForAction returns the trigger an inbound action raises, and
// whether the action is routable at all.
func TriggerForAction(a Action) (Trigger, bool) {
	t, ok := actionTriggers[a]
	return t, ok
}

// External reports whether the trigger originates outside the engine,
// from the wire or the simulation clock.
func (t Trigger) External() bool {
	switch t {
	case TriggerSimulationCycle,
		TriggerIncomingSearch, TriggerIncomingSelect,
		TriggerIncomingInit, TriggerIncomingConfirm,
		TriggerIncomingOnSearch, TriggerIncomingOnSelect,
		TriggerIncomingOnInit, TriggerIncomingOnConfirm:
		return true
	}
	return false
}
