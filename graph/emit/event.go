package emit

// Event is a single observability record emitted by the engine.
//
// Messages emitted by the scheduler:
//
//	flowchart_activated   start node enqueued
//	node_scheduled        action handed to the host (meta: action, handle)
//	node_completed        node finished successfully (meta: next, branches)
//	node_canceled         node finished through cancellation
//	node_skipped          queued node dropped because work was canceled
//	node_faulted          node failed (meta: error)
//	merge_armed           first arrival at a Merge (meta: policy)
//	merge_joined          Merge continued past its join (meta: policy)
//	cancel_requested      node cancellation issued (meta: reason)
//	flowchart_canceling   instance cancellation started
//	flowchart_closed      instance reached a terminal status (meta: status)
//
// Node events always carry "kind" and "index" in Meta.
type Event struct {
	// RunID identifies the flowchart instance that emitted this event.
	RunID string

	// Step is the number of nodes drained so far in the current turn.
	Step int

	// NodeID identifies the node the event is about. Empty for
	// instance-level events.
	NodeID string

	// Msg is the event name.
	Msg string

	// Meta contains additional structured data specific to this event.
	Meta map[string]interface{}
}
