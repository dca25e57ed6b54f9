package emit

import "sync"

// BufferedEmitter keeps every event in memory, grouped by RunID, and lets
// callers query the history afterwards. It is meant for tests, debugging and
// small dashboards; nothing is ever evicted except through Clear.
//
// Example:
//
//	events := emit.NewBufferedEmitter()
//	engine, _ := graph.NewEngine(def, host, graph.WithInstanceID("run-1"), graph.WithEmitter(events))
//	_, _ = engine.Activate(ctx)
//	joins := events.GetHistoryWithFilter("run-1", emit.HistoryFilter{Msg: "merge_joined"})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// HistoryFilter selects events from a run's history. Empty fields match
// everything; set fields are combined with AND.
type HistoryFilter struct {
	NodeID  string
	Msg     string
	MinStep *int
	MaxStep *int
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit appends event to its run's history.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// GetHistory returns a copy of every event recorded for runID, in emission
// order. It never returns nil.
func (b *BufferedEmitter) GetHistory(runID string) []Event {
	return b.GetHistoryWithFilter(runID, HistoryFilter{})
}

// GetHistoryWithFilter returns the events of runID that match filter.
func (b *BufferedEmitter) GetHistoryWithFilter(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[runID] {
		if filter.matches(event) {
			result = append(result, event)
		}
	}
	return result
}

// Messages returns the Msg of every event recorded for runID, in order.
func (b *BufferedEmitter) Messages(runID string) []string {
	events := b.GetHistory(runID)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Msg
	}
	return out
}

func (f HistoryFilter) matches(event Event) bool {
	if f.NodeID != "" && event.NodeID != f.NodeID {
		return false
	}
	if f.Msg != "" && event.Msg != f.Msg {
		return false
	}
	if f.MinStep != nil && event.Step < *f.MinStep {
		return false
	}
	if f.MaxStep != nil && event.Step > *f.MaxStep {
		return false
	}
	return true
}

// Clear drops the history of runID, or of every run when runID is empty.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, runID)
}
