// Package emit delivers scheduler observability events to pluggable
// backends: log lines, an in-memory history, or OpenTelemetry spans.
package emit

// Emitter receives observability events from the flowchart engine.
//
// The engine calls Emit synchronously from inside a turn, so
// implementations should return quickly and must not call back into the
// engine. Emit must not panic; delivery failures are the emitter's problem.
type Emitter interface {
	Emit(event Event)
}

// MultiEmitter fans every event out to several emitters in order.
type MultiEmitter []Emitter

// Emit forwards event to each non-nil emitter.
func (m MultiEmitter) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
