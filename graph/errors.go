// Package graph provides the flowchart scheduler: the node model, static
// validation, and the execution engine that drives a compiled flowchart
// through a host runtime.
package graph

import "errors"

// ErrMaxStepsExceeded indicates that a single engine call drained more nodes
// than the configured limit. It usually means a synchronous cycle, such as a
// loop of action-less steps, that would otherwise never yield to the host.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")

// ErrUnknownHandle is returned when a completion names a handle the engine
// has no record of. It indicates that externalized state was not written or
// read consistently and is never recovered from silently.
var ErrUnknownHandle = errors.New("unknown action handle")

// ErrReentrantTurn is returned when the host calls into the engine while
// another engine call for the same instance is still running.
var ErrReentrantTurn = errors.New("engine re-entered during an active turn")

// ErrAlreadyActivated is returned by Activate on an instance whose
// externalized state shows it was activated before.
var ErrAlreadyActivated = errors.New("flowchart already activated")

// ErrInvalidResult is the fault recorded when an action result cannot be
// used to select a successor, such as a non-bool Decision result.
var ErrInvalidResult = errors.New("invalid action result")

// ErrUnknownNode is returned by RequestNodeCancel for an index outside the
// definition.
var ErrUnknownNode = errors.New("unknown node index")

// ErrStateType is returned when a host slot holds a value of the wrong type.
var ErrStateType = errors.New("external state has unexpected type")

// EngineError represents an error from Engine operations.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
