package graph

import (
	"context"
	"fmt"
)

// Handle is the opaque token a host returns when it schedules an action.
// The engine uses it to correlate the later completion with its node.
type Handle string

// CompletionState is the final state of a scheduled action.
type CompletionState int

const (
	// CompletionClosed means the action finished normally.
	CompletionClosed CompletionState = iota

	// CompletionCanceled means the action honored a cancellation request.
	CompletionCanceled

	// CompletionFaulted means the action failed.
	CompletionFaulted
)

func (s CompletionState) String() string {
	switch s {
	case CompletionClosed:
		return "closed"
	case CompletionCanceled:
		return "canceled"
	case CompletionFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("completion(%d)", int(s))
	}
}

// Completion is the outcome of a scheduled action as reported by the host.
type Completion struct {
	State  CompletionState
	Result any
	Err    error
}

// Closed is shorthand for a successful completion carrying result.
func Closed(result any) Completion {
	return Completion{State: CompletionClosed, Result: result}
}

// Canceled is shorthand for a canceled completion.
func Canceled() Completion {
	return Completion{State: CompletionCanceled}
}

// Faulted is shorthand for a failed completion.
func Faulted(err error) Completion {
	return Completion{State: CompletionFaulted, Err: err}
}

// Host is the activity-hosting runtime an Engine runs inside.
//
// The engine is single-threaded and cooperative: it calls the host only from
// inside Activate, OnLeafCompleted, RequestNodeCancel or Cancel, and it never
// waits for an action to finish. The host in turn must:
//
//   - Report every scheduled action exactly once through OnLeafCompleted,
//     including actions that were canceled.
//   - Never call into the engine while another engine call for the same
//     instance is in progress. Completions produced synchronously inside
//     ScheduleAction must be queued and delivered after the call returns.
//   - Persist the values returned by ExternalState together with the rest of
//     the instance, so an engine rebuilt from the Definition alone can resume.
type Host interface {
	// ScheduleAction starts a leaf action and returns its handle.
	ScheduleAction(ctx context.Context, action Action) (Handle, error)

	// RequestCancel asks the host to cancel a scheduled action. It is best
	// effort and asynchronous; the completion arrives later.
	RequestCancel(ctx context.Context, h Handle) error

	// IsCancellationRequested reports whether the whole instance is being
	// canceled.
	IsCancellationRequested() bool

	// ExternalState returns the persistable value stored under key, calling
	// create to initialize the slot on first use. create must return a
	// pointer; hosts that rehydrate lazily decode stored bytes into a value
	// obtained from create.
	ExternalState(key string, create func() any) (any, error)
}

// ExternalState is a typed accessor over Host.ExternalState.
func ExternalState[T any](h Host, key string, create func() T) (T, error) {
	var zero T
	v, err := h.ExternalState(key, func() any { return create() })
	if err != nil {
		return zero, fmt.Errorf("external state %q: %w", key, err)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: slot %q holds %T", ErrStateType, key, v)
	}
	return t, nil
}
