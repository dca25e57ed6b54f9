package graph

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Status is the lifecycle state of one flowchart instance.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
	StatusFaulted   Status = "FAULTED"
)

// Closed reports whether the instance has reached a terminal status.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusFaulted
}

// NodeState is the runtime bookkeeping for one node index.
//
// A node is terminal once Completed is set; Canceled records that it got
// there through cancellation. Armed marks a Merge that has been reached and
// is waiting for its siblings.
type NodeState struct {
	Running         bool     `json:"running,omitempty"`
	CancelRequested bool     `json:"cancel_requested,omitempty"`
	Completed       bool     `json:"completed,omitempty"`
	Canceled        bool     `json:"canceled,omitempty"`
	Armed           bool     `json:"armed,omitempty"`
	Handles         []Handle `json:"handles,omitempty"`
}

// active reports whether the node still blocks a join.
func (s *NodeState) active() bool {
	return s.Running && !s.Completed
}

func (s *NodeState) removeHandle(h Handle) {
	for i, v := range s.Handles {
		if v == h {
			s.Handles = append(s.Handles[:i], s.Handles[i+1:]...)
			return
		}
	}
}

// ExecutionState is everything the engine knows about a running instance.
// It lives in the host's externalized slot, never in Engine fields, so an
// engine rebuilt from the Definition alone can resume after a rehydrate.
type ExecutionState struct {
	Nodes   map[int]*NodeState `json:"nodes"`
	Handles map[Handle]int     `json:"handles"`

	Status    Status `json:"status"`
	Activated bool   `json:"activated,omitempty"`

	// Canceling is set by Engine.Cancel and stops all further execution.
	Canceling bool `json:"canceling,omitempty"`

	// Interrupted records that some work ended through cancellation or a
	// non-successful completion. An instance canceled by its host reports
	// StatusCanceled instead of StatusCompleted when this is set.
	Interrupted bool `json:"interrupted,omitempty"`

	Fault     string `json:"fault,omitempty"`
	FaultNode string `json:"fault_node,omitempty"`
}

// NewExecutionState returns an empty state for a not yet activated instance.
func NewExecutionState() *ExecutionState {
	return &ExecutionState{
		Nodes:   make(map[int]*NodeState),
		Handles: make(map[Handle]int),
		Status:  StatusPending,
	}
}

// node returns the state for index i, creating it on first reference.
func (s *ExecutionState) node(i int) *NodeState {
	if s.Nodes == nil {
		s.Nodes = make(map[int]*NodeState)
	}
	st, ok := s.Nodes[i]
	if !ok {
		st = &NodeState{}
		s.Nodes[i] = st
	}
	return st
}

// awaitingJoin reports whether some Merge is armed but has not joined.
func (s *ExecutionState) awaitingJoin() bool {
	for _, st := range s.Nodes {
		if st.Armed && !st.Completed {
			return true
		}
	}
	return false
}

// peek returns the state for index i without creating it.
func (s *ExecutionState) peek(i int) *NodeState {
	return s.Nodes[i]
}

// indices returns node indices with state, ascending.
func (s *ExecutionState) indices() []int {
	out := make([]int, 0, len(s.Nodes))
	for i := range s.Nodes {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Outstanding returns the number of scheduled actions still awaiting
// completion.
func (s *ExecutionState) Outstanding() int {
	return len(s.Handles)
}

// Clone returns an independent copy of the state.
func (s *ExecutionState) Clone() (ExecutionState, error) {
	return deepCopy(*s)
}

// deepCopy creates a deep copy of v using a JSON round trip.
//
// Only exported, JSON-serializable fields survive. That is exactly the
// contract externalized state has to meet anyway, so a value that does not
// survive deepCopy would not survive a persist/rehydrate cycle either.
func deepCopy[S any](v S) (S, error) {
	var zero S

	data, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal state: %w", err)
	}

	var copied S
	if err := json.Unmarshal(data, &copied); err != nil {
		return zero, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return copied, nil
}
