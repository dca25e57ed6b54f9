package graph

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExecutionState_JSONRoundTrip(t *testing.T) {
	st := NewExecutionState()
	st.Activated = true
	st.Status = StatusRunning
	st.node(2).Running = true
	st.node(2).Handles = []Handle{"h1"}
	st.Handles["h1"] = 2
	st.node(4).Armed = true

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got := NewExecutionState()
	if err := json.Unmarshal(data, got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if diff := cmp.Diff(st, got); diff != "" {
		t.Errorf("state changed across round trip (-want +got):\n%s", diff)
	}
}

func TestExecutionState_Clone(t *testing.T) {
	st := NewExecutionState()
	st.node(0).Handles = []Handle{"h1"}
	st.Handles["h1"] = 0

	clone, err := st.Clone()
	if err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	clone.Nodes[0].Handles[0] = "changed"
	delete(clone.Handles, "h1")

	if st.Nodes[0].Handles[0] != "h1" || st.Outstanding() != 1 {
		t.Error("Clone() shares memory with the original")
	}
}

func TestNodeState_RemoveHandle(t *testing.T) {
	ns := &NodeState{Running: true, Handles: []Handle{"a", "b", "c"}}
	ns.removeHandle("b")
	ns.removeHandle("missing")

	if diff := cmp.Diff([]Handle{"a", "c"}, ns.Handles); diff != "" {
		t.Errorf("Handles mismatch (-want +got):\n%s", diff)
	}
	if !ns.active() {
		t.Error("running node should be active")
	}
	ns.Completed = true
	if ns.active() {
		t.Error("completed node should not be active")
	}
}

func TestStatus_Closed(t *testing.T) {
	for s, want := range map[Status]bool{
		StatusPending:   false,
		StatusRunning:   false,
		StatusCompleted: true,
		StatusCanceled:  true,
		StatusFaulted:   true,
	} {
		if s.Closed() != want {
			t.Errorf("%s.Closed() = %v, want %v", s, !want, want)
		}
	}
}
