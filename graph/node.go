package graph

import "fmt"

// NodeKind identifies the variant of a flowchart node.
//
// The set of kinds is closed: the engine dispatches on it with a single
// switch, so adding a kind means touching execute and route in engine.go.
type NodeKind int

const (
	// KindStep runs one action, then continues with Next.
	KindStep NodeKind = iota

	// KindDecision runs a boolean action and continues with True or False.
	KindDecision

	// KindSwitch runs a value action and continues with the matching case,
	// the null case, or Default.
	KindSwitch

	// KindSplit forks unconditionally into every entry of Branches.
	KindSplit

	// KindMerge joins the branches of its originating Split under a JoinPolicy.
	KindMerge
)

// String returns the lower-case kind name used in events and metric labels.
func (k NodeKind) String() string {
	switch k {
	case KindStep:
		return "step"
	case KindDecision:
		return "decision"
	case KindSwitch:
		return "switch"
	case KindSplit:
		return "split"
	case KindMerge:
		return "merge"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// JoinPolicy controls when a Merge node lets execution continue.
type JoinPolicy int

const (
	// JoinAll waits until every sibling running under the originating Split
	// has reached a terminal state.
	JoinAll JoinPolicy = iota

	// JoinFirst continues after the first branch arrives. Every other running
	// sibling is asked to cancel, and the Merge waits for those cancellations
	// to land before it enqueues Next.
	JoinFirst
)

func (p JoinPolicy) String() string {
	if p == JoinFirst {
		return "first"
	}
	return "all"
}

// Action is the unit of work a node hands to the host runtime.
//
// The engine never runs an action itself. It passes the value to
// Host.ScheduleAction and later receives the outcome through
// Engine.OnLeafCompleted. Decision actions must complete with a bool result;
// Switch actions may complete with any value.
type Action interface {
	Name() string
}

// Node is a vertex of a flowchart.
//
// Nodes are plain data owned by a Flowchart. Which fields are meaningful
// depends on Kind:
//
//	Step     Action (optional), Next
//	Decision Action, True, False
//	Switch   Action, Cases, NullCase, Default
//	Split    Branches
//	Merge    Join, Next
//
// A nil successor is the normal end of a path, not an error. Once a
// Flowchart has been compiled its nodes must not be modified; the compiled
// Definition assigns each reachable node a stable index that is used as the
// persistence key for its runtime state.
type Node struct {
	ID   string
	Kind NodeKind

	Action Action

	Next *Node

	True  *Node
	False *Node

	// Cases maps a case key to its successor. A key present with a nil
	// successor ends the branch when matched.
	Cases    map[string]*Node
	NullCase *Node
	Default  *Node

	Branches []*Node

	Join JoinPolicy
}

// NewStep creates a Step node. action may be nil, in which case the step
// completes synchronously without a result.
func NewStep(id string, action Action) *Node {
	return &Node{ID: id, Kind: KindStep, Action: action}
}

// NewDecision creates a Decision node whose action must produce a bool.
func NewDecision(id string, action Action) *Node {
	return &Node{ID: id, Kind: KindDecision, Action: action}
}

// NewSwitch creates a Switch node with an empty case table.
func NewSwitch(id string, action Action) *Node {
	return &Node{ID: id, Kind: KindSwitch, Action: action, Cases: make(map[string]*Node)}
}

// NewSplit creates a Split node that forks into branches in the given order.
func NewSplit(id string, branches ...*Node) *Node {
	return &Node{ID: id, Kind: KindSplit, Branches: branches}
}

// NewMerge creates a Merge node with the given join policy.
func NewMerge(id string, join JoinPolicy) *Node {
	return &Node{ID: id, Kind: KindMerge, Join: join}
}

// Then sets n.Next and returns next, so sequences can be chained:
//
//	a.Then(b).Then(c)
func (n *Node) Then(next *Node) *Node {
	n.Next = next
	return next
}

// OnTrue sets the successor taken when a Decision yields true.
func (n *Node) OnTrue(next *Node) *Node {
	n.True = next
	return n
}

// OnFalse sets the successor taken when a Decision yields false.
func (n *Node) OnFalse(next *Node) *Node {
	n.False = next
	return n
}

// Case adds a Switch case. Results are matched against key by their
// canonical string form (see CaseKey).
func (n *Node) Case(key string, next *Node) *Node {
	if n.Cases == nil {
		n.Cases = make(map[string]*Node)
	}
	n.Cases[key] = next
	return n
}

// CaseNull sets the successor selected when a Switch action yields nil.
func (n *Node) CaseNull(next *Node) *Node {
	n.NullCase = next
	return n
}

// Otherwise sets the Switch default successor.
func (n *Node) Otherwise(next *Node) *Node {
	n.Default = next
	return n
}

// Branch appends a branch entry to a Split.
func (n *Node) Branch(entry *Node) *Node {
	n.Branches = append(n.Branches, entry)
	return n
}

// CaseKey returns the case-table key a Switch result is matched against.
// The boolean is false for a nil result, which selects the null case.
func CaseKey(result any) (string, bool) {
	switch v := result.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	case float64:
		// JSON round trips turn integers into float64; keep 3 and 3.0 equal.
		if v == float64(int64(v)) {
			return fmt.Sprint(int64(v)), true
		}
		return fmt.Sprint(v), true
	default:
		return fmt.Sprint(v), true
	}
}

// NodeError reports a node that faulted during execution.
type NodeError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling.
	Code string

	// NodeID identifies which node produced this error.
	NodeID string

	// Cause is the underlying error that caused this NodeError.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
