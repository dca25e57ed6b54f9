package graph

import (
	"fmt"
	"strings"
)

// Flowchart is the mutable, user-facing description of a graph: a start node
// plus the declared node set.
//
// Nodes only needs to list nodes the author wants validated; anything
// reachable from Start is part of the graph whether declared or not. When
// ValidateUnconnectedNodes is set, declared nodes that cannot be reached from
// Start are reported as errors instead of being ignored.
//
// Example:
//
//	a := graph.NewStep("a", fetchA)
//	b := graph.NewStep("b", fetchB)
//	join := graph.NewMerge("join", graph.JoinAll)
//	a.Then(join)
//	b.Then(join)
//	join.Then(graph.NewStep("report", report))
//
//	fc := &graph.Flowchart{Name: "fetch", Start: graph.NewSplit("fork", a, b)}
//	def, err := fc.Compile()
type Flowchart struct {
	Name  string
	Start *Node
	Nodes []*Node

	ValidateUnconnectedNodes bool
}

// Problem is a single static validation failure.
type Problem struct {
	NodeID  string
	Message string
}

func (p Problem) String() string {
	if p.NodeID == "" {
		return p.Message
	}
	return fmt.Sprintf("node %q: %s", p.NodeID, p.Message)
}

// ValidationError collects every problem found while compiling a Flowchart.
// A flowchart that fails validation never executes.
type ValidationError struct {
	Flowchart string
	Problems  []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	name := e.Flowchart
	if name == "" {
		name = "flowchart"
	}
	return fmt.Sprintf("%s is invalid: %s", name, strings.Join(parts, "; "))
}

// Definition is a compiled, immutable flowchart.
//
// Compilation assigns every reachable node a stable index in breadth-first
// order from the start node (the start node is always index 0) and runs the
// static branch analysis once. A Definition carries no execution state and is
// safe to share between any number of engines and goroutines.
type Definition struct {
	name  string
	nodes []*Node
	index map[*Node]int

	analysis *branchAnalysis
}

// Compile validates the flowchart and returns its compiled Definition.
//
// The returned error is a *ValidationError listing every problem found.
// Compiling the same unmodified flowchart twice yields identical results.
func (f *Flowchart) Compile() (*Definition, error) {
	var problems []Problem

	if f.Start == nil {
		return nil, &ValidationError{
			Flowchart: f.Name,
			Problems:  []Problem{{Message: "flowchart has no start node"}},
		}
	}

	nodes, index := reachable(f.Start)

	byID := make(map[string]*Node, len(nodes))
	checkID := func(n *Node) {
		if n.ID == "" {
			problems = append(problems, Problem{Message: fmt.Sprintf("%s node has no ID", n.Kind)})
			return
		}
		if other, ok := byID[n.ID]; ok && other != n {
			problems = append(problems, Problem{NodeID: n.ID, Message: "duplicate node ID"})
			return
		}
		byID[n.ID] = n
	}

	for _, n := range nodes {
		checkID(n)
		problems = append(problems, checkNode(n)...)
	}

	for _, n := range f.Nodes {
		if n == nil {
			problems = append(problems, Problem{Message: "declared node list contains nil"})
			continue
		}
		if _, ok := index[n]; ok {
			continue
		}
		checkID(n)
		if f.ValidateUnconnectedNodes {
			problems = append(problems, Problem{NodeID: n.ID, Message: "node is not reachable from the start node"})
		}
	}

	def := &Definition{name: f.Name, nodes: nodes, index: index}
	def.analysis = analyzeBranches(def)
	problems = append(problems, def.analysis.problems...)

	if len(problems) > 0 {
		return nil, &ValidationError{Flowchart: f.Name, Problems: problems}
	}
	return def, nil
}

// reachable walks successors breadth-first from start and assigns indices.
func reachable(start *Node) ([]*Node, map[*Node]int) {
	index := map[*Node]int{start: 0}
	nodes := []*Node{start}
	for i := 0; i < len(nodes); i++ {
		for _, e := range nodes[i].Successors() {
			if _, seen := index[e.To]; seen {
				continue
			}
			index[e.To] = len(nodes)
			nodes = append(nodes, e.To)
		}
	}
	return nodes, index
}

func checkNode(n *Node) []Problem {
	var out []Problem
	switch n.Kind {
	case KindStep, KindMerge:
	case KindDecision, KindSwitch:
		if n.Action == nil {
			out = append(out, Problem{NodeID: n.ID, Message: fmt.Sprintf("%s requires an action", n.Kind)})
		}
	case KindSplit:
		if len(n.Branches) == 0 {
			out = append(out, Problem{NodeID: n.ID, Message: "split has no branches"})
		}
		for i, b := range n.Branches {
			if b == nil {
				out = append(out, Problem{NodeID: n.ID, Message: fmt.Sprintf("split branch %d is nil", i)})
			}
		}
	default:
		out = append(out, Problem{NodeID: n.ID, Message: fmt.Sprintf("unknown node kind %d", int(n.Kind))})
	}
	return out
}

// Name returns the flowchart name given at compile time.
func (d *Definition) Name() string { return d.name }

// Start returns the start node (index 0).
func (d *Definition) Start() *Node { return d.nodes[0] }

// Len returns the number of reachable nodes.
func (d *Definition) Len() int { return len(d.nodes) }

// Node returns the node with index i, or nil when i is out of range.
func (d *Definition) Node(i int) *Node {
	if i < 0 || i >= len(d.nodes) {
		return nil
	}
	return d.nodes[i]
}

// Nodes returns the reachable nodes ordered by index.
func (d *Definition) Nodes() []*Node {
	out := make([]*Node, len(d.nodes))
	copy(out, d.nodes)
	return out
}

// IndexOf returns the index of n and whether n is part of the definition.
func (d *Definition) IndexOf(n *Node) (int, bool) {
	i, ok := d.index[n]
	return i, ok
}

// Lookup returns the node with the given ID.
func (d *Definition) Lookup(id string) (*Node, bool) {
	for _, n := range d.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// SplitContexts returns the distinct split-context stacks node i can be
// entered under. Each stack lists Split node indices, outermost first.
func (d *Definition) SplitContexts(i int) [][]int {
	if i < 0 || i >= len(d.nodes) {
		return nil
	}
	stacks := d.analysis.incoming[i]
	out := make([][]int, len(stacks))
	for j, s := range stacks {
		out[j] = append([]int(nil), s...)
	}
	return out
}

// MergeSplit returns the index of the Split a Merge node joins, or -1 when
// the node is not a Merge or is reachable outside any split context.
func (d *Definition) MergeSplit(i int) int {
	if s, ok := d.analysis.mergeSplit[i]; ok {
		return s
	}
	return -1
}

// MergeRegion returns the indices of the sibling nodes a Merge waits on:
// every node reachable from its Split's branches without passing through the
// Merge itself.
func (d *Definition) MergeRegion(i int) []int {
	return append([]int(nil), d.analysis.regions[i]...)
}
