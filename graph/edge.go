package graph

import (
	"sort"
	"strconv"
)

// Edge is an outgoing connection of a node, as seen by traversal and by
// definition loaders.
//
// Label describes why the edge is taken:
//
//	next              Step and Merge successor
//	true, false       Decision outcomes
//	case:<key>        Switch case
//	null              Switch null case
//	default           Switch default
//	branch:<n>        n-th Split branch (zero based)
type Edge struct {
	Label string
	To    *Node
}

// Successors returns the non-nil successors of n in a stable order.
//
// Decision edges come true before false. Switch cases are sorted by key,
// followed by the null case and then the default. Split branches keep their
// declaration order, which is also the order the engine enqueues them in.
func (n *Node) Successors() []Edge {
	var out []Edge
	add := func(label string, to *Node) {
		if to != nil {
			out = append(out, Edge{Label: label, To: to})
		}
	}

	switch n.Kind {
	case KindStep, KindMerge:
		add("next", n.Next)
	case KindDecision:
		add("true", n.True)
		add("false", n.False)
	case KindSwitch:
		keys := make([]string, 0, len(n.Cases))
		for k := range n.Cases {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add("case:"+k, n.Cases[k])
		}
		add("null", n.NullCase)
		add("default", n.Default)
	case KindSplit:
		for i, b := range n.Branches {
			add("branch:"+strconv.Itoa(i), b)
		}
	}
	return out
}
