package definition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"

	"github.com/dshills/flowchart-go/graph"
)

// ParseDOT builds a flowchart from a Graphviz digraph.
//
// Node shape selects the kind:
//
//	box, ellipse (default)  Step; label names a registered action
//	diamond                 Decision; label is a condition expression
//	hexagon                 Switch; label is an expression
//	triangle                Split
//	invtriangle             Merge; label "first" selects JoinFirst
//
// The node with root=true is the start node, falling back to a node named
// "start". Decision edges are labeled true or false. Switch edges are
// labeled with their case key, "null" for the null case, and the default
// edge is drawn with style=dashed. Split branches keep edge declaration
// order.
func ParseDOT(src string, reg *Registry) (*graph.Flowchart, error) {
	if reg == nil {
		reg = NewRegistry()
	}

	ast, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOT: %w", err)
	}
	g := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, g); err != nil {
		return nil, fmt.Errorf("failed to analyze DOT: %w", err)
	}

	fc := &graph.Flowchart{Name: unquote(g.Name)}
	nodes := make(map[string]*graph.Node, len(g.Nodes.Nodes))

	for _, n := range g.Nodes.Nodes {
		id := unquote(n.Name)
		node, err := dotNode(id, n.Attrs, reg)
		if err != nil {
			return nil, err
		}
		nodes[id] = node
		fc.Nodes = append(fc.Nodes, node)

		if getAttr(n.Attrs, "root") == "true" {
			if fc.Start != nil {
				return nil, fmt.Errorf("nodes %q and %q are both marked root", fc.Start.ID, id)
			}
			fc.Start = node
		}
	}
	if fc.Start == nil {
		fc.Start = nodes["start"]
	}
	if fc.Start == nil {
		return nil, fmt.Errorf("no start node: mark one with root=true or name it \"start\"")
	}

	for _, e := range g.Edges.Edges {
		from, to := nodes[unquote(e.Src)], nodes[unquote(e.Dst)]
		if from == nil || to == nil {
			return nil, fmt.Errorf("edge %s -> %s references an unknown node", e.Src, e.Dst)
		}
		if err := dotEdge(from, to, e.Attrs); err != nil {
			return nil, fmt.Errorf("edge %s -> %s: %w", from.ID, to.ID, err)
		}
	}

	return fc, nil
}

func dotNode(id string, attrs gographviz.Attrs, reg *Registry) (*graph.Node, error) {
	label := getAttr(attrs, "label")

	switch shape := getAttr(attrs, "shape"); shape {
	case "", "box", "rect", "rectangle", "ellipse":
		if label == "" {
			return graph.NewStep(id, nil), nil
		}
		action, err := reg.Lookup(label)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		return graph.NewStep(id, action), nil

	case "diamond":
		action, err := reg.condition(label)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		return graph.NewDecision(id, action), nil

	case "hexagon":
		action, err := reg.evaluate(label)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		return graph.NewSwitch(id, action), nil

	case "triangle":
		return graph.NewSplit(id), nil

	case "invtriangle":
		join, err := parseJoin(label)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		return graph.NewMerge(id, join), nil

	default:
		return nil, fmt.Errorf("node %q: unsupported shape %q", id, shape)
	}
}

func dotEdge(from, to *graph.Node, attrs gographviz.Attrs) error {
	label := getAttr(attrs, "label")

	switch from.Kind {
	case graph.KindStep, graph.KindMerge:
		if from.Next != nil {
			return fmt.Errorf("%s %q has more than one outgoing edge", from.Kind, from.ID)
		}
		from.Next = to

	case graph.KindDecision:
		switch label {
		case "true":
			from.True = to
		case "false":
			from.False = to
		default:
			return fmt.Errorf("decision edge label must be true or false, got %q", label)
		}

	case graph.KindSwitch:
		switch {
		case getAttr(attrs, "style") == "dashed":
			from.Otherwise(to)
		case label == "null":
			from.CaseNull(to)
		case label == "":
			return fmt.Errorf("switch edge needs a case label or style=dashed")
		default:
			from.Case(label, to)
		}

	case graph.KindSplit:
		from.Branch(to)
	}
	return nil
}

func parseJoin(s string) (graph.JoinPolicy, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return graph.JoinAll, nil
	case "first":
		return graph.JoinFirst, nil
	default:
		return graph.JoinAll, fmt.Errorf("unknown join policy %q", s)
	}
}

// getAttr returns an attribute value with surrounding quotes removed.
func getAttr(attrs gographviz.Attrs, key string) string {
	val, ok := attrs[gographviz.Attr(key)]
	if !ok {
		return ""
	}
	return unquote(strings.TrimSpace(val))
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}
