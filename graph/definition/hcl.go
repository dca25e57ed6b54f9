package definition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/dshills/flowchart-go/graph"
)

// hclFlowchart is the top-level body of an HCL definition:
//
//	name  = "order"
//	start = "fork"
//
//	node "fork" {
//	  kind     = "split"
//	  branches = ["charge", "ship"]
//	}
//	node "route" {
//	  kind       = "switch"
//	  expression = "country"
//	  cases      = { NL = "eu", US = "us", XX = null }
//	  null_case  = "unknown"
//	  default    = "world"
//	}
type hclFlowchart struct {
	Name                string    `hcl:"name,optional"`
	Start               string    `hcl:"start"`
	ValidateUnconnected bool      `hcl:"validate_unconnected,optional"`
	Nodes               []hclNode `hcl:"node,block"`
}

type hclNode struct {
	ID         string         `hcl:"id,label"`
	Kind       string         `hcl:"kind"`
	Action     string         `hcl:"action,optional"`
	Expression string         `hcl:"expression,optional"`
	Next       string         `hcl:"next,optional"`
	OnTrue     string         `hcl:"on_true,optional"`
	OnFalse    string         `hcl:"on_false,optional"`
	Branches   []string       `hcl:"branches,optional"`
	Join       string         `hcl:"join,optional"`
	Cases      hcl.Expression `hcl:"cases,optional"`
	NullCase   string         `hcl:"null_case,optional"`
	Default    string         `hcl:"default,optional"`
}

// ParseHCL builds a flowchart from an HCL document. filename is used in
// diagnostics only.
//
// A Decision or Switch takes either a registered action or an expression.
// A case mapped to null ends the branch when matched.
func ParseHCL(src []byte, filename string, reg *Registry) (*graph.Flowchart, error) {
	if reg == nil {
		reg = NewRegistry()
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %s", filename, diags.Error())
	}

	var doc hclFlowchart
	diags = gohcl.DecodeBody(file.Body, nil, &doc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %s", filename, diags.Error())
	}

	fc := &graph.Flowchart{Name: doc.Name, ValidateUnconnectedNodes: doc.ValidateUnconnected}
	nodes := make(map[string]*graph.Node, len(doc.Nodes))

	for _, hn := range doc.Nodes {
		if _, dup := nodes[hn.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate node %q", filename, hn.ID)
		}
		n, err := hclNodeOf(hn, reg)
		if err != nil {
			return nil, fmt.Errorf("%s: node %q: %w", filename, hn.ID, err)
		}
		nodes[hn.ID] = n
		fc.Nodes = append(fc.Nodes, n)
	}

	ref := func(from, id string) (*graph.Node, error) {
		if id == "" {
			return nil, nil
		}
		n, ok := nodes[id]
		if !ok {
			return nil, fmt.Errorf("node %q references unknown node %q", from, id)
		}
		return n, nil
	}

	for _, hn := range doc.Nodes {
		n := nodes[hn.ID]
		var err error
		if n.Next, err = ref(hn.ID, hn.Next); err != nil {
			return nil, err
		}
		if n.True, err = ref(hn.ID, hn.OnTrue); err != nil {
			return nil, err
		}
		if n.False, err = ref(hn.ID, hn.OnFalse); err != nil {
			return nil, err
		}
		if n.NullCase, err = ref(hn.ID, hn.NullCase); err != nil {
			return nil, err
		}
		if n.Default, err = ref(hn.ID, hn.Default); err != nil {
			return nil, err
		}
		for _, b := range hn.Branches {
			entry, err := ref(hn.ID, b)
			if err != nil {
				return nil, err
			}
			n.Branch(entry)
		}

		cases, err := decodeCases(hn.Cases)
		if err != nil {
			return nil, fmt.Errorf("%s: node %q: %w", filename, hn.ID, err)
		}
		for _, key := range sortedKeys(cases) {
			target := cases[key]
			if target == nil {
				n.Case(key, nil)
				continue
			}
			next, err := ref(hn.ID, *target)
			if err != nil {
				return nil, err
			}
			n.Case(key, next)
		}
	}

	start, ok := nodes[doc.Start]
	if !ok {
		return nil, fmt.Errorf("start node %q is not declared", doc.Start)
	}
	fc.Start = start
	return fc, nil
}

func hclNodeOf(hn hclNode, reg *Registry) (*graph.Node, error) {
	switch strings.ToLower(hn.Kind) {
	case "step":
		if hn.Action == "" {
			return graph.NewStep(hn.ID, nil), nil
		}
		a, err := reg.Lookup(hn.Action)
		if err != nil {
			return nil, err
		}
		return graph.NewStep(hn.ID, a), nil

	case "decision":
		a, err := actionOrExpression(hn, reg, reg.condition)
		if err != nil {
			return nil, err
		}
		return graph.NewDecision(hn.ID, a), nil

	case "switch":
		a, err := actionOrExpression(hn, reg, reg.evaluate)
		if err != nil {
			return nil, err
		}
		return graph.NewSwitch(hn.ID, a), nil

	case "split":
		return graph.NewSplit(hn.ID), nil

	case "merge":
		join, err := parseJoin(hn.Join)
		if err != nil {
			return nil, err
		}
		return graph.NewMerge(hn.ID, join), nil

	default:
		return nil, fmt.Errorf("unknown kind %q", hn.Kind)
	}
}

func actionOrExpression(hn hclNode, reg *Registry, build func(string) (graph.Action, error)) (graph.Action, error) {
	switch {
	case hn.Action != "" && hn.Expression != "":
		return nil, fmt.Errorf("action and expression are mutually exclusive")
	case hn.Action != "":
		return reg.Lookup(hn.Action)
	case hn.Expression != "":
		return build(hn.Expression)
	default:
		return nil, fmt.Errorf("%s needs an action or an expression", hn.Kind)
	}
}

// decodeCases evaluates a cases attribute into key -> target node ID. A
// nil target means the case ends the branch.
func decodeCases(expr hcl.Expression) (map[string]*string, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("cases: %s", diags.Error())
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("cases must be an object, got %s", val.Type().FriendlyName())
	}

	out := make(map[string]*string, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		key := k.AsString()
		if v.IsNull() {
			out[key] = nil
			continue
		}
		if v.Type() != cty.String {
			return nil, fmt.Errorf("case %q must name a node, got %s", key, v.Type().FriendlyName())
		}
		target := v.AsString()
		out[key] = &target
	}
	return out, nil
}

func sortedKeys(m map[string]*string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
