package graph

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestCompile_IndexesInBreadthFirstOrder(t *testing.T) {
	a := NewStep("a", nil)
	b := NewStep("b", nil)
	join := NewMerge("join", JoinAll)
	a.Then(join)
	b.Then(join)
	join.Then(NewStep("done", nil))

	def := mustCompile(t, &Flowchart{Name: "bfs", Start: NewSplit("fork", a, b)})

	var got []string
	for _, n := range def.Nodes() {
		got = append(got, n.ID)
	}
	want := []string{"fork", "a", "b", "join", "done"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("node order = %v, want %v", got, want)
	}
	if def.Start().ID != "fork" || def.Len() != 5 || def.Name() != "bfs" {
		t.Errorf("unexpected definition: start=%s len=%d name=%s", def.Start().ID, def.Len(), def.Name())
	}
	if def.Node(-1) != nil || def.Node(5) != nil {
		t.Error("Node() out of range should return nil")
	}
}

func TestCompile_IsIdempotent(t *testing.T) {
	fc := splitMerge(JoinFirst, fakeAction("a"), fakeAction("b"))

	first := mustCompile(t, fc)
	second := mustCompile(t, fc)

	if !reflect.DeepEqual(first.Nodes(), second.Nodes()) {
		t.Error("node indices differ between compilations")
	}
	for i := 0; i < first.Len(); i++ {
		if !reflect.DeepEqual(first.SplitContexts(i), second.SplitContexts(i)) {
			t.Errorf("split contexts of %d differ", i)
		}
		if !reflect.DeepEqual(first.MergeRegion(i), second.MergeRegion(i)) {
			t.Errorf("merge region of %d differs", i)
		}
	}
}

func TestCompile_UnreachableNodes(t *testing.T) {
	start := NewStep("start", nil)
	orphan := NewStep("orphan", fakeAction("never"))

	t.Run("ignored by default", func(t *testing.T) {
		def := mustCompile(t, &Flowchart{Name: "r", Start: start, Nodes: []*Node{start, orphan}})
		if def.Len() != 1 {
			t.Errorf("Len() = %d, want 1", def.Len())
		}
		if _, ok := def.Lookup("orphan"); ok {
			t.Error("unreachable node should not be part of the definition")
		}
		if _, ok := def.IndexOf(orphan); ok {
			t.Error("unreachable node should have no index")
		}
	})

	t.Run("reported when requested", func(t *testing.T) {
		_, err := (&Flowchart{Name: "r", Start: start, Nodes: []*Node{orphan}, ValidateUnconnectedNodes: true}).Compile()
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want *ValidationError", err)
		}
		if len(verr.Problems) != 1 || verr.Problems[0].NodeID != "orphan" {
			t.Errorf("problems = %v, want one for orphan", verr.Problems)
		}
	})
}

func TestCompile_Problems(t *testing.T) {
	tests := []struct {
		name    string
		fc      func() *Flowchart
		wantMsg string
	}{
		{
			name:    "no start",
			fc:      func() *Flowchart { return &Flowchart{Name: "x"} },
			wantMsg: "no start node",
		},
		{
			name:    "decision without action",
			fc:      func() *Flowchart { return &Flowchart{Start: NewDecision("d", nil)} },
			wantMsg: "decision requires an action",
		},
		{
			name:    "switch without action",
			fc:      func() *Flowchart { return &Flowchart{Start: NewSwitch("s", nil)} },
			wantMsg: "switch requires an action",
		},
		{
			name:    "split without branches",
			fc:      func() *Flowchart { return &Flowchart{Start: NewSplit("s")} },
			wantMsg: "split has no branches",
		},
		{
			name: "duplicate ids",
			fc: func() *Flowchart {
				a := NewStep("same", nil)
				a.Then(NewStep("same", nil))
				return &Flowchart{Start: a}
			},
			wantMsg: "duplicate node ID",
		},
		{
			name:    "missing id",
			fc:      func() *Flowchart { return &Flowchart{Start: NewStep("", nil)} },
			wantMsg: "step node has no ID",
		},
		{
			name: "nil declared node",
			fc: func() *Flowchart {
				return &Flowchart{Start: NewStep("a", nil), Nodes: []*Node{nil}}
			},
			wantMsg: "declared node list contains nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fc().Compile()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{
		Flowchart: "orders",
		Problems:  []Problem{{NodeID: "a", Message: "bad"}, {Message: "worse"}},
	}
	want := `orders is invalid: node "a": bad; worse`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
