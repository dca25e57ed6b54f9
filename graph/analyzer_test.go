package graph

import (
	"reflect"
	"sort"
	"strings"
	"testing"
)

func TestAnalyzer_NestedSplits(t *testing.T) {
	// outer -> {a, inner -> {b, c} -> innerJoin} -> outerJoin
	a := NewStep("a", nil)
	b := NewStep("b", nil)
	c := NewStep("c", nil)
	innerJoin := NewMerge("inner-join", JoinAll)
	outerJoin := NewMerge("outer-join", JoinAll)
	b.Then(innerJoin)
	c.Then(innerJoin)
	innerJoin.Then(outerJoin)
	a.Then(outerJoin)
	inner := NewSplit("inner", b, c)
	outer := NewSplit("outer", a, inner)

	def := mustCompile(t, &Flowchart{Name: "nested", Start: outer})
	idx := func(id string) int { return mustIndex(t, def, id) }

	if got := def.MergeSplit(idx("inner-join")); got != idx("inner") {
		t.Errorf("MergeSplit(inner-join) = %d, want %d", got, idx("inner"))
	}
	if got := def.MergeSplit(idx("outer-join")); got != idx("outer") {
		t.Errorf("MergeSplit(outer-join) = %d, want %d", got, idx("outer"))
	}
	if got := def.MergeSplit(idx("a")); got != -1 {
		t.Errorf("MergeSplit(a) = %d, want -1", got)
	}

	wantInner := []int{idx("b"), idx("c")}
	if got := def.MergeRegion(idx("inner-join")); !reflect.DeepEqual(got, wantInner) {
		t.Errorf("MergeRegion(inner-join) = %v, want %v", got, wantInner)
	}
	if got := len(def.MergeRegion(idx("outer-join"))); got != 5 {
		t.Errorf("outer region has %d nodes, want 5", got)
	}

	wantCtx := [][]int{{idx("outer"), idx("inner")}}
	if got := def.SplitContexts(idx("b")); !reflect.DeepEqual(got, wantCtx) {
		t.Errorf("SplitContexts(b) = %v, want %v", got, wantCtx)
	}
	if got := def.SplitContexts(idx("outer-join")); len(got) != 1 || len(got[0]) != 1 {
		t.Errorf("outer-join should have a single one-deep context, got %v", got)
	}
}

func TestAnalyzer_RejectsUnmergedConcurrentBranches(t *testing.T) {
	// Two nested splits feed the same node without a merge in between.
	shared := NewStep("shared", nil)
	x1 := NewStep("x1", nil)
	y1 := NewStep("y1", nil)
	x1.Then(shared)
	y1.Then(shared)
	sx := NewSplit("sx", x1, NewStep("x2", nil))
	sy := NewSplit("sy", y1, NewStep("y2", nil))
	root := NewSplit("root", sx, sy)

	_, err := (&Flowchart{Name: "bad", Start: root}).Compile()
	if err == nil {
		t.Fatal("expected analyzer error")
	}
	if !strings.Contains(err.Error(), `node "shared": node has multiple concurrent incoming branches`) {
		t.Errorf("error = %q", err)
	}
}

func TestAnalyzer_LoopThroughSplitTerminates(t *testing.T) {
	a := NewStep("a", fakeAction("a"))
	b := NewStep("b", fakeAction("b"))
	join := NewMerge("join", JoinAll)
	a.Then(join)
	b.Then(join)
	again := NewDecision("again", fakeAction("again"))
	join.Then(again)
	split := NewSplit("fork", a, b)
	again.OnTrue(split)

	def := mustCompile(t, &Flowchart{Name: "loop", Start: split})
	if def.MergeSplit(mustIndex(t, def, "join")) != 0 {
		t.Error("join should close the start split")
	}
}

func TestSplitStack(t *testing.T) {
	s := splitStack{}.push(4).push(1)
	if s.key() != (splitStack{1, 4}).key() {
		t.Error("stack key should ignore order")
	}
	if got := s.push(4); len(got) != 2 {
		t.Errorf("pushing an open split again should be a no-op, got %v", got)
	}
	if got := s.pop(); !reflect.DeepEqual(got, splitStack{4}) {
		t.Errorf("pop() = %v, want [4]", got)
	}
	if got := (splitStack{}).pop(); len(got) != 0 {
		t.Errorf("pop() of empty stack = %v", got)
	}
}

func TestAnalyzer_TwoStageJoinRegions(t *testing.T) {
	def := mustCompile(t, twoStageJoin())
	idx := func(id string) int { return mustIndex(t, def, id) }
	sorted := func(ids ...string) []int {
		out := make([]int, 0, len(ids))
		for _, id := range ids {
			out = append(out, idx(id))
		}
		sort.Ints(out)
		return out
	}

	if got := def.MergeSplit(idx("outer")); got != idx("fork") {
		t.Errorf("MergeSplit(outer) = %d, want fork", got)
	}
	if got, want := def.MergeRegion(idx("inner")), sorted("a", "b"); !reflect.DeepEqual(got, want) {
		t.Errorf("MergeRegion(inner) = %v, want %v", got, want)
	}
	if got, want := def.MergeRegion(idx("outer")), sorted("a", "b", "c", "inner"); !reflect.DeepEqual(got, want) {
		t.Errorf("MergeRegion(outer) = %v, want %v", got, want)
	}
}

func TestAnalyzer_RegionKeepsUnjoinedBranch(t *testing.T) {
	// b never reaches the merge but still runs under the split.
	a := NewStep("a", nil)
	b := NewStep("b", nil)
	join := NewMerge("join", JoinAll)
	a.Then(join)
	join.Then(NewStep("done", nil))
	def := mustCompile(t, &Flowchart{Name: "dangling", Start: NewSplit("fork", a, b)})

	region := def.MergeRegion(mustIndex(t, def, "join"))
	want := []int{mustIndex(t, def, "a"), mustIndex(t, def, "b")}
	sort.Ints(want)
	if !reflect.DeepEqual(region, want) {
		t.Errorf("MergeRegion(join) = %v, want %v", region, want)
	}
}
