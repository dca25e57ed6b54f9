package graph

import (
	"sort"
	"strconv"
	"strings"
)

// splitStack is an ordered list of open Split node indices, outermost first.
type splitStack []int

// key identifies a stack by its set of splits. Concurrent siblings are
// unordered, so [1 4] and [4 1] are the same context.
func (s splitStack) key() string {
	sorted := append([]int(nil), s...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// push returns s with split on top. A split already open on the path is not
// pushed again, which keeps loops through a Split finite.
func (s splitStack) push(split int) splitStack {
	for _, v := range s {
		if v == split {
			return s
		}
	}
	out := make(splitStack, len(s), len(s)+1)
	copy(out, s)
	return append(out, split)
}

func (s splitStack) pop() splitStack {
	if len(s) == 0 {
		return s
	}
	out := make(splitStack, len(s)-1)
	copy(out, s[:len(s)-1])
	return out
}

// branchAnalysis is the result of the one-time static pass over a Definition.
type branchAnalysis struct {
	// incoming holds the distinct stacks each node is entered under, in
	// discovery order.
	incoming map[int][]splitStack

	// mergeSplit maps a Merge index to the Split it closes.
	mergeSplit map[int]int

	// regions maps a Merge index to the sibling nodes it waits on.
	regions map[int][]int

	// enclosing maps a node index to the Merges whose region contains it.
	enclosing map[int][]int

	problems []Problem
}

type stackVisit struct {
	node  int
	stack splitStack
}

// analyzeBranches propagates split-context stacks forward from the start
// node. A Split pushes itself onto the stack carried into its branches and a
// Merge pops the top entry. The pass is pure: it reads only the Definition.
func analyzeBranches(d *Definition) *branchAnalysis {
	a := &branchAnalysis{
		incoming:   make(map[int][]splitStack),
		mergeSplit: make(map[int]int),
		regions:    make(map[int][]int),
		enclosing:  make(map[int][]int),
	}

	seen := make(map[int]map[string]bool)
	work := []stackVisit{{node: 0, stack: splitStack{}}}
	for len(work) > 0 {
		v := work[0]
		work = work[1:]

		k := v.stack.key()
		if seen[v.node] == nil {
			seen[v.node] = make(map[string]bool)
		}
		if seen[v.node][k] {
			continue
		}
		seen[v.node][k] = true
		a.incoming[v.node] = append(a.incoming[v.node], v.stack)

		n := d.nodes[v.node]
		out := v.stack
		switch n.Kind {
		case KindSplit:
			out = v.stack.push(v.node)
		case KindMerge:
			out = v.stack.pop()
		}
		for _, e := range n.Successors() {
			work = append(work, stackVisit{node: d.index[e.To], stack: out})
		}
	}

	for i, n := range d.nodes {
		nested := 0
		for _, s := range a.incoming[i] {
			if len(s) > 1 {
				nested++
			}
		}
		if nested > 1 {
			a.problems = append(a.problems, Problem{
				NodeID:  n.ID,
				Message: "node has multiple concurrent incoming branches; insert a Merge",
			})
		}

		if n.Kind != KindMerge {
			continue
		}
		split := -1
		for _, s := range a.incoming[i] {
			if len(s) > 0 {
				split = s[len(s)-1]
				break
			}
		}
		a.mergeSplit[i] = split
	}

	closers := make(map[int][]int)
	for m, s := range a.mergeSplit {
		if s >= 0 {
			closers[s] = append(closers[s], m)
		}
	}
	preds := predecessors(d)
	for m, split := range a.mergeSplit {
		if split < 0 {
			continue
		}
		region := mergeRegion(d, preds, split, m, closers[split])
		a.regions[m] = region
		for _, r := range region {
			a.enclosing[r] = append(a.enclosing[r], m)
		}
	}
	for r := range a.enclosing {
		sort.Ints(a.enclosing[r])
	}
	return a
}

func predecessors(d *Definition) map[int][]int {
	preds := make(map[int][]int)
	for i, n := range d.nodes {
		for _, e := range n.Successors() {
			j := d.index[e.To]
			preds[j] = append(preds[j], i)
		}
	}
	return preds
}

// reaching returns the nodes from which any of targets is reachable without
// passing through the split.
func reaching(preds map[int][]int, split int, targets ...int) map[int]bool {
	seen := map[int]bool{split: true}
	for _, t := range targets {
		seen[t] = true
	}
	queue := append([]int(nil), targets...)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for _, p := range preds[i] {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	delete(seen, split)
	return seen
}

// mergeRegion collects the nodes a merge waits on. The walk starts at the
// split's branches and stops at the split and at every merge closing it.
// A visited node belongs to the region when it leads to this merge, or when
// it leads to no closing merge at all. Branches that another merge joins
// first belong to that merge, and nodes past a join are never included.
func mergeRegion(d *Definition, preds map[int][]int, split, merge int, closers []int) []int {
	toMerge := reaching(preds, split, merge)
	toAny := reaching(preds, split, closers...)

	stop := map[int]bool{split: true, merge: true}
	for _, c := range closers {
		stop[c] = true
	}
	visited := map[int]bool{split: true, merge: true}
	var region []int
	var queue []int
	for _, b := range d.nodes[split].Branches {
		i := d.index[b]
		if !visited[i] {
			visited[i] = true
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if toMerge[i] || !toAny[i] {
			region = append(region, i)
		}
		if stop[i] {
			continue
		}
		for _, e := range d.nodes[i].Successors() {
			j := d.index[e.To]
			if !visited[j] {
				visited[j] = true
				queue = append(queue, j)
			}
		}
	}
	sort.Ints(region)
	return region
}
