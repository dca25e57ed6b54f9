// Package definition loads flowcharts from text formats.
//
// Two formats are supported: Graphviz DOT, where node shapes select the
// node kind, and HCL, where every node is an explicit block. Both resolve
// action names through a Registry and compile Decision and Switch
// expressions into host activities.
package definition

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/flowchart-go/graph"
	"github.com/dshills/flowchart-go/graph/host"
)

// ErrUnknownAction is returned when a definition names an action that is
// not registered.
var ErrUnknownAction = errors.New("unknown action")

// Registry maps action names used in definitions to actions.
//
// Condition and Evaluate build the actions of Decision and Switch nodes
// declared with an expression. NewRegistry sets them to host.Condition and
// host.Evaluate.
type Registry struct {
	mu      sync.RWMutex
	id      string
	actions map[string]graph.Action

	Condition func(source string) (graph.Action, error)
	Evaluate  func(source string) (graph.Action, error)
}

// NewRegistry returns a registry holding actions under their own names.
func NewRegistry(actions ...graph.Action) *Registry {
	r := &Registry{
		id:        uuid.NewString(),
		actions:   make(map[string]graph.Action),
		Condition: hostCondition,
		Evaluate:  hostEvaluate,
	}
	for _, a := range actions {
		r.actions[a.Name()] = a
	}
	return r
}

func hostCondition(source string) (graph.Action, error) {
	a := host.Condition(source)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func hostEvaluate(source string) (graph.Action, error) {
	a := host.Evaluate(source)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// ID identifies the registry in definition cache keys.
func (r *Registry) ID() string {
	if r == nil {
		return "default"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id == "" {
		r.id = uuid.NewString()
	}
	return r.id
}

// Register adds action under name, replacing any previous entry.
func (r *Registry) Register(name string, action graph.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = action
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (graph.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return a, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.actions))
	for name := range r.actions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) condition(source string) (graph.Action, error) {
	if r.Condition == nil {
		return nil, fmt.Errorf("registry has no condition builder for %q", source)
	}
	return r.Condition(source)
}

func (r *Registry) evaluate(source string) (graph.Action, error) {
	if r.Evaluate == nil {
		return nil, fmt.Errorf("registry has no expression builder for %q", source)
	}
	return r.Evaluate(source)
}

// Format is a definition source format.
type Format int

const (
	FormatDOT Format = iota
	FormatHCL
)

// Load parses src in the given format and compiles it through cache, so a
// source text is parsed and analyzed once per cache. A nil cache compiles
// every time.
func Load(cache *graph.DefinitionCache, format Format, src string, reg *Registry) (*graph.Definition, error) {
	build := func() (*graph.Flowchart, error) {
		switch format {
		case FormatDOT:
			return ParseDOT(src, reg)
		case FormatHCL:
			return ParseHCL([]byte(src), "flowchart.hcl", reg)
		default:
			return nil, fmt.Errorf("unknown definition format %d", int(format))
		}
	}
	if cache == nil {
		fc, err := build()
		if err != nil {
			return nil, err
		}
		return fc.Compile()
	}
	return cache.GetOrCompile(fmt.Sprintf("%s:%d:%s", reg.ID(), int(format), src), build)
}
