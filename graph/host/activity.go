package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Variables are the instance variables shared by every activity of a
// Runtime. Values must round-trip through encoding/json to survive a
// snapshot; after a restore numbers come back as float64.
type Variables map[string]any

// ActivityFunc is the body of a Do activity. It runs while the runtime is
// locked and may read and write vars. It must honor ctx for WithTimeout to
// take effect.
type ActivityFunc func(ctx context.Context, vars Variables) (any, error)

type activityKind int

const (
	kindDo activityKind = iota
	kindWait
	kindCondition
	kindEvaluate
	kindAssign
)

// Activity is the graph.Action implementation understood by Runtime.
//
// Activities are immutable; the With and Into modifiers return copies, so
// one Activity value can be shared by several nodes.
type Activity struct {
	name string
	kind activityKind

	fn       ActivityFunc
	bookmark string

	source     string
	program    *vm.Program
	compileErr error
	target     string

	into    string
	retry   *RetryPolicy
	timeout time.Duration
}

// Do creates an activity that runs fn.
func Do(name string, fn ActivityFunc) *Activity {
	return &Activity{name: name, kind: kindDo, fn: fn}
}

// WaitFor creates an activity that suspends its branch on bookmark until
// Runtime.Resume is called with the same name. The resume value becomes
// the activity result.
func WaitFor(bookmark string) *Activity {
	return &Activity{name: "wait " + bookmark, kind: kindWait, bookmark: bookmark}
}

// Condition creates an activity that evaluates a boolean expression over
// the instance variables. Use it as the action of a Decision node.
// Undefined variables evaluate to nil.
func Condition(source string) *Activity {
	a := &Activity{name: source, kind: kindCondition, source: source}
	a.program, a.compileErr = expr.Compile(source, expr.AsBool(), expr.AllowUndefinedVariables())
	return a
}

// Evaluate creates an activity whose result is the value of an expression
// over the instance variables. Use it as the action of a Switch node.
func Evaluate(source string) *Activity {
	a := &Activity{name: source, kind: kindEvaluate, source: source}
	a.program, a.compileErr = expr.Compile(source, expr.AllowUndefinedVariables())
	return a
}

// Assign creates an activity that stores the value of an expression in
// variable name.
func Assign(name, source string) *Activity {
	a := &Activity{name: name + " = " + source, kind: kindAssign, source: source, target: name}
	a.program, a.compileErr = expr.Compile(source, expr.AllowUndefinedVariables())
	return a
}

// Name implements graph.Action.
func (a *Activity) Name() string { return a.name }

// Bookmark returns the bookmark of a WaitFor activity, or "".
func (a *Activity) Bookmark() string { return a.bookmark }

// Named returns a copy of a with a different display name.
func (a *Activity) Named(name string) *Activity {
	c := *a
	c.name = name
	return &c
}

// WithRetry returns a copy of a that is retried according to p.
func (a *Activity) WithRetry(p RetryPolicy) *Activity {
	c := *a
	c.retry = &p
	return &c
}

// WithTimeout returns a copy of a whose attempts are each limited to d.
func (a *Activity) WithTimeout(d time.Duration) *Activity {
	c := *a
	c.timeout = d
	return &c
}

// Into returns a copy of a that also stores its result in variable name.
func (a *Activity) Into(name string) *Activity {
	c := *a
	c.into = name
	return &c
}

// Validate reports expression compile errors and invalid options.
func (a *Activity) Validate() error {
	if a.compileErr != nil {
		return fmt.Errorf("activity %q: %w", a.name, a.compileErr)
	}
	if a.kind == kindDo && a.fn == nil {
		return fmt.Errorf("activity %q: function cannot be nil", a.name)
	}
	if a.kind == kindWait && a.bookmark == "" {
		return errors.New("wait activity: bookmark cannot be empty")
	}
	if a.retry != nil {
		if err := a.retry.Validate(); err != nil {
			return fmt.Errorf("activity %q: %w", a.name, err)
		}
	}
	if a.timeout < 0 {
		return fmt.Errorf("activity %q: timeout cannot be negative", a.name)
	}
	return nil
}

// attempt runs the activity body once, applying the timeout.
func (a *Activity) attempt(ctx context.Context, vars Variables) (any, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	result, err := a.invoke(ctx, vars)
	if a.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %q after %s", ErrActivityTimeout, a.name, a.timeout)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Activity) invoke(ctx context.Context, vars Variables) (any, error) {
	switch a.kind {
	case kindDo:
		return a.fn(ctx, vars)

	case kindCondition:
		out, err := expr.Run(a.program, map[string]any(vars))
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", a.source, err)
		}
		b, ok := out.(bool)
		if !ok {
			return nil, fmt.Errorf("condition %q: result is %T, not bool", a.source, out)
		}
		return b, nil

	case kindEvaluate:
		out, err := expr.Run(a.program, map[string]any(vars))
		if err != nil {
			return nil, fmt.Errorf("expression %q: %w", a.source, err)
		}
		return out, nil

	case kindAssign:
		out, err := expr.Run(a.program, map[string]any(vars))
		if err != nil {
			return nil, fmt.Errorf("assign %s: %w", a.target, err)
		}
		vars[a.target] = out
		return out, nil

	default:
		return nil, fmt.Errorf("activity %q cannot be run directly", a.name)
	}
}
