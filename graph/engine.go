package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/flowchart-go/graph/emit"
)

// Engine drives one flowchart instance through its host.
//
// The engine holds no execution state of its own. Everything it knows about
// the instance lives in an ExecutionState stored in the host's externalized
// slot, so an Engine can be discarded between calls and rebuilt from the
// Definition alone:
//
//	eng, _ := graph.NewEngine(def, host)
//	status, err := eng.Activate(ctx)
//	// ... process restarts, host rehydrates its slots ...
//	eng, _ = graph.NewEngine(def, host)
//	status, err = eng.OnLeafCompleted(ctx, handle, graph.Closed(result))
//
// Each call is one synchronous turn: it drains the ready queue until it is
// empty and then returns the instance status. Nodes whose actions are still
// outstanding leave the instance in StatusRunning until the host reports
// their completion.
//
// An Engine is not safe for concurrent use. The host serializes every call
// for a given instance.
type Engine struct {
	def  *Definition
	host Host
	cfg  engineConfig

	// turn is non-nil only while a call is in progress.
	turn *turn
}

// turn is the scratch context of a single engine call.
type turn struct {
	ctx   context.Context
	op    string
	state *ExecutionState
	queue *readyQueue

	steps      int
	current    int
	completion *Completion

	wasClosed bool
	err       error
}

// NewEngine creates an engine for def running inside host.
func NewEngine(def *Definition, host Host, opts ...Option) (*Engine, error) {
	if def == nil {
		return nil, &EngineError{Message: "definition cannot be nil", Code: "INVALID_ARGUMENT"}
	}
	if host == nil {
		return nil, &EngineError{Message: "host cannot be nil", Code: "INVALID_ARGUMENT"}
	}

	cfg := engineConfig{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.stateKey == "" {
		cfg.stateKey = "flowchart/" + def.Name()
	}
	if cfg.emitter == nil {
		cfg.emitter = emit.NewNullEmitter()
	}

	return &Engine{def: def, host: host, cfg: cfg}, nil
}

// Definition returns the compiled flowchart the engine executes.
func (e *Engine) Definition() *Definition { return e.def }

// StateKey returns the host slot key holding the ExecutionState.
func (e *Engine) StateKey() string { return e.cfg.stateKey }

// State returns a copy of the externalized execution state.
func (e *Engine) State() (ExecutionState, error) {
	st, err := e.loadState()
	if err != nil {
		return ExecutionState{}, err
	}
	return st.Clone()
}

// Activate starts the instance at the definition's start node.
func (e *Engine) Activate(ctx context.Context) (Status, error) {
	return e.withTurnContext(ctx, "activate", func(t *turn) error {
		if t.state.Activated {
			return ErrAlreadyActivated
		}
		t.state.Activated = true
		t.state.Status = StatusRunning
		e.emit(t, "flowchart_activated", -1, map[string]interface{}{
			"flowchart": e.def.Name(),
			"nodes":     e.def.Len(),
		})
		e.enqueue(t, 0)
		return e.drain(t)
	})
}

// OnLeafCompleted is the re-entry point after a scheduled action finishes.
//
// The handle is mapped back to its node through the externalized handle
// table. When the node has no other outstanding actions it completes: a
// successful completion selects and enqueues the successor, a canceled one
// (or any completion of a node whose cancellation was requested) ends the
// path, and a faulted one faults the instance unless the instance is being
// canceled. The ready queue is then drained.
//
// An unknown handle returns an error wrapping ErrUnknownHandle and changes
// nothing.
func (e *Engine) OnLeafCompleted(ctx context.Context, h Handle, c Completion) (Status, error) {
	return e.withTurnContext(ctx, "complete", func(t *turn) error {
		i, ok := t.state.Handles[h]
		if !ok || e.def.Node(i) == nil {
			return fmt.Errorf("%w: %q", ErrUnknownHandle, h)
		}
		t.completion = &c
		t.current = i

		delete(t.state.Handles, h)
		st := t.state.node(i)
		st.removeHandle(h)
		if len(st.Handles) > 0 {
			return nil
		}

		if t.state.Status.Closed() {
			st.Running = false
			st.Completed = true
			st.Canceled = c.State != CompletionClosed
			return nil
		}

		canceling := e.instanceCanceled(t)
		switch {
		case c.State == CompletionFaulted && !canceling:
			e.fault(t, i, c.Err)
		case c.State != CompletionClosed:
			if canceling {
				t.state.Interrupted = true
			}
			e.finishCanceled(t, i, "canceled")
		case st.CancelRequested:
			e.finishCanceled(t, i, "canceled")
		default:
			if err := e.complete(t, i, c.Result); err != nil {
				e.fault(t, i, err)
			}
		}
		return e.drain(t)
	})
}

// RequestNodeCancel asks the node with index i to stop. It reports whether a
// cancellation was newly issued: false when the node is not running, is
// already terminal, or already has a pending request.
//
// A node with outstanding actions is canceled through the host and finishes
// when their completions arrive. A node with nothing outstanding finishes as
// canceled immediately, and any Merge waiting on it is re-checked.
func (e *Engine) RequestNodeCancel(ctx context.Context, i int) (bool, error) {
	if e.def.Node(i) == nil {
		return false, fmt.Errorf("%w: %d", ErrUnknownNode, i)
	}
	var issued bool
	_, err := e.withTurnContext(ctx, "cancel_node", func(t *turn) error {
		var err error
		issued, err = e.requestNodeCancel(t, i, "request")
		if err != nil {
			return err
		}
		return e.drain(t)
	})
	return issued, err
}

// Cancel cancels the whole instance. Every running node is asked to stop
// and nothing new is executed. The instance reports StatusCanceled once the
// last outstanding action has completed.
func (e *Engine) Cancel(ctx context.Context) (Status, error) {
	return e.withTurnContext(ctx, "cancel", func(t *turn) error {
		if t.state.Status.Closed() {
			return nil
		}
		t.state.Canceling = true
		t.state.Interrupted = true
		e.emit(t, "flowchart_canceling", -1, nil)
		for _, i := range t.state.indices() {
			if e.def.Node(i) == nil {
				continue
			}
			if _, err := e.requestNodeCancel(t, i, "instance"); err != nil {
				return err
			}
		}
		return e.drain(t)
	})
}

// withTurnContext runs fn as one engine turn. The turn context exists only
// for the duration of fn and is cleared on every exit path.
func (e *Engine) withTurnContext(ctx context.Context, op string, fn func(t *turn) error) (Status, error) {
	if e.turn != nil {
		return e.turn.state.Status, ErrReentrantTurn
	}
	state, err := e.loadState()
	if err != nil {
		return "", err
	}

	t := &turn{
		ctx:       ctx,
		op:        op,
		state:     state,
		queue:     newReadyQueue(),
		current:   -1,
		wasClosed: state.Status.Closed(),
	}
	e.turn = t
	defer func() { e.turn = nil }()

	start := time.Now()
	err = fn(t)
	if err != nil && t.queue.len() > 0 {
		e.abandonQueue(t)
	}
	status := e.settle(t)

	e.cfg.metrics.RecordTurnLatency(op, time.Since(start))
	e.cfg.metrics.UpdateQueueDepth(0)
	e.cfg.metrics.UpdateOutstanding(t.state.Outstanding())
	return status, err
}

func (e *Engine) loadState() (*ExecutionState, error) {
	st, err := ExternalState(e.host, e.cfg.stateKey, NewExecutionState)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("%w: slot %q is nil", ErrStateType, e.cfg.stateKey)
	}
	if st.Nodes == nil {
		st.Nodes = make(map[int]*NodeState)
	}
	if st.Handles == nil {
		st.Handles = make(map[Handle]int)
	}
	if st.Status == "" {
		st.Status = StatusPending
	}
	return st, nil
}

// settle derives the instance status at the end of a turn.
func (e *Engine) settle(t *turn) Status {
	st := t.state
	idle := t.queue.len() == 0 && len(st.Handles) == 0

	switch {
	case st.Status.Closed():
	case idle && st.Canceling:
		st.Status = StatusCanceled
	case !st.Activated:
		st.Status = StatusPending
	case !idle:
		st.Status = StatusRunning
	case e.host.IsCancellationRequested() && st.Interrupted:
		st.Status = StatusCanceled
	case st.awaitingJoin():
		st.Status = StatusRunning
	default:
		st.Status = StatusCompleted
	}

	if st.Status.Closed() && !t.wasClosed {
		meta := map[string]interface{}{"status": string(st.Status)}
		if st.Fault != "" {
			meta["error"] = st.Fault
		}
		e.emit(t, "flowchart_closed", -1, meta)
	}
	return st.Status
}

func (e *Engine) instanceCanceled(t *turn) bool {
	return t.state.Canceling || e.host.IsCancellationRequested()
}

// drain runs queued nodes until the queue is empty or the instance faults.
func (e *Engine) drain(t *turn) error {
	for {
		i, ok := t.queue.pop()
		if !ok {
			break
		}
		e.cfg.metrics.UpdateQueueDepth(t.queue.len())

		t.steps++
		if e.cfg.maxSteps > 0 && t.steps > e.cfg.maxSteps {
			e.fault(t, i, fmt.Errorf("%w (%d)", ErrMaxStepsExceeded, e.cfg.maxSteps))
			break
		}

		t.current = i
		st := t.state.node(i)
		if e.instanceCanceled(t) || t.state.Status == StatusFaulted || st.CancelRequested {
			e.finishCanceled(t, i, "skipped")
			continue
		}
		if err := e.execute(t, i); err != nil {
			e.fault(t, i, err)
			break
		}
	}
	t.current = -1
	return t.err
}

// execute dispatches on the node kind. Leaf kinds hand their action to the
// host; Split and Merge are resolved synchronously.
func (e *Engine) execute(t *turn, i int) error {
	n := e.def.nodes[i]
	switch n.Kind {
	case KindStep, KindDecision, KindSwitch:
		if n.Action == nil {
			return e.complete(t, i, nil)
		}
		h, err := e.host.ScheduleAction(t.ctx, n.Action)
		if err != nil {
			return fmt.Errorf("schedule action %q: %w", n.Action.Name(), err)
		}
		if _, dup := t.state.Handles[h]; dup {
			return &EngineError{Message: fmt.Sprintf("host returned duplicate handle %q", h), Code: "DUPLICATE_HANDLE"}
		}
		st := t.state.node(i)
		st.Handles = append(st.Handles, h)
		t.state.Handles[h] = i
		e.emit(t, "node_scheduled", i, map[string]interface{}{
			"action": n.Action.Name(),
			"handle": string(h),
		})
		return nil

	case KindSplit:
		e.finishCompleted(t, i, map[string]interface{}{"branches": len(n.Branches)})
		for _, b := range n.Branches {
			e.enqueue(t, e.def.index[b])
		}
		e.notifyMerges(t, i)
		return nil

	case KindMerge:
		return e.arriveAtMerge(t, i)
	}
	return &EngineError{Message: fmt.Sprintf("node %q has unknown kind %d", n.ID, int(n.Kind)), Code: "UNKNOWN_KIND"}
}

// complete finishes node i with a successful result and enqueues the
// successor it selects.
func (e *Engine) complete(t *turn, i int, result any) error {
	next, err := e.route(i, result)
	if err != nil {
		return err
	}
	meta := map[string]interface{}{}
	if next != nil {
		meta["next"] = next.ID
	}
	e.finishCompleted(t, i, meta)
	if next != nil {
		e.enqueue(t, e.def.index[next])
	}
	e.notifyMerges(t, i)
	return nil
}

// route selects the successor of node i for a successful result. A nil
// successor ends the path.
func (e *Engine) route(i int, result any) (*Node, error) {
	n := e.def.nodes[i]
	switch n.Kind {
	case KindDecision:
		b, ok := result.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: decision %q produced %T, want bool", ErrInvalidResult, n.ID, result)
		}
		if b {
			return n.True, nil
		}
		return n.False, nil
	case KindSwitch:
		return selectCase(n, result), nil
	default:
		return n.Next, nil
	}
}

func selectCase(n *Node, result any) *Node {
	key, ok := CaseKey(result)
	if !ok {
		if n.NullCase != nil {
			return n.NullCase
		}
		return n.Default
	}
	if next, found := n.Cases[key]; found {
		return next
	}
	return n.Default
}

// enqueue marks node i ready. Its state is reset for a fresh run unless it
// is a Merge already waiting for siblings.
func (e *Engine) enqueue(t *turn, i int) {
	if !t.queue.push(i) {
		return
	}
	e.cfg.metrics.UpdateQueueDepth(t.queue.len())

	st := t.state.node(i)
	if st.Armed {
		return
	}
	st.Running = true
	st.Completed = false
	st.Canceled = false
	if len(st.Handles) == 0 {
		st.CancelRequested = false
	}
}

func (e *Engine) finishCompleted(t *turn, i int, meta map[string]interface{}) {
	st := t.state.node(i)
	st.Running = false
	st.Completed = true
	st.Canceled = false
	st.Armed = false
	e.emit(t, "node_completed", i, meta)
	e.cfg.metrics.IncrementCompletions(e.def.nodes[i].Kind, "completed")
}

// finishCanceled ends node i without a successor and re-checks any Merge
// waiting on it, so joins never deadlock on canceled work.
func (e *Engine) finishCanceled(t *turn, i int, outcome string) {
	st := t.state.node(i)
	st.Running = false
	st.Completed = true
	st.Canceled = true
	st.Armed = false
	if e.instanceCanceled(t) {
		t.state.Interrupted = true
	}
	msg := "node_canceled"
	if outcome == "skipped" {
		msg = "node_skipped"
	}
	e.emit(t, msg, i, nil)
	e.cfg.metrics.IncrementCompletions(e.def.nodes[i].Kind, outcome)
	e.notifyMerges(t, i)
}

// abandonQueue finishes every node still queued in this turn as canceled.
// The queue is not persisted, so a node left in it would stay running.
func (e *Engine) abandonQueue(t *turn) {
	for _, q := range t.queue.items {
		qs := t.state.node(q)
		qs.Running = false
		qs.Completed = true
		qs.Canceled = true
		qs.Armed = false
		e.emit(t, "node_abandoned", q, nil)
	}
	if t.queue.len() > 0 {
		t.state.Interrupted = true
	}
	t.queue.clear()
}

// fault records a failure of node i and stops scheduling for the instance.
// Nodes still queued in this turn are abandoned.
func (e *Engine) fault(t *turn, i int, cause error) {
	if cause == nil {
		cause = errors.New("action faulted")
	}
	n := e.def.nodes[i]

	st := t.state.node(i)
	st.Running = false
	st.Completed = true
	st.Armed = false

	e.abandonQueue(t)

	t.state.Status = StatusFaulted
	t.state.Fault = cause.Error()
	t.state.FaultNode = n.ID

	e.emit(t, "node_faulted", i, map[string]interface{}{"error": cause.Error()})
	e.cfg.metrics.IncrementCompletions(n.Kind, "faulted")

	if t.err == nil {
		t.err = &NodeError{Message: cause.Error(), Code: "NODE_FAULTED", NodeID: n.ID, Cause: cause}
	}
}

// arriveAtMerge handles a Merge popped from the queue. The first arrival
// arms it; under JoinFirst that arrival also cancels every sibling still
// running. Later arrivals only re-check the join.
func (e *Engine) arriveAtMerge(t *turn, m int) error {
	st := t.state.node(m)
	n := e.def.nodes[m]
	if !st.Armed {
		st.Armed = true
		e.emit(t, "merge_armed", m, map[string]interface{}{"policy": n.Join.String()})
		if n.Join == JoinFirst {
			for _, r := range e.def.analysis.regions[m] {
				rs := t.state.peek(r)
				if rs == nil || !rs.active() {
					continue
				}
				if _, err := e.requestNodeCancel(t, r, "join_first"); err != nil {
					return err
				}
			}
		}
	}
	e.tryJoin(t, m)
	return nil
}

// tryJoin lets an armed Merge continue once no sibling in its region is
// still running. A Merge that is queued is left for the drain loop.
func (e *Engine) tryJoin(t *turn, m int) {
	st := t.state.node(m)
	if !st.Armed || t.queue.contains(m) || t.state.Status == StatusFaulted {
		return
	}
	for _, r := range e.def.analysis.regions[m] {
		if rs := t.state.peek(r); rs != nil && rs.active() {
			return
		}
	}

	n := e.def.nodes[m]
	e.emit(t, "merge_joined", m, map[string]interface{}{"policy": n.Join.String()})
	e.cfg.metrics.IncrementJoins(n.Join)

	meta := map[string]interface{}{}
	if n.Next != nil {
		meta["next"] = n.Next.ID
	}
	e.finishCompleted(t, m, meta)
	if n.Next != nil {
		e.enqueue(t, e.def.index[n.Next])
	}
	e.notifyMerges(t, m)
}

// notifyMerges re-checks every armed Merge whose region contains node i.
func (e *Engine) notifyMerges(t *turn, i int) {
	for _, m := range e.def.analysis.enclosing[i] {
		if ms := t.state.peek(m); ms != nil && ms.Armed {
			e.tryJoin(t, m)
		}
	}
}

func (e *Engine) requestNodeCancel(t *turn, i int, reason string) (bool, error) {
	st := t.state.peek(i)
	if st == nil || !st.active() || st.CancelRequested {
		return false, nil
	}
	st.CancelRequested = true
	e.emit(t, "cancel_requested", i, map[string]interface{}{"reason": reason})
	e.cfg.metrics.IncrementCancellations(reason)

	if len(st.Handles) > 0 {
		for _, h := range append([]Handle(nil), st.Handles...) {
			if err := e.host.RequestCancel(t.ctx, h); err != nil {
				return true, fmt.Errorf("request cancel %q: %w", h, err)
			}
		}
		return true, nil
	}
	if !t.queue.contains(i) {
		e.finishCanceled(t, i, "canceled")
	}
	return true, nil
}

func (e *Engine) emit(t *turn, msg string, i int, meta map[string]interface{}) {
	ev := emit.Event{
		RunID: e.cfg.instanceID,
		Step:  t.steps,
		Msg:   msg,
		Meta:  meta,
	}
	if i >= 0 {
		n := e.def.nodes[i]
		ev.NodeID = n.ID
		if ev.Meta == nil {
			ev.Meta = make(map[string]interface{}, 2)
		}
		ev.Meta["kind"] = n.Kind.String()
		ev.Meta["index"] = i
	}
	e.cfg.emitter.Emit(ev)
}
