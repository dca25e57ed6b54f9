package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/flowchart-go/graph"
	"github.com/dshills/flowchart-go/graph/emit"
)

// ErrDuplicateBookmark is the fault recorded when two branches wait on the
// same bookmark at once.
var ErrDuplicateBookmark = errors.New("bookmark already waiting")

// Runtime hosts one flowchart instance.
//
// Every exported method takes the runtime lock for its whole duration, so
// engine calls, activity execution and snapshots never interleave. Runtime
// events emitted in addition to the engine's:
//
//	activity_started    activity body about to run (meta: handle, activity, attempt)
//	activity_retry      attempt failed and will be retried (meta: error, delay)
//	activity_failed     attempt failed for good (meta: error)
//	bookmark_created    WaitFor suspended a branch (meta: bookmark, handle)
//	bookmark_resumed    Resume delivered a value (meta: bookmark)
//	bookmark_canceled   a waiting bookmark was canceled (meta: bookmark)
type Runtime struct {
	mu sync.Mutex

	id     string
	def    *graph.Definition
	engine *graph.Engine
	cfg    runtimeConfig

	// slots holds decoded externalized state; raw holds restored slots not
	// yet requested by the engine.
	slots map[string]any
	raw   map[string]json.RawMessage

	vars Variables

	bookmarks map[string]graph.Handle
	targets   map[string]string
	waiting   map[graph.Handle]string

	work     []workItem
	canceled map[graph.Handle]bool

	cancelRequested bool
	status          graph.Status
	seq             int
}

// workItem is either an activity to run or a completion to deliver.
type workItem struct {
	handle     graph.Handle
	activity   *Activity
	completion *graph.Completion
}

// New creates a runtime for a fresh instance of def. Call Start to
// activate it.
func New(def *graph.Definition, opts ...Option) (*Runtime, error) {
	r, err := newRuntime(def, opts)
	if err != nil {
		return nil, err
	}
	if r.cfg.instanceID != "" {
		r.id = r.cfg.instanceID
	}
	if r.cfg.vars != nil {
		r.vars = r.cfg.vars
	}
	if err := r.initEngine(); err != nil {
		return nil, err
	}
	return r, nil
}

func newRuntime(def *graph.Definition, opts []Option) (*Runtime, error) {
	if def == nil {
		return nil, &graph.EngineError{Message: "definition cannot be nil", Code: "INVALID_ARGUMENT"}
	}
	var cfg runtimeConfig
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.emitter == nil {
		cfg.emitter = emit.NewNullEmitter()
	}
	return &Runtime{
		id:        uuid.NewString(),
		def:       def,
		cfg:       cfg,
		slots:     make(map[string]any),
		raw:       make(map[string]json.RawMessage),
		vars:      make(Variables),
		bookmarks: make(map[string]graph.Handle),
		targets:   make(map[string]string),
		waiting:   make(map[graph.Handle]string),
		canceled:  make(map[graph.Handle]bool),
		status:    graph.StatusPending,
	}, nil
}

func (r *Runtime) initEngine() error {
	opts := append([]graph.Option{
		graph.WithInstanceID(r.id),
		graph.WithEmitter(r.cfg.emitter),
	}, r.cfg.engineOpts...)
	eng, err := graph.NewEngine(r.def, r, opts...)
	if err != nil {
		return err
	}
	r.engine = eng
	return nil
}

// ID returns the instance ID.
func (r *Runtime) ID() string { return r.id }

// Definition returns the flowchart the runtime executes.
func (r *Runtime) Definition() *graph.Definition { return r.def }

// Start activates the instance and runs activities until every branch is
// finished or waiting on a bookmark.
func (r *Runtime) Start(ctx context.Context) (graph.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, err := r.engine.Activate(ctx)
	r.status = status
	return r.runWork(ctx, err)
}

// Resume completes the WaitFor activity waiting on bookmark with value and
// runs the work that follows.
func (r *Runtime) Resume(ctx context.Context, bookmark string, value any) (graph.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.bookmarks[bookmark]
	if !ok {
		return r.status, fmt.Errorf("%w: %q", ErrUnknownBookmark, bookmark)
	}
	if target := r.targets[bookmark]; target != "" {
		r.vars[target] = value
	}
	r.releaseBookmark(bookmark)
	r.emit("bookmark_resumed", map[string]interface{}{"bookmark": bookmark, "handle": string(h)})

	return r.runWork(ctx, r.deliver(ctx, h, graph.Closed(value)))
}

// Cancel cancels the whole instance. Waiting bookmarks and queued
// activities complete as canceled.
func (r *Runtime) Cancel(ctx context.Context) (graph.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelRequested = true
	status, err := r.engine.Cancel(ctx)
	r.status = status
	return r.runWork(ctx, err)
}

// CancelNode requests cancellation of the node with the given ID.
func (r *Runtime) CancelNode(ctx context.Context, nodeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.def.Lookup(nodeID)
	if !ok {
		return false, fmt.Errorf("%w: %q", graph.ErrUnknownNode, nodeID)
	}
	i, _ := r.def.IndexOf(n)
	issued, err := r.engine.RequestNodeCancel(ctx, i)
	if st, serr := r.engine.State(); serr == nil {
		r.status = st.Status
	}
	_, err = r.runWork(ctx, err)
	return issued, err
}

// Status returns the instance status after the last call.
func (r *Runtime) Status() graph.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Variables returns a shallow copy of the instance variables.
func (r *Runtime) Variables() Variables {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(Variables, len(r.vars))
	for k, v := range r.vars {
		out[k] = v
	}
	return out
}

// Bookmarks returns the waiting bookmark names, sorted.
func (r *Runtime) Bookmarks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.bookmarks))
	for name := range r.bookmarks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ExecutionState returns a copy of the engine's externalized state.
func (r *Runtime) ExecutionState() (graph.ExecutionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.State()
}

// ScheduleAction implements graph.Host. The activity is queued and runs
// after the current engine call returns.
func (r *Runtime) ScheduleAction(ctx context.Context, action graph.Action) (graph.Handle, error) {
	a, ok := action.(*Activity)
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrUnsupportedAction, action)
	}
	if err := a.Validate(); err != nil {
		return "", err
	}
	h := graph.Handle(uuid.NewString())
	r.work = append(r.work, workItem{handle: h, activity: a})
	return h, nil
}

// RequestCancel implements graph.Host.
func (r *Runtime) RequestCancel(ctx context.Context, h graph.Handle) error {
	if name, ok := r.waiting[h]; ok {
		r.releaseBookmark(name)
		r.emit("bookmark_canceled", map[string]interface{}{"bookmark": name, "handle": string(h)})
		c := graph.Canceled()
		r.work = append(r.work, workItem{handle: h, completion: &c})
		return nil
	}
	for _, item := range r.work {
		if item.handle == h && item.activity != nil {
			r.canceled[h] = true
			return nil
		}
	}
	return nil
}

// IsCancellationRequested implements graph.Host.
func (r *Runtime) IsCancellationRequested() bool {
	return r.cancelRequested
}

// ExternalState implements graph.Host. Restored slots are decoded into
// the value returned by create on first access.
func (r *Runtime) ExternalState(key string, create func() any) (any, error) {
	if v, ok := r.slots[key]; ok {
		return v, nil
	}
	v := create()
	if data, ok := r.raw[key]; ok {
		if err := json.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("failed to decode slot %q: %w", key, err)
		}
		delete(r.raw, key)
	}
	r.slots[key] = v
	return v, nil
}

// runWork drains the work list, one item at a time, in FIFO order. Once
// the instance is closed, queued activities and waiting bookmarks are
// completed as canceled without running. The first engine error is
// returned after the list is empty.
func (r *Runtime) runWork(ctx context.Context, prior error) (graph.Status, error) {
	firstErr := prior
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for {
		if len(r.work) == 0 && r.status.Closed() && len(r.bookmarks) > 0 {
			r.releaseAll()
		}
		if len(r.work) == 0 {
			return r.status, firstErr
		}

		item := r.work[0]
		r.work = r.work[1:]

		switch {
		case item.completion != nil:
			record(r.deliver(ctx, item.handle, *item.completion))

		case r.canceled[item.handle] || r.status.Closed():
			delete(r.canceled, item.handle)
			record(r.deliver(ctx, item.handle, graph.Canceled()))

		case item.activity.kind == kindWait:
			r.suspend(item.handle, item.activity)

		default:
			c := r.execute(ctx, item.handle, item.activity)
			record(r.deliver(ctx, item.handle, c))
		}
	}
}

func (r *Runtime) deliver(ctx context.Context, h graph.Handle, c graph.Completion) error {
	status, err := r.engine.OnLeafCompleted(ctx, h, c)
	r.status = status
	return err
}

func (r *Runtime) suspend(h graph.Handle, a *Activity) {
	if _, exists := r.bookmarks[a.bookmark]; exists {
		c := graph.Faulted(fmt.Errorf("%w: %q", ErrDuplicateBookmark, a.bookmark))
		r.work = append(r.work, workItem{handle: h, completion: &c})
		return
	}
	r.bookmarks[a.bookmark] = h
	r.waiting[h] = a.bookmark
	if a.into != "" {
		r.targets[a.bookmark] = a.into
	}
	r.emit("bookmark_created", map[string]interface{}{"bookmark": a.bookmark, "handle": string(h)})
}

// releaseAll cancels every waiting bookmark of a closed instance.
func (r *Runtime) releaseAll() {
	names := make([]string, 0, len(r.bookmarks))
	for name := range r.bookmarks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h := r.bookmarks[name]
		r.releaseBookmark(name)
		r.emit("bookmark_canceled", map[string]interface{}{"bookmark": name, "handle": string(h)})
		c := graph.Canceled()
		r.work = append(r.work, workItem{handle: h, completion: &c})
	}
}

func (r *Runtime) releaseBookmark(name string) {
	h := r.bookmarks[name]
	delete(r.bookmarks, name)
	delete(r.targets, name)
	delete(r.waiting, h)
}

// execute runs a with its retry policy and maps the outcome to a
// completion.
func (r *Runtime) execute(ctx context.Context, h graph.Handle, a *Activity) graph.Completion {
	maxAttempts := 1
	if a.retry != nil {
		maxAttempts = a.retry.MaxAttempts
	}

	for attempt := 0; ; attempt++ {
		r.emit("activity_started", map[string]interface{}{
			"handle":   string(h),
			"activity": a.name,
			"attempt":  attempt + 1,
		})

		result, err := a.attempt(ctx, r.vars)
		if err == nil {
			if a.into != "" {
				r.vars[a.into] = result
			}
			return graph.Closed(result)
		}

		if ctx.Err() != nil {
			return graph.Faulted(err)
		}
		if attempt+1 >= maxAttempts || !a.retry.retryable(err) {
			r.emit("activity_failed", map[string]interface{}{
				"handle":   string(h),
				"activity": a.name,
				"attempt":  attempt + 1,
				"error":    err.Error(),
			})
			return graph.Faulted(err)
		}

		delay := computeBackoff(attempt, a.retry.BaseDelay, a.retry.MaxDelay, r.cfg.rng)
		r.emit("activity_retry", map[string]interface{}{
			"handle":   string(h),
			"activity": a.name,
			"attempt":  attempt + 1,
			"error":    err.Error(),
			"delay":    delay.String(),
		})
		if serr := sleep(ctx, delay); serr != nil {
			return graph.Faulted(err)
		}
	}
}

func (r *Runtime) emit(msg string, meta map[string]interface{}) {
	r.cfg.emitter.Emit(emit.Event{RunID: r.id, Msg: msg, Meta: meta})
}
