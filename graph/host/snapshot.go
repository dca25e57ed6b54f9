package host

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dshills/flowchart-go/graph"
)

// Snapshot is the persistable form of an idle Runtime.
//
// Together with the Definition it names, a Snapshot is all that is needed
// to continue the instance in another process. Checksum covers every other
// field.
type Snapshot struct {
	InstanceID      string                     `json:"instance_id"`
	Definition      string                     `json:"definition"`
	Seq             int                        `json:"seq"`
	Status          graph.Status               `json:"status"`
	CancelRequested bool                       `json:"cancel_requested,omitempty"`
	Variables       map[string]json.RawMessage `json:"variables"`
	Slots           map[string]json.RawMessage `json:"slots"`
	Bookmarks       map[string]graph.Handle    `json:"bookmarks"`

	// Targets maps a bookmark to the variable its resume value is stored in.
	Targets map[string]string `json:"targets,omitempty"`

	Checksum string `json:"checksum"`
}

// computeChecksum returns "sha256:<hex>" over the JSON encoding of s with
// an empty Checksum. Map keys are encoded sorted, so equal snapshots hash
// equally.
func computeChecksum(s Snapshot) (string, error) {
	s.Checksum = ""
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Verify checks the snapshot checksum.
func (s Snapshot) Verify() error {
	want, err := computeChecksum(s)
	if err != nil {
		return err
	}
	if s.Checksum != want {
		return fmt.Errorf("%w: instance %q seq %d", ErrChecksumMismatch, s.InstanceID, s.Seq)
	}
	return nil
}

// Snapshot captures the runtime. It fails with ErrBusy unless the runtime
// is idle, which it always is between calls.
func (r *Runtime) Snapshot() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Runtime) snapshot() (Snapshot, error) {
	if len(r.work) > 0 {
		return Snapshot{}, ErrBusy
	}

	snap := Snapshot{
		InstanceID:      r.id,
		Definition:      r.def.Name(),
		Seq:             r.seq,
		Status:          r.status,
		CancelRequested: r.cancelRequested,
		Variables:       make(map[string]json.RawMessage, len(r.vars)),
		Slots:           make(map[string]json.RawMessage, len(r.slots)+len(r.raw)),
		Bookmarks:       make(map[string]graph.Handle, len(r.bookmarks)),
	}

	for k, v := range r.vars {
		data, err := json.Marshal(v)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to marshal variable %q: %w", k, err)
		}
		snap.Variables[k] = data
	}
	for k, data := range r.raw {
		snap.Slots[k] = append(json.RawMessage(nil), data...)
	}
	for k, v := range r.slots {
		data, err := json.Marshal(v)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to marshal slot %q: %w", k, err)
		}
		snap.Slots[k] = data
	}
	for k, h := range r.bookmarks {
		snap.Bookmarks[k] = h
	}
	if len(r.targets) > 0 {
		snap.Targets = make(map[string]string, len(r.targets))
		for k, v := range r.targets {
			snap.Targets[k] = v
		}
	}

	sum, err := computeChecksum(snap)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Checksum = sum
	return snap, nil
}

// Restore rebuilds a runtime from a snapshot and the definition it was
// taken from. Only WithEmitter, WithEngineOptions and WithRand apply.
func Restore(snap Snapshot, def *graph.Definition, opts ...Option) (*Runtime, error) {
	if err := snap.Verify(); err != nil {
		return nil, err
	}
	if def == nil {
		return nil, &graph.EngineError{Message: "definition cannot be nil", Code: "INVALID_ARGUMENT"}
	}
	if def.Name() != snap.Definition {
		return nil, fmt.Errorf("%w: snapshot %q, definition %q", ErrDefinitionMismatch, snap.Definition, def.Name())
	}

	r, err := newRuntime(def, opts)
	if err != nil {
		return nil, err
	}
	r.id = snap.InstanceID
	r.seq = snap.Seq
	r.status = snap.Status
	r.cancelRequested = snap.CancelRequested

	for k, data := range snap.Variables {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode variable %q: %w", k, err)
		}
		r.vars[k] = v
	}
	for k, data := range snap.Slots {
		r.raw[k] = append(json.RawMessage(nil), data...)
	}
	for name, h := range snap.Bookmarks {
		r.bookmarks[name] = h
		r.waiting[h] = name
	}
	for name, v := range snap.Targets {
		r.targets[name] = v
	}

	if err := r.initEngine(); err != nil {
		return nil, err
	}
	return r, nil
}
