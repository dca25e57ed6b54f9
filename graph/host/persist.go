package host

import (
	"context"
	"fmt"

	"github.com/dshills/flowchart-go/graph"
	"github.com/dshills/flowchart-go/graph/store"
)

// Persist saves a new snapshot of the runtime to st under the next
// sequence number.
func (r *Runtime) Persist(ctx context.Context, st store.Store[Snapshot]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	snap, err := r.snapshot()
	if err == nil {
		err = st.SaveSnapshot(ctx, r.id, snap.Seq, snap)
	}
	if err != nil {
		r.seq--
		return fmt.Errorf("persist instance %q: %w", r.id, err)
	}
	return nil
}

// Checkpoint saves the current snapshot under a named checkpoint
// "<instance>/<label>" and returns its ID. The sequence number is not
// advanced.
func (r *Runtime) Checkpoint(ctx context.Context, st store.Store[Snapshot], label string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.snapshot()
	if err != nil {
		return "", err
	}
	cpID := r.id + "/" + label
	if err := st.SaveCheckpoint(ctx, cpID, snap, snap.Seq); err != nil {
		return "", fmt.Errorf("checkpoint %q: %w", cpID, err)
	}
	return cpID, nil
}

// Load restores the latest persisted snapshot of instanceID.
func Load(ctx context.Context, st store.Store[Snapshot], instanceID string, def *graph.Definition, opts ...Option) (*Runtime, error) {
	snap, _, err := st.LoadLatest(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance %q: %w", instanceID, err)
	}
	return Restore(snap, def, opts...)
}

// LoadCheckpoint restores a runtime from a named checkpoint.
func LoadCheckpoint(ctx context.Context, st store.Store[Snapshot], cpID string, def *graph.Definition, opts ...Option) (*Runtime, error) {
	snap, _, err := st.LoadCheckpoint(ctx, cpID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %q: %w", cpID, err)
	}
	return Restore(snap, def, opts...)
}
