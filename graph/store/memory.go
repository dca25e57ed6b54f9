package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemStore is an in-memory implementation of Store[S].
//
// It is safe for concurrent use. Data is lost when the process exits unless
// the store itself is serialized with MarshalJSON.
type MemStore[S any] struct {
	mu          sync.RWMutex
	snapshots   map[string][]Record[S]
	checkpoints map[string]Record[S]
}

var _ Store[int] = (*MemStore[int])(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		snapshots:   make(map[string][]Record[S]),
		checkpoints: make(map[string]Record[S]),
	}
}

// SaveSnapshot implements Store.
func (m *MemStore[S]) SaveSnapshot(_ context.Context, instanceID string, seq int, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.snapshots[instanceID]
	for i := range records {
		if records[i].Seq == seq {
			records[i].State = state
			return nil
		}
	}
	m.snapshots[instanceID] = append(records, Record[S]{Seq: seq, State: state})
	return nil
}

// LoadLatest implements Store. Snapshots saved out of order are handled by
// picking the highest seq, not the last write.
func (m *MemStore[S]) LoadLatest(_ context.Context, instanceID string) (S, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.snapshots[instanceID]
	if len(records) == 0 {
		var zero S
		return zero, 0, ErrNotFound
	}
	latest := records[0]
	for _, r := range records[1:] {
		if r.Seq > latest.Seq {
			latest = r
		}
	}
	return latest.State, latest.Seq, nil
}

// SaveCheckpoint implements Store.
func (m *MemStore[S]) SaveCheckpoint(_ context.Context, cpID string, state S, seq int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[cpID] = Record[S]{Seq: seq, State: state}
	return nil
}

// LoadCheckpoint implements Store.
func (m *MemStore[S]) LoadCheckpoint(_ context.Context, cpID string) (S, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[cpID]
	if !ok {
		var zero S
		return zero, 0, ErrNotFound
	}
	return cp.State, cp.Seq, nil
}

// DeleteInstance implements Store.
func (m *MemStore[S]) DeleteInstance(_ context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, instanceID)
	return nil
}

type serializableMemStore[S any] struct {
	Snapshots   map[string][]Record[S] `json:"snapshots"`
	Checkpoints map[string]Record[S]   `json:"checkpoints"`
}

// MarshalJSON serializes the whole store, for example to save it to a file
// between runs of a development program.
func (m *MemStore[S]) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return json.Marshal(serializableMemStore[S]{
		Snapshots:   m.snapshots,
		Checkpoints: m.checkpoints,
	})
}

// UnmarshalJSON replaces the contents of the store with data.
func (m *MemStore[S]) UnmarshalJSON(data []byte) error {
	var s serializableMemStore[S]
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots = s.Snapshots
	m.checkpoints = s.Checkpoints
	if m.snapshots == nil {
		m.snapshots = make(map[string][]Record[S])
	}
	if m.checkpoints == nil {
		m.checkpoints = make(map[string]Record[S])
	}
	return nil
}
