// Package store persists flowchart snapshots between process lifetimes.
//
// A Store keeps, per instance, an ordered series of snapshots identified by
// a sequence number, plus named checkpoints that live independently of any
// instance. Values are JSON encoded by every backend, so the snapshot type
// must round-trip through encoding/json.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested instance ID or checkpoint ID does
// not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by any operation on a store that has been closed.
var ErrClosed = errors.New("store is closed")

// Store provides persistence for flowchart instance snapshots.
//
// Type parameter S is the snapshot type to persist.
type Store[S any] interface {
	// SaveSnapshot persists state as snapshot seq of instanceID. Saving an
	// existing seq replaces it.
	SaveSnapshot(ctx context.Context, instanceID string, seq int, state S) error

	// LoadLatest returns the snapshot with the highest seq for instanceID,
	// or ErrNotFound.
	LoadLatest(ctx context.Context, instanceID string) (state S, seq int, err error)

	// SaveCheckpoint stores a named snapshot, replacing any previous one
	// with the same ID.
	SaveCheckpoint(ctx context.Context, cpID string, state S, seq int) error

	// LoadCheckpoint returns a named snapshot, or ErrNotFound.
	LoadCheckpoint(ctx context.Context, cpID string) (state S, seq int, err error)

	// DeleteInstance removes every snapshot of instanceID. Deleting an
	// unknown instance is not an error. Checkpoints are kept.
	DeleteInstance(ctx context.Context, instanceID string) error
}

// Record is one stored snapshot together with its sequence number.
type Record[S any] struct {
	Seq   int `json:"seq"`
	State S   `json:"state"`
}

func encodeState[S any](state S) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return data, nil
}

func decodeState[S any](data []byte) (S, error) {
	var state S
	if err := json.Unmarshal(data, &state); err != nil {
		var zero S
		return zero, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, nil
}
