package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// sqlDialect is the set of statements one SQL backend runs. Every statement
// takes its arguments in the order documented on the field.
type sqlDialect struct {
	schema []string

	// instance_id, seq, state
	saveSnapshot string
	// instance_id -> seq, state
	loadLatest string
	// checkpoint_id, state, seq
	saveCheckpoint string
	// checkpoint_id -> state, seq
	loadCheckpoint string
	// instance_id
	deleteSnapshots string
}

// sqlStore implements Store[S] over database/sql. The SQLite, MySQL and
// PostgreSQL stores embed it and differ only in dialect and pool setup.
type sqlStore[S any] struct {
	db      *sql.DB
	dialect sqlDialect

	mu     sync.RWMutex
	closed bool
}

func newSQLStore[S any](ctx context.Context, db *sql.DB, dialect sqlDialect) (*sqlStore[S], error) {
	s := &sqlStore[S]{db: db, dialect: dialect}
	if err := s.createTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *sqlStore[S]) createTables(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore[S]) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// SaveSnapshot implements Store.
func (s *sqlStore[S]) SaveSnapshot(ctx context.Context, instanceID string, seq int, state S) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.saveSnapshot, instanceID, seq, string(data)); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadLatest implements Store.
func (s *sqlStore[S]) LoadLatest(ctx context.Context, instanceID string) (S, int, error) {
	var zero S
	if err := s.checkOpen(); err != nil {
		return zero, 0, err
	}

	var (
		seq  int
		data string
	)
	err := s.db.QueryRowContext(ctx, s.dialect.loadLatest, instanceID).Scan(&seq, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, 0, ErrNotFound
	}
	if err != nil {
		return zero, 0, fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	state, err := decodeState[S]([]byte(data))
	if err != nil {
		return zero, 0, err
	}
	return state, seq, nil
}

// SaveCheckpoint implements Store.
func (s *sqlStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, seq int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.saveCheckpoint, cpID, string(data), seq); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements Store.
func (s *sqlStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (S, int, error) {
	var zero S
	if err := s.checkOpen(); err != nil {
		return zero, 0, err
	}

	var (
		data string
		seq  int
	)
	err := s.db.QueryRowContext(ctx, s.dialect.loadCheckpoint, cpID).Scan(&data, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, 0, ErrNotFound
	}
	if err != nil {
		return zero, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	state, err := decodeState[S]([]byte(data))
	if err != nil {
		return zero, 0, err
	}
	return state, seq, nil
}

// DeleteInstance implements Store.
func (s *sqlStore[S]) DeleteInstance(ctx context.Context, instanceID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.deleteSnapshots, instanceID); err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	return nil
}

// Close closes the database. Calling Close more than once is a no-op.
func (s *sqlStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *sqlStore[S]) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}
