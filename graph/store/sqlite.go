package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file SQLite implementation of Store[S], suited to
// development and single-process hosts. It runs in WAL mode.
//
// Schema:
//   - flowchart_snapshots: per-instance snapshot history keyed by (instance_id, seq)
//   - flowchart_checkpoints: named checkpoints
type SQLiteStore[S any] struct {
	*sqlStore[S]
	path string
}

var _ Store[int] = (*SQLiteStore[int])(nil)

var sqliteDialect = sqlDialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS flowchart_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instance_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(instance_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_instance ON flowchart_snapshots(instance_id, seq)`,
		`CREATE TABLE IF NOT EXISTS flowchart_checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			checkpoint_id TEXT NOT NULL UNIQUE,
			state TEXT NOT NULL,
			seq INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	saveSnapshot: `
		INSERT INTO flowchart_snapshots (instance_id, seq, state)
		VALUES (?, ?, ?)
		ON CONFLICT(instance_id, seq) DO UPDATE SET state = excluded.state`,
	loadLatest: `
		SELECT seq, state FROM flowchart_snapshots
		WHERE instance_id = ?
		ORDER BY seq DESC
		LIMIT 1`,
	saveCheckpoint: `
		INSERT INTO flowchart_checkpoints (checkpoint_id, state, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(checkpoint_id) DO UPDATE SET
			state = excluded.state,
			seq = excluded.seq,
			updated_at = CURRENT_TIMESTAMP`,
	loadCheckpoint: `SELECT state, seq FROM flowchart_checkpoints WHERE checkpoint_id = ?`,
	deleteSnapshots: `DELETE FROM flowchart_snapshots WHERE instance_id = ?`,
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates its schema. Use ":memory:" for a throwaway database.
//
// Example:
//
//	st, err := store.NewSQLiteStore[host.Snapshot]("./flowcharts.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	inner, err := newSQLStore[S](ctx, db, sqliteDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore[S]{sqlStore: inner, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore[S]) Path() string {
	return s.path
}
