package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store[S] for hosts that
// share snapshots between processes.
//
// The DSN follows go-sql-driver/mysql:
//
//	user:password@tcp(localhost:3306)/flowcharts?parseTime=true
//
// Never hardcode credentials; read the DSN from the environment.
type MySQLStore[S any] struct {
	*sqlStore[S]
}

var _ Store[int] = (*MySQLStore[int])(nil)

var mysqlDialect = sqlDialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS flowchart_snapshots (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			instance_id VARCHAR(255) NOT NULL,
			seq INT NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_instance (instance_id),
			UNIQUE KEY unique_instance_seq (instance_id, seq)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS flowchart_checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			checkpoint_id VARCHAR(255) NOT NULL UNIQUE,
			state JSON NOT NULL,
			seq INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
	saveSnapshot: `
		INSERT INTO flowchart_snapshots (instance_id, seq, state)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE state = VALUES(state)`,
	loadLatest: `
		SELECT seq, state FROM flowchart_snapshots
		WHERE instance_id = ?
		ORDER BY seq DESC
		LIMIT 1`,
	saveCheckpoint: `
		INSERT INTO flowchart_checkpoints (checkpoint_id, state, seq)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			state = VALUES(state),
			seq = VALUES(seq)`,
	loadCheckpoint:  `SELECT state, seq FROM flowchart_checkpoints WHERE checkpoint_id = ?`,
	deleteSnapshots: `DELETE FROM flowchart_snapshots WHERE instance_id = ?`,
}

// NewMySQLStore connects to dsn, verifies the connection and migrates the
// schema.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	inner, err := newSQLStore[S](ctx, db, mysqlDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MySQLStore[S]{sqlStore: inner}, nil
}
