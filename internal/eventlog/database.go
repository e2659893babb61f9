// Package eventlog is the append-only SQLite audit trail of everything
// the bridge observed and sent: device state changes, commands issued,
// and ack/timeout outcomes. It is diagnostic history only — the bridge
// never reads it back to decide what to do next; core protocol state
// lives in memory in the device package (spec §6).
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cyncbridge/cyncbridge/internal/config"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600
	msPerSecond     = 1000

	connectionTimeout = 5 * time.Second
	connMaxIdleTime   = 30 * time.Minute
)

// DB wraps a sql.DB connection to the event log database.
type DB struct {
	*sql.DB
	path string
}

// Open creates (or reuses) the SQLite event log database described by cfg.
func Open(cfg config.EventLogConfig) (*DB, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path, cfg.BusyTimeout)

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{DB: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("verifying event log connection: %w", err)
	}
	_ = os.Chmod(cfg.Path, filePermissions)

	if err := db.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrating event log: %w", err)
	}

	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string { return db.path }

// HealthCheck verifies the database is reachable.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("event log health check failed: %w", err)
	}
	return nil
}
