// Package history persists completed archival transfers to a local
// SQLite ledger.
//
// The live job registry is rebuilt from ambient state every cycle and
// deliberately has no persistent store; the ledger only records jobs
// after they finish and leave the registry, so long-lived deployments
// keep an audit trail of what was archived and how fast.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Config locates the ledger database.
type Config struct {
	// Path is a local filesystem path to the ledger database.
	// ":memory:" opens an ephemeral in-memory ledger.
	Path string
}

// Store is a SQLite-backed completed-transfer ledger.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the ledger database, applying WAL
// and busy_timeout for predictable behavior alongside the poller.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history store: %w", err)
	}

	if dsn != ":memory:" {
		for _, pragma := range []string{
			`PRAGMA journal_mode=WAL;`,
			`PRAGMA busy_timeout=5000;`,
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("configure history store: %w", err)
			}
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func buildDSN(cfg Config) (string, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("history store path is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(filepath.Clean(path)), 0o755); err != nil {
		return "", fmt.Errorf("create history store dir: %w", err)
	}
	return "file:" + filepath.Clean(path), nil
}

// migrate creates the ledger schema in place.
func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transfers (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			plot_id TEXT NOT NULL,
			k INTEGER NOT NULL,
			disk_index INTEGER NOT NULL,
			transferred_bytes INTEGER NOT NULL,
			local INTEGER NOT NULL DEFAULT 0,
			mean_rate REAL,
			first_observed TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_completed_at
			ON transfers (completed_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_plot_id
			ON transfers (plot_id);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate history store: %w", err)
		}
	}
	return tx.Commit()
}
