package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS ip_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	address TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
	selectSQL = `SELECT address FROM ip_state WHERE id = 1`
	upsertSQL = `INSERT INTO ip_state (id, address, updated_at) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET address = excluded.address, updated_at = excluded.updated_at`
)

// SQLiteStore keeps the address in a single-row SQLite table
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (and if needed creates) the database at dsn
func NewSQLiteStore(ctx context.Context, dsn string, logger *zap.Logger) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite dsn is required")
	}
	if err := ensureDBDir(dsn); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", addSQLiteParams(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Single writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create state table: %w", err)
	}

	logger.Debug("Opened sqlite state store", zap.String("dsn", dsn))
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Read returns the stored address, absent when the row does not exist
func (s *SQLiteStore) Read(ctx context.Context) (string, bool, error) {
	var addr string
	err := s.db.QueryRowContext(ctx, selectSQL).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read state: %w", err)
	}
	return addr, addr != "", nil
}

// Write upserts the stored address
func (s *SQLiteStore) Write(ctx context.Context, addr string) error {
	if _, err := s.db.ExecContext(ctx, upsertSQL, addr, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ensureDBDir creates the parent directory of a file dsn
func ensureDBDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), DirPermission)
}

// addSQLiteParams adds connection parameters unless the dsn already sets them
func addSQLiteParams(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000&_journal_mode=WAL"
}
