package client

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// State manages viewer-side persistent state. It never stores queued
// messages: the queue lives on the server and the replica is rebuilt from
// sync events on every connection.
type State struct {
	db *sql.DB
}

// ConnectionRecord is one row of connection history
type ConnectionRecord struct {
	Address       string
	LastSuccessAt time.Time
	ConnectCount  int64
}

// OpenState opens or creates the viewer state database
func OpenState(path string) (*State, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	state := &State{db: db}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return state, nil
}

// migrations are applied in order; PRAGMA user_version holds how many ran
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS Config (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ConnectionHistory (
		address         TEXT PRIMARY KEY,
		last_success_at INTEGER NOT NULL,
		connect_count   INTEGER NOT NULL DEFAULT 0
	)`,
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Close closes the state database
func (s *State) Close() error {
	return s.db.Close()
}

// GetConfig retrieves a configuration value
func (s *State) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM Config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetConfig stores a configuration value
func (s *State) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO Config (key, value) VALUES (?, ?)
	`, key, value)
	return err
}

// SaveSuccessfulConnection records a successful connection to address
func (s *State) SaveSuccessfulConnection(address string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO ConnectionHistory (address, last_success_at, connect_count)
		VALUES (?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			last_success_at = excluded.last_success_at,
			connect_count = connect_count + 1
	`, address, now)
	return err
}

// GetConnection returns the history for address, or nil if it was never
// connected to
func (s *State) GetConnection(address string) (*ConnectionRecord, error) {
	row := s.db.QueryRow(`
		SELECT address, last_success_at, connect_count
		FROM ConnectionHistory
		WHERE address = ?
	`, address)
	return scanConnection(row)
}

// GetLastConnection returns the most recently successful connection, or
// nil when there is no history
func (s *State) GetLastConnection() (*ConnectionRecord, error) {
	row := s.db.QueryRow(`
		SELECT address, last_success_at, connect_count
		FROM ConnectionHistory
		ORDER BY last_success_at DESC, connect_count DESC
		LIMIT 1
	`)
	return scanConnection(row)
}

func scanConnection(row *sql.Row) (*ConnectionRecord, error) {
	var rec ConnectionRecord
	var at int64
	err := row.Scan(&rec.Address, &at, &rec.ConnectCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.LastSuccessAt = time.Unix(at, 0)
	return &rec, nil
}
