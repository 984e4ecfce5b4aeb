// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Current schema version
const SchemaVersion = "2"

// SQLite is a SQLite-backed variable store. Every change is kept as a new
// version row; the current value is the highest version.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens or creates a store at the given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{db: db}

	version, err := s.getMetadataUnlocked("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}

	switch version {
	case "":
		err = s.createV2()
	case "1":
		err = s.migrateV1toV2()
	case SchemaVersion:
	default:
		err = fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}
	if err == nil && version != SchemaVersion {
		err = s.setMetadataUnlocked("schema_version", SchemaVersion)
	}
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) createV2() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS variables (
			scope TEXT NOT NULL,
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			value TEXT NOT NULL,
			ts TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			PRIMARY KEY (scope, name, version)
		);
	`)
	return err
}

// migrateV1toV2 converts the unversioned v1 table. Existing rows become
// version 1.
func (s *SQLite) migrateV1toV2() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`ALTER TABLE variables RENAME TO variables_v1`,
		`CREATE TABLE variables (
			scope TEXT NOT NULL,
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			value TEXT NOT NULL,
			ts TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			PRIMARY KEY (scope, name, version)
		)`,
		`INSERT INTO variables (scope, name, version, value) SELECT scope, name, 1, value FROM variables_v1`,
		`DROP TABLE variables_v1`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate schema v1 to v2: %w", err)
		}
	}
	return tx.Commit()
}

// Get retrieves the current value of a variable.
func (s *SQLite) Get(scope Scope, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getUnlocked(scope, name)
}

func (s *SQLite) getUnlocked(scope Scope, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`
		SELECT value FROM variables WHERE scope = ? AND name = ?
		ORDER BY version DESC LIMIT 1
	`, string(scope), name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores a new version unless the value is unchanged.
func (s *SQLite) Set(scope Scope, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.getUnlocked(scope, name)
	if err != nil {
		return err
	}
	if ok && current == value {
		return nil
	}
	_, err = s.db.Exec(`
		INSERT INTO variables (scope, name, version, value)
		SELECT ?, ?, COALESCE(MAX(version), 0) + 1, ?
		FROM variables WHERE scope = ? AND name = ?
	`, string(scope), name, value, string(scope), name)
	return err
}

// Delete removes a variable and all of its versions.
func (s *SQLite) Delete(scope Scope, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM variables WHERE scope = ? AND name = ?", string(scope), name)
	return err
}

// List returns the current values in scope.
func (s *SQLite) List(scope Scope) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT v.name, v.value FROM variables v
		WHERE v.scope = ? AND v.version = (
			SELECT MAX(version) FROM variables WHERE scope = v.scope AND name = v.name
		)
	`, string(scope))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

// GetHistory returns versions newest first.
func (s *SQLite) GetHistory(scope Scope, name string, limit int) ([]VersionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := `SELECT version, value, ts FROM variables WHERE scope = ? AND name = ? ORDER BY version DESC`
	args := []any{string(scope), name}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []VersionEntry
	for rows.Next() {
		var e VersionEntry
		if err := rows.Scan(&e.Version, &e.Value, &e.Ts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetMetadata retrieves a metadata value by key.
func (s *SQLite) GetMetadata(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMetadataUnlocked(key)
}

// getMetadataUnlocked retrieves metadata without locking (caller must hold lock).
func (s *SQLite) getMetadataUnlocked(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata stores a metadata value by key.
func (s *SQLite) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMetadataUnlocked(key, value)
}

// setMetadataUnlocked stores metadata without locking (caller must hold lock).
func (s *SQLite) setMetadataUnlocked(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
