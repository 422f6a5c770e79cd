// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: trust/store.go
// Summary: SQLite-backed identity store with TOFU verification.

package trust

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrMismatchNotApproved is returned when a changed identity is stored
// without an explicit operator approval. A mismatch is never auto-resolved.
var ErrMismatchNotApproved = errors.New("trust: identity changed, explicit approval required")

const trustSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS identities (
    host          TEXT NOT NULL,
    port          INTEGER NOT NULL,
    kind          TEXT NOT NULL,
    connection_id TEXT NOT NULL DEFAULT '',   -- '' = global entry
    algorithm     TEXT NOT NULL,
    fingerprint   TEXT NOT NULL,
    user_approved INTEGER NOT NULL DEFAULT 0,
    first_seen    INTEGER NOT NULL,           -- UnixNano
    last_seen     INTEGER NOT NULL,
    PRIMARY KEY (host, port, kind, connection_id)
);

CREATE INDEX IF NOT EXISTS idx_identities_host ON identities(host, port);
`

const trustSchemaVersion = 1

// Store persists known host identities in SQLite.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the trust database at dbPath.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with pragmas for performance and concurrency
	dsn := dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=cache_size(-8000)" +
		"&_pragma=temp_store(MEMORY)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(trustSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, trustSchemaVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record schema version: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Verify checks a presented identity against the store. A per-connection
// entry shadows the global entry for the same endpoint. The stored record
// accompanies both trusted and mismatch outcomes; first-use returns none.
func (s *Store) Verify(host string, port uint16, kind Kind, connectionID, fingerprint string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(host, port, kind, connectionID)
	if err != nil {
		return Result{}, err
	}
	if rec == nil && connectionID != "" {
		rec, err = s.lookup(host, port, kind, "")
		if err != nil {
			return Result{}, err
		}
	}
	if rec == nil {
		return Result{Status: StatusFirstUse}, nil
	}
	if rec.Fingerprint == fingerprint {
		_, err := s.db.Exec(
			`UPDATE identities SET last_seen = ? WHERE host = ? AND port = ? AND kind = ? AND connection_id = ?`,
			time.Now().UnixNano(), rec.Host, rec.Port, string(rec.Kind), rec.ConnectionID)
		if err != nil {
			return Result{}, fmt.Errorf("failed to touch identity: %w", err)
		}
		return Result{Status: StatusTrusted, Stored: rec}, nil
	}
	return Result{Status: StatusMismatch, Stored: rec}, nil
}

// Trust records an identity. Overwriting an existing entry with a different
// fingerprint requires userApproved; the store refuses silent replacement.
func (s *Store) Trust(rec Record, userApproved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.lookup(rec.Host, rec.Port, rec.Kind, rec.ConnectionID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Fingerprint != rec.Fingerprint && !userApproved {
		return ErrMismatchNotApproved
	}

	now := time.Now().UnixNano()
	firstSeen := now
	if existing != nil && existing.Fingerprint == rec.Fingerprint {
		firstSeen = existing.FirstSeen.UnixNano()
	}
	approved := 0
	if userApproved {
		approved = 1
	}
	_, err = s.db.Exec(`
		INSERT INTO identities (host, port, kind, connection_id, algorithm, fingerprint, user_approved, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (host, port, kind, connection_id) DO UPDATE SET
			algorithm = excluded.algorithm,
			fingerprint = excluded.fingerprint,
			user_approved = excluded.user_approved,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen`,
		rec.Host, rec.Port, string(rec.Kind), rec.ConnectionID,
		rec.Algorithm, rec.Fingerprint, approved, firstSeen, now)
	if err != nil {
		return fmt.Errorf("failed to store identity: %w", err)
	}
	return nil
}

// Stored returns the persisted record for an endpoint, or nil when unknown.
// Unlike Verify it does not fall back from per-connection to global.
func (s *Store) Stored(host string, port uint16, kind Kind, connectionID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(host, port, kind, connectionID)
}

// Remove deletes a stored identity. Removing an unknown entry is not an error.
func (s *Store) Remove(host string, port uint16, kind Kind, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`DELETE FROM identities WHERE host = ? AND port = ? AND kind = ? AND connection_id = ?`,
		host, port, string(kind), connectionID)
	if err != nil {
		return fmt.Errorf("failed to remove identity: %w", err)
	}
	return nil
}

func (s *Store) lookup(host string, port uint16, kind Kind, connectionID string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT host, port, kind, connection_id, algorithm, fingerprint, user_approved, first_seen, last_seen
		FROM identities
		WHERE host = ? AND port = ? AND kind = ? AND connection_id = ?`,
		host, port, string(kind), connectionID)

	var rec Record
	var kindStr string
	var approved int
	var firstSeen, lastSeen int64
	err := row.Scan(&rec.Host, &rec.Port, &kindStr, &rec.ConnectionID,
		&rec.Algorithm, &rec.Fingerprint, &approved, &firstSeen, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query identity: %w", err)
	}
	rec.Kind = Kind(kindStr)
	rec.UserApproved = approved == 1
	rec.FirstSeen = time.Unix(0, firstSeen)
	rec.LastSeen = time.Unix(0, lastSeen)
	return &rec, nil
}
