// Package localstore is the client-side replacement for browser local
// storage: a small key/value table in a sqlite file. Everything the
// dashboard persists between runs lives here.
package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Keys persisted by the dashboard. SessionKeys lists every key the logout
// routine must clear; keep it in sync when adding a key.
const (
	KeyAuthToken        = "auth_token"
	KeyCachedUser       = "cached_user"
	KeyRedirectPath     = "redirect_path"
	KeyMarketingFlow    = "marketing_flow"
	KeyVerificationLink = "verification_link"
	KeyVerificationType = "verification_type"
	KeyProjectID        = "project_id"
	KeyActiveRole       = "active_role"
	KeyConversationID   = "conversation_id"
)

// SessionKeys are cleared atomically on logout or guard rejection.
var SessionKeys = []string{
	KeyAuthToken,
	KeyCachedUser,
	KeyRedirectPath,
	KeyMarketingFlow,
	KeyVerificationLink,
	KeyVerificationType,
	KeyProjectID,
	KeyActiveRole,
	KeyConversationID,
}

// ErrNotFound indicates the key has no stored value.
var ErrNotFound = errors.New("not found")

// Store is a sqlite-backed key/value store.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing database handle. The caller owns the handle's
// lifetime; used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("migrate state db: %w", err)
	}
	return nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ClearSession removes every session key in one transaction. This is the
// single logout routine: either all nine keys go, or none do.
func (s *Store) ClearSession() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	for _, key := range SessionKeys {
		if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
			tx.Rollback()
			return fmt.Errorf("clear session: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
