package persist

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fitmirror/fitmirror/internal/logging"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned by Get when a key has never been set or was
// deleted.
var ErrNotFound = errors.New("persist: key not found")

// Store is a durable, synchronous key-value store surviving widget reloads.
// Writes replace the whole value; there is no partial/field-level update.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// SQLiteStore keeps session state in a single-table SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSQLiteStore opens (creating if needed) the session database under dir.
func NewSQLiteStore(dir string, logger logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.NewStdoutLogger("persist")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	dbPath := filepath.Join(dir, "session.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // survive crashes mid-write
		"PRAGMA synchronous=NORMAL", // balance between safety and performance
		"PRAGMA busy_timeout=5000",  // wait up to 5 seconds on locked database
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS session (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("session store initialized", logging.Field{Key: "path", Value: dbPath})
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Get(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM session WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, err)
	}
	return v, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO session (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM session WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemStore is an in-memory Store for tests and for environments where
// durable storage is unavailable.
type MemStore struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *MemStore) Close() error { return nil }

// SafeStore wraps another Store so storage-access failures degrade to a
// logged no-op instead of propagating: the widget stays usable, just
// non-resumable, when persistence is unavailable. ErrNotFound still passes
// through since readers must distinguish "missing" from "broken".
type SafeStore struct {
	inner  Store
	logger logging.Logger
}

func NewSafeStore(inner Store, logger logging.Logger) *SafeStore {
	if logger == nil {
		logger = logging.NewStdoutLogger("persist")
	}
	return &SafeStore{inner: inner, logger: logger}
}

func (s *SafeStore) Get(key string) (string, error) {
	v, err := s.inner.Get(key)
	if err != nil && err != ErrNotFound {
		s.logger.Warn("session read failed, treating as missing",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "error", Value: err.Error()})
		return "", ErrNotFound
	}
	return v, err
}

func (s *SafeStore) Set(key, value string) error {
	if err := s.inner.Set(key, value); err != nil {
		s.logger.Warn("session write failed, continuing without persistence",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "error", Value: err.Error()})
	}
	return nil
}

func (s *SafeStore) Delete(key string) error {
	if err := s.inner.Delete(key); err != nil {
		s.logger.Warn("session delete failed, continuing",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "error", Value: err.Error()})
	}
	return nil
}

func (s *SafeStore) Close() error { return s.inner.Close() }
