// Package cache stores model completions in sqlite so repeated alerts do not
// pay for a second round trip.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

type Store struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

// Entry is a cached completion.
type Entry struct {
	Model string
	Value []byte
	Age   time.Duration
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+busyTimeoutDSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	store := &Store{db: db, lock: flock.New(lockPath), now: time.Now}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS completions (
			key TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			value BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_completions_expires ON completions(expires_at);",
	}
	// Schema setup holds the writer lock.
	err = store.withLock(func() error {
		for _, query := range queries {
			if _, err := db.Exec(query); err != nil {
				return fmt.Errorf("init cache schema: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	_ = store.Prune()
	return store, nil
}

// busyTimeoutDSN makes every pooled connection wait on a locked database
// instead of failing with SQLITE_BUSY.
const busyTimeoutDSN = "?_pragma=busy_timeout(5000)"

func (s *Store) withLock(fn func() error) error {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock cache: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Key hashes the prompt parts into a stable cache key.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		_, _ = fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Prune deletes expired completions.
func (s *Store) Prune() error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("DELETE FROM completions WHERE expires_at <= ?", s.now().UTC().Unix()); err != nil {
		return fmt.Errorf("prune cache: %w", err)
	}
	return nil
}

// Get returns the completion for key unless it is missing or expired.
func (s *Store) Get(key string) (Entry, bool, error) {
	var entry Entry
	var createdUnix, expiresUnix int64
	err := s.db.QueryRow("SELECT model, value, created_at, expires_at FROM completions WHERE key = ?", key).
		Scan(&entry.Model, &entry.Value, &createdUnix, &expiresUnix)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("cache read: %w", err)
	}
	now := s.now().UTC()
	if now.Unix() >= expiresUnix {
		return Entry{}, false, nil
	}
	entry.Age = max(now.Sub(time.Unix(createdUnix, 0)), 0)
	return entry, true, nil
}

func (s *Store) Set(key, model string, value []byte, ttl time.Duration) error {
	now := s.now().UTC()
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.withLock(func() error {
		return s.upsert(key, model, value, now, ttl)
	})
}

func (s *Store) upsert(key, model string, value []byte, now time.Time, ttl time.Duration) error {
	_, err := s.db.Exec(`
		INSERT INTO completions (key, model, value, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			model=excluded.model,
			value=excluded.value,
			created_at=excluded.created_at,
			expires_at=excluded.expires_at
	`, key, model, value, now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

// Len counts unexpired completions.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM completions WHERE expires_at > ?", s.now().UTC().Unix()).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}
