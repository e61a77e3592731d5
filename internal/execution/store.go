package execution

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
)

// Store is the sqlite journal of executed actions. Writers serialize on a
// file lock so several processes can share one journal.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create action store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create action lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open action sqlite: %w", err)
	}
	store := &Store{db: db, lock: flock.New(lockPath)}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS actions (
			action_id TEXT PRIMARY KEY,
			alert_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			chain_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_actions_status_updated ON actions(status, updated_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_actions_alert ON actions(alert_id);",
	}
	err = store.withLock(func() error {
		for _, q := range queries {
			if _, err := db.Exec(q); err != nil {
				return fmt.Errorf("init action schema: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(rec Record) error {
	if strings.TrimSpace(rec.ActionID) == "" {
		return fmt.Errorf("save action: missing action id")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	createdUnix, _ := parseRFC3339Unix(rec.CreatedAt)
	updatedUnix, _ := parseRFC3339Unix(rec.UpdatedAt)
	if createdUnix == 0 {
		createdUnix = time.Now().UTC().Unix()
	}
	if updatedUnix == 0 {
		updatedUnix = time.Now().UTC().Unix()
	}

	return s.withLock(func() error {
		_, err := s.db.Exec(`
		INSERT INTO actions (action_id, alert_id, kind, status, chain_id, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(action_id) DO UPDATE SET
			alert_id=excluded.alert_id,
			kind=excluded.kind,
			status=excluded.status,
			chain_id=excluded.chain_id,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, rec.ActionID, rec.AlertID, string(rec.Kind), string(rec.Status), rec.ChainID, createdUnix, updatedUnix, payload)
		if err != nil {
			return fmt.Errorf("save action: %w", err)
		}
		return nil
	})
}

// Prune deletes records last updated before cutoff and reports how many
// were removed.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	var removed int64
	err := s.withLock(func() error {
		res, err := s.db.Exec("DELETE FROM actions WHERE updated_at < ?", cutoff.UTC().Unix())
		if err != nil {
			return fmt.Errorf("prune actions: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// Tally counts journal entries sharing a kind and status.
type Tally struct {
	Kind        action.Kind `json:"kind"`
	Status      Status      `json:"status"`
	Count       int         `json:"count"`
	LastUpdated string      `json:"last_updated"`
}

// Summary tallies the journal by kind and status.
func (s *Store) Summary() ([]Tally, error) {
	rows, err := s.db.Query("SELECT kind, status, COUNT(*), MAX(updated_at) FROM actions GROUP BY kind, status ORDER BY kind, status")
	if err != nil {
		return nil, fmt.Errorf("summarize actions: %w", err)
	}
	defer rows.Close()

	out := make([]Tally, 0)
	for rows.Next() {
		var (
			t       Tally
			kind    string
			status  string
			updated int64
		)
		if err := rows.Scan(&kind, &status, &t.Count, &updated); err != nil {
			return nil, fmt.Errorf("scan action summary: %w", err)
		}
		t.Kind = action.Kind(kind)
		t.Status = Status(status)
		t.LastUpdated = time.Unix(updated, 0).UTC().Format(time.RFC3339)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) withLock(fn func() error) error {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock action store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock action store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func (s *Store) Get(actionID string) (Record, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM actions WHERE action_id = ?", actionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("action not found: %s", actionID))
		}
		return Record{}, fmt.Errorf("read action: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("decode action payload: %w", err)
	}
	return rec, nil
}

// List returns the newest records first, optionally filtered by status.
func (s *Store) List(status string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	if strings.TrimSpace(status) == "" {
		return s.query("SELECT payload FROM actions ORDER BY updated_at DESC LIMIT ?", limit)
	}
	return s.query("SELECT payload FROM actions WHERE status = ? ORDER BY updated_at DESC LIMIT ?", status, limit)
}

// ListByAlert returns every record produced while handling alertID.
func (s *Store) ListByAlert(alertID string) ([]Record, error) {
	return s.query("SELECT payload FROM actions WHERE alert_id = ? ORDER BY created_at ASC", alertID)
}

func (s *Store) query(q string, args ...any) ([]Record, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode action row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action rows: %w", err)
	}
	return records, nil
}

func parseRFC3339Unix(v string) (int64, bool) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, false
	}
	return t.UTC().Unix(), true
}
