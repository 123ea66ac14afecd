package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	client_id TEXT NOT NULL DEFAULT '',
	severity TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_kind_time ON audit_events(kind, created_at);
`

// Fixed-width so that created_at sorts lexically in time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteSink stores events in a single SQLite table.
type SQLiteSink struct {
	session
	db *sql.DB
}

// OpenSQLite opens (and creates) the database at path. ":memory:" is accepted.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if path == "" {
		return nil, errors.New("audit database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	// One connection keeps an in-memory database shared and serializes writers.
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteSink(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteSink creates the schema in db if needed.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	if _, err := db.Exec(eventsSchema); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Record(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, kind, client_id, severity, created_at, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.ClientID, e.Severity, e.Timestamp.UTC().Format(sqliteTimeLayout), string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	s.add(e)
	return nil
}

func (s *SQLiteSink) Query(ctx context.Context, q Query) ([]Event, error) {
	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}
	since := ""
	if !q.Since.IsZero() {
		since = q.Since.UTC().Format(sqliteTimeLayout)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM audit_events
		 WHERE (? = '' OR kind = ?) AND created_at >= ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		string(q.Kind), string(q.Kind), since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		var e Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decoding audit event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes events older than the cutoff and reports how many went.
func (s *SQLiteSink) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE created_at < ?`, before.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning audit events: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteSink) Stats() Stats { return s.snapshot() }

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
