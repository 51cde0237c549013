// Package journal keeps a small sqlite history of gestures and chimes. It
// also backs the chime duplicate guard across restarts.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/gesture"
)

// Entry kinds.
const (
	KindGesture = "gesture"
	KindChime   = "chime"
)

// DefaultRecent is the history length served when none is requested.
const DefaultRecent = 50

var ErrClosed = errors.New("journal closed")

const schema = `
CREATE TABLE IF NOT EXISTS gestures (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at TEXT NOT NULL,
	gesture TEXT NOT NULL CHECK(gesture IN ('SINGLE_TAP','DOUBLE_TAP','LONG_PRESS')),
	taps INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS gestures_at ON gestures(at);

CREATE TABLE IF NOT EXISTS chimes (
	slot TEXT PRIMARY KEY,
	hour INTEGER NOT NULL CHECK(hour BETWEEN 0 AND 23),
	half INTEGER NOT NULL,
	at TEXT NOT NULL
);
`

// Entry is one journal row.
type Entry struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Gesture string    `json:"gesture,omitempty"`
	Taps    int       `json:"taps,omitempty"`
	Hour    int       `json:"hour,omitempty"`
	Half    bool      `json:"half,omitempty"`
}

// Store is the sqlite journal.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordGesture appends a resolved gesture. NONE is not recorded.
func (s *Store) RecordGesture(ctx context.Context, ev gesture.Event) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if ev.Gesture == gesture.GestureNone {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gestures(at, gesture, taps) VALUES (?, ?, ?)`,
		ts(ev.Timestamp), string(ev.Gesture), ev.Taps)
	if err != nil {
		return fmt.Errorf("insert gesture: %w", err)
	}
	return nil
}

// Claim records b's slot and reports whether this call was the first to
// do so. It implements chime.Ledger.
func (s *Store) Claim(ctx context.Context, b chime.Boundary) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrClosed
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chimes(slot, hour, half, at) VALUES (?, ?, ?, ?)`,
		b.Key(), b.Hour, boolToInt(b.Half), ts(b.At))
	if err != nil {
		return false, fmt.Errorf("claim chime: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim chime: %w", err)
	}
	return n == 1, nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if n <= 0 {
		n = DefaultRecent
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT at, 'gesture', gesture, taps, 0, 0 FROM gestures
UNION ALL
SELECT at, 'chime', '', 0, hour, half FROM chimes
ORDER BY 1 DESC
LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			at   string
			e    Entry
			half int
		)
		if err := rows.Scan(&at, &e.Kind, &e.Gesture, &e.Taps, &e.Hour, &half); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		if e.At, err = parseTS(at); err != nil {
			return nil, fmt.Errorf("parse journal time: %w", err)
		}
		e.Half = half != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal rows: %w", err)
	}
	return out, nil
}

// ts uses a fixed-width layout so text ordering matches time ordering.
func ts(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
