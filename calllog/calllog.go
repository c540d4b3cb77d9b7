// Package calllog records who called and what was said. It is write-only
// from the phone agent's point of view; RecentCalls serves the ops endpoint.
package calllog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// stampLayout is fixed-width so started_at sorts lexically.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Call struct {
	CallID     string    `json:"call_id"`
	Phone      string    `json:"phone"`
	StartedAt  time.Time `json:"started_at"`
	Transcript []Entry   `json:"transcript"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// LogCallStart records the call once; repeated starts for the same id are ignored.
func (s *Store) LogCallStart(ctx context.Context, callID, phone string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (call_id, phone, started_at) VALUES (?, ?, ?) ON CONFLICT(call_id) DO NOTHING`,
		callID, phone, s.stamp())
	if err != nil {
		return fmt.Errorf("log call start %s: %w", callID, err)
	}
	return nil
}

func (s *Store) LogTurn(ctx context.Context, callID, role, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (call_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		callID, role, text, s.stamp())
	if err != nil {
		return fmt.Errorf("log turn %s: %w", callID, err)
	}
	return nil
}

// RecentCalls returns the newest calls first, each with its transcript in
// the order it was spoken.
func (s *Store) RecentCalls(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT call_id, phone, started_at FROM calls ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}

	var calls []Call
	for rows.Next() {
		var (
			c       Call
			started string
		)
		if err := rows.Scan(&c.CallID, &c.Phone, &started); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.StartedAt, _ = time.Parse(stampLayout, started)
		calls = append(calls, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}

	for i := range calls {
		transcript, err := s.transcript(ctx, calls[i].CallID)
		if err != nil {
			return nil, err
		}
		calls[i].Transcript = transcript
	}
	return calls, nil
}

func (s *Store) transcript(ctx context.Context, callID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM transcripts WHERE call_id = ? ORDER BY id`, callID)
	if err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", callID, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.Role, &e.Content, &created); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		e.CreatedAt, _ = time.Parse(stampLayout, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(stampLayout)
}
