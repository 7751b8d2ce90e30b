package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// EventStatus is the dispatch status of a durable event row.
type EventStatus int

const (
	EventStatusPending EventStatus = iota
	EventStatusFlushing
)

// EventRecord is one durable event row.
type EventRecord struct {
	ID     int64
	Type   int
	Status EventStatus
	Body   []byte
}

// EventStore persists produced events so they survive process termination
// before a successful flush.
type EventStore interface {
	// Save inserts one pending event and returns its sequence id.
	Save(ctx context.Context, eventType int, body []byte) (int64, error)

	// FetchPending selects up to limit pending rows in sequence order and
	// marks them flushing.
	FetchPending(ctx context.Context, limit int) ([]EventRecord, error)

	// MarkFlushing flips the given rows to flushing before dispatch.
	MarkFlushing(ctx context.Context, ids []int64) error

	// Delete removes acknowledged rows.
	Delete(ctx context.Context, ids []int64) error

	// RevertToPending returns failed-flush rows to pending so they are
	// retried on the next flush.
	RevertToPending(ctx context.Context, ids []int64) error

	// Count returns the number of rows in the store.
	Count(ctx context.Context) (int64, error)

	// TrimTo prunes oldest rows until at most max remain.
	TrimTo(ctx context.Context, max int64) error

	Close() error
}

// SQLiteEventStore is an EventStore over one SQLite database file. All access
// is serialized through a single mutex: one connection, one writer at a time,
// never held across a network call.
type SQLiteEventStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenEventStore opens (creating if needed) the event database at path,
// applies the schema and recovers rows left flushing by a previous process.
func OpenEventStore(path string) (*SQLiteEventStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("event store path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping event store: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS events (
	  id     INTEGER PRIMARY KEY AUTOINCREMENT,
	  type   INTEGER NOT NULL,
	  status INTEGER NOT NULL,
	  body   TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	store := &SQLiteEventStore{db: db}
	if err := store.recoverFlushing(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// recoverFlushing sweeps rows stuck in flushing back to pending. Runs once at
// open so a crash mid-flush never strands events.
func (s *SQLiteEventStore) recoverFlushing(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET status = ? WHERE status = ?`,
		int(EventStatusPending), int(EventStatusFlushing),
	)
	if err != nil {
		return fmt.Errorf("recover flushing events: %w", err)
	}
	return nil
}

func (s *SQLiteEventStore) Save(ctx context.Context, eventType int, body []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (type, status, body) VALUES (?, ?, ?)`,
		eventType, int(EventStatusPending), string(body),
	)
	if err != nil {
		return 0, fmt.Errorf("save event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save event: %w", err)
	}
	return id, nil
}

func (s *SQLiteEventStore) FetchPending(ctx context.Context, limit int) ([]EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, status, body FROM events
		  WHERE status = ?
		  ORDER BY id ASC
		  LIMIT ?`,
		int(EventStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch pending events: %w", err)
	}
	defer rows.Close()

	var records []EventRecord
	for rows.Next() {
		var r EventRecord
		var status int
		var body string
		if err := rows.Scan(&r.ID, &r.Type, &status, &body); err != nil {
			return nil, fmt.Errorf("fetch pending events: %w", err)
		}
		r.Status = EventStatus(status)
		r.Body = []byte(body)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch pending events: %w", err)
	}

	for i := range records {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE events SET status = ? WHERE id = ?`,
			int(EventStatusFlushing), records[i].ID,
		); err != nil {
			return nil, fmt.Errorf("mark event flushing: %w", err)
		}
		records[i].Status = EventStatusFlushing
	}
	return records, nil
}

func (s *SQLiteEventStore) MarkFlushing(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE events SET status = ? WHERE id = ?`,
			int(EventStatusFlushing), id,
		); err != nil {
			return fmt.Errorf("mark event %d flushing: %w", id, err)
		}
	}
	return nil
}

func (s *SQLiteEventStore) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete event %d: %w", id, err)
		}
	}
	return nil
}

func (s *SQLiteEventStore) RevertToPending(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE events SET status = ? WHERE id = ?`,
			int(EventStatusPending), id,
		); err != nil {
			return fmt.Errorf("revert event %d: %w", id, err)
		}
	}
	return nil
}

func (s *SQLiteEventStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (s *SQLiteEventStore) TrimTo(ctx context.Context, max int64) error {
	if max < 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE id NOT IN (
		   SELECT id FROM events ORDER BY id DESC LIMIT ?
		 )`,
		max,
	)
	if err != nil {
		return fmt.Errorf("trim events: %w", err)
	}
	return nil
}

func (s *SQLiteEventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var _ EventStore = (*SQLiteEventStore)(nil)
