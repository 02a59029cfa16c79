package trace

import (
	"context"
	"database/sql"
	"fmt"

	"ttsched"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		seq  INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		cpu  INTEGER NOT NULL,
		kind TEXT NOT NULL,
		tid  INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_events_tid ON events(tid)`,
}

// SQLiteSink stores events in a SQLite database.
type SQLiteSink struct {
	db  *sql.DB
	log *ttsched.Logger
}

// NewSQLiteSink opens (or creates) the database at path and migrates it.
// Use ":memory:" in tests.
func NewSQLiteSink(ctx context.Context, path string, log *ttsched.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// every connection to :memory: is a different database
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &SQLiteSink{db: db, log: log}, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Write appends events in one transaction.
func (s *SQLiteSink) Write(ctx context.Context, events []Event) error {
	s.log.Debug().Int("events", len(events)).Str("table", "events").Log("sql insert")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (tick, cpu, kind, tid) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, int64(e.Tick), e.CPU, e.Kind.String(), e.Tid); err != nil {
			return fmt.Errorf("insert %v: %w", e, err)
		}
	}
	return tx.Commit()
}

// Events reads back every stored event in insertion order.
func (s *SQLiteSink) Events(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tick, cpu, kind, tid FROM events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			tick int64
			e    Event
			kind string
		)
		if err := rows.Scan(&tick, &e.CPU, &kind, &e.Tid); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Tick = uint64(tick)
		if e.Kind, err = parseKind(kind); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ Sink = (*SQLiteSink)(nil)
