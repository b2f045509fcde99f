package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	action      TEXT NOT NULL,
	author      TEXT NOT NULL,
	to_branch   TEXT NOT NULL,
	from_branch TEXT,
	timestamp   TEXT NOT NULL
);`

// SQLite implements Store on a local SQLite file. Meant for development and tests.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and creates the events table.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite serialises writers anyway, and :memory: is per connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) InsertEvent(ctx context.Context, rec *EventRecord) (string, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (action, author, to_branch, from_branch, timestamp) VALUES (?, ?, ?, ?, ?)`,
		rec.Action, rec.Author, rec.ToBranch, nullString(rec.FromBranch), rec.Timestamp)
	if err != nil {
		return "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLite) LatestEvents(ctx context.Context, limit int) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, author, to_branch, from_branch, timestamp FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StoredEvent{}
	for rows.Next() {
		var (
			id   int64
			from sql.NullString
			ev   StoredEvent
		)
		if err := rows.Scan(&id, &ev.Action, &ev.Author, &ev.ToBranch, &from, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.ID = strconv.FormatInt(id, 10)
		if from.Valid {
			ev.FromBranch = &from.String
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLite) EventsCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

func (s *SQLite) Connected() bool { return true }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() { _ = s.db.Close() }

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
