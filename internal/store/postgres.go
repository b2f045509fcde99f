package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS events (
		id          BIGSERIAL PRIMARY KEY,
		action      TEXT NOT NULL,
		author      TEXT NOT NULL,
		to_branch   TEXT NOT NULL,
		from_branch TEXT,
		timestamp   TEXT NOT NULL
	)
`

// Postgres implements Store using PostgreSQL. Only this package and main use *pgxpool.Pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Store backed by the given pool. Caller must call Close when done.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// OpenPostgres creates a pool for url, pings it and creates the events table if missing.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	p := NewPostgres(pool)
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return p, nil
}

// InsertEvent inserts an event and returns its BIGSERIAL id.
func (p *Postgres) InsertEvent(ctx context.Context, rec *EventRecord) (string, error) {
	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO events (action, author, to_branch, from_branch, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, rec.Action, rec.Author, rec.ToBranch, rec.FromBranch, rec.Timestamp).Scan(&id)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// LatestEvents returns up to limit events ordered by id descending.
func (p *Postgres) LatestEvents(ctx context.Context, limit int) ([]StoredEvent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, action, author, to_branch, from_branch, timestamp
		FROM events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StoredEvent{}
	for rows.Next() {
		var (
			id int64
			ev StoredEvent
		)
		if err := rows.Scan(&id, &ev.Action, &ev.Author, &ev.ToBranch, &ev.FromBranch, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.ID = strconv.FormatInt(id, 10)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// EventsCount returns the count of rows in events.
func (p *Postgres) EventsCount(ctx context.Context) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// Connected is always true: a Postgres store only exists after a successful ping.
func (p *Postgres) Connected() bool { return true }

// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
