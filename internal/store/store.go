package store

//go:generate go run go.uber.org/mock/mockgen -destination store_mock.gen.go -package store . Store

import (
	"context"
	"errors"
)

// DefaultLatestLimit is how many records /latest-events returns.
const DefaultLatestLimit = 10

// ErrDisconnected is returned by every data operation of a Disconnected store.
var ErrDisconnected = errors.New("store disconnected")

// Store is the persistence interface. The server depends only on this interface.
// Only main and this package know about pgx or database/sql.
type Store interface {
	// InsertEvent appends rec and returns the store-assigned id.
	InsertEvent(ctx context.Context, rec *EventRecord) (id string, err error)
	// LatestEvents returns up to limit records, newest (highest id) first.
	LatestEvents(ctx context.Context, limit int) ([]StoredEvent, error)
	EventsCount(ctx context.Context) (int64, error)
	// Connected reports whether the startup connection succeeded.
	Connected() bool
	Ping(ctx context.Context) error
	Close()
}

// EventRecord is the row shape for events. FromBranch is nil for pushes.
type EventRecord struct {
	Action     string  `json:"action"`
	Author     string  `json:"author"`
	ToBranch   string  `json:"to_branch"`
	FromBranch *string `json:"from_branch,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

// StoredEvent is a persisted EventRecord with its id.
type StoredEvent struct {
	ID string `json:"_id"`
	EventRecord
}
