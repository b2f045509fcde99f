package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultConnectTimeout bounds the one connection attempt made at startup.
const DefaultConnectTimeout = 5 * time.Second

// Options selects and locates the backend.
type Options struct {
	Driver         string
	URL            string
	ConnectTimeout time.Duration
}

// Connect opens the configured backend once. On any failure it returns a
// Disconnected store together with the cause; callers log the cause and carry on.
// There is no reconnection.
func Connect(ctx context.Context, opts Options) (Store, error) {
	if opts.URL == "" {
		err := errors.New("no database url configured")
		return NewDisconnected(err), err
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case DriverPostgres, "":
		s, err = OpenPostgres(ctx, opts.URL)
	case DriverSQLite:
		s, err = OpenSQLite(ctx, opts.URL)
	default:
		err = fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return NewDisconnected(err), err
	}
	return s, nil
}

// Disconnected is the degraded-mode store used when the startup connection failed.
type Disconnected struct {
	cause error
}

// NewDisconnected returns a store that refuses every operation. cause is reported by Ping.
func NewDisconnected(cause error) *Disconnected {
	return &Disconnected{cause: cause}
}

func (d *Disconnected) InsertEvent(context.Context, *EventRecord) (string, error) {
	return "", ErrDisconnected
}

func (d *Disconnected) LatestEvents(context.Context, int) ([]StoredEvent, error) {
	return nil, ErrDisconnected
}

func (d *Disconnected) EventsCount(context.Context) (int64, error) {
	return 0, ErrDisconnected
}

func (d *Disconnected) Connected() bool { return false }

func (d *Disconnected) Ping(context.Context) error {
	if d.cause == nil {
		return ErrDisconnected
	}
	return fmt.Errorf("%w: %v", ErrDisconnected, d.cause)
}

func (d *Disconnected) Close() {}
