// Package store persists session events and measurements.
// The Gateway interface is what the session logic consumes; SQLStore backs it
// with SQLite or Postgres and Fake backs it in memory for tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/tilt-fermenter/internal/ferment"
)

// ErrStorageUnavailable classifies every failure of the durable store.
// Match with errors.Is; the concrete error is a *Error carrying the operation.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Gateway is durable storage for the session event log and measurements.
// Every method may block on I/O.
type Gateway interface {
	// CreateDatabase ensures the schema exists. Idempotent.
	CreateDatabase(ctx context.Context) error

	// LastStartTime returns the timestamp of the last appended Start event,
	// but only when no Stop event was appended after it.
	LastStartTime(ctx context.Context) (time.Time, bool, error)

	// SpecificGravity returns the most recent stored gravity reading. A
	// non-zero since ignores readings observed before it.
	SpecificGravity(ctx context.Context, since time.Time) (float64, bool, error)

	// WriteData appends measurements observed at observedAt.
	// An empty slice is a no-op.
	WriteData(ctx context.Context, observedAt time.Time, metrics []ferment.Metric) error

	// WriteEvent appends to the event log.
	WriteEvent(ctx context.Context, event ferment.Event) error

	// Close releases the underlying connection.
	Close() error
}

// Error is a failed store operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports every store error as ErrStorageUnavailable.
func (e *Error) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}
