// Package eventstore journals build lifecycle events to SQLite and rebuilds a
// build history from them.
package eventstore

import (
	"context"
	"time"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

var (
	ErrOpenFailed   = ferrors.IOError("could not open build journal").Build()
	ErrSchemaFailed = ferrors.IOError("failed to initialize build journal schema").Build()
	ErrAppendFailed = ferrors.IOError("failed to append event to build journal").Build()
	ErrQueryFailed  = ferrors.IOError("failed to query build journal").Build()
	ErrEncodeFailed = ferrors.InternalError("failed to encode journal event").Build()
)

// Store persists and retrieves journal events.
type Store interface {
	Append(ctx context.Context, buildID, eventType string, at time.Time, payload []byte, metadata map[string]string) error
	// GetByBuildID returns the events of one build in insertion order.
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)
	// GetRange returns the events with start <= timestamp <= end in insertion order.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)
	Close() error
}
