package eventstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/events"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

const journalBuffer = 64

// Journal appends every build lifecycle event published on a bus to a Store.
type Journal struct {
	store      Store
	projection *BuildHistoryProjection
}

// NewJournal returns a journal writing to store. When projection is non-nil it is
// kept current with every recorded event.
func NewJournal(store Store, projection *BuildHistoryProjection) *Journal {
	return &Journal{store: store, projection: projection}
}

// Record encodes evt and appends it.
func (j *Journal) Record(ctx context.Context, evt events.BuildEvent) error {
	eventType, at, metadata, err := describe(evt)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return wrap(err, ErrEncodeFailed).WithContext("event_type", eventType).Build()
	}
	if err := j.store.Append(ctx, evt.EventBuildID(), eventType, at, payload, metadata); err != nil {
		return err
	}
	if j.projection != nil {
		j.projection.Apply(&BaseEvent{
			EventBuildID:   evt.EventBuildID(),
			EventType:      eventType,
			EventTimestamp: at,
			EventPayload:   payload,
			EventMetadata:  metadata,
		})
	}
	return nil
}

// Start subscribes to bus and records events in a goroutine until ctx ends or the
// bus closes. The subscription is active when Start returns; the returned channel
// is closed once the goroutine has exited.
func (j *Journal) Start(ctx context.Context, bus *events.Bus) <-chan struct{} {
	ch, unsubscribe := events.Subscribe[events.BuildEvent](bus, journalBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if err := j.Record(context.WithoutCancel(ctx), evt); err != nil {
					slog.Warn("Failed to journal build event",
						logfields.BuildID(evt.EventBuildID()), logfields.Error(err))
				}
			}
		}
	}()
	return done
}

func describe(evt events.BuildEvent) (string, time.Time, map[string]string, error) {
	switch e := evt.(type) {
	case events.BuildStarted:
		meta := map[string]string{"kind": e.Kind}
		if e.Trigger != "" {
			meta["trigger"] = e.Trigger
		}
		return TypeBuildStarted, e.StartedAt, meta, nil
	case events.BuildFinished:
		return TypeBuildFinished, e.FinishedAt, map[string]string{
			"kind":    e.Kind,
			"change":  e.Change,
			"success": strconv.FormatBool(e.Success),
		}, nil
	case events.ReloadSent:
		return TypeReloadSent, e.SentAt, map[string]string{"clients": strconv.Itoa(e.Clients)}, nil
	default:
		return "", time.Time{}, nil, ferrors.ValidationError("unsupported journal event").
			WithContext("build_id", evt.EventBuildID()).
			Build()
	}
}
