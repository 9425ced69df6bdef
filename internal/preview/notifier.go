package preview

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sitegen/internal/events"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// DefaultSubject is the NATS subject build results are published on.
const DefaultSubject = "sitegen.builds"

const notifierBuffer = 16

// Publisher is the part of a NATS connection the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier publishes finished builds to NATS so other processes can react.
type Notifier struct {
	pub     Publisher
	subject string
}

// NewNotifier publishes on subject, or DefaultSubject when empty.
func NewNotifier(pub Publisher, subject string) *Notifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Notifier{pub: pub, subject: subject}
}

// ConnectNotifier dials url and returns a notifier plus the function that closes
// the connection.
func ConnectNotifier(url, subject string) (*Notifier, func(), error) {
	conn, err := nats.Connect(url, nats.Name("sitegen"))
	if err != nil {
		return nil, nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "connecting to NATS").
			WithContext("url", url).
			Build()
	}
	slog.Info("Publishing build results to NATS", logfields.URL(url), slog.String("subject", subject))
	return NewNotifier(conn, subject), func() {
		if err := conn.Drain(); err != nil {
			conn.Close()
		}
	}, nil
}

// Notify publishes evt as JSON.
func (n *Notifier) Notify(evt events.BuildFinished) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encoding build event").Build()
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "publishing build event").
			WithContext("subject", n.subject).
			Build()
	}
	return nil
}

// Start forwards BuildFinished events from bus until ctx ends or the bus closes.
// The returned channel is closed when forwarding stops.
func (n *Notifier) Start(ctx context.Context, bus *events.Bus) <-chan struct{} {
	ch, unsubscribe := events.Subscribe[events.BuildFinished](bus, notifierBuffer)
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
				if err := n.Notify(evt); err != nil {
					slog.Warn("Build notification failed", logfields.BuildID(evt.BuildID), logfields.Error(err))
				}
			}
		}
	}()
	return done
}
