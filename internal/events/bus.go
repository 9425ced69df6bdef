// Package events is a typed in-process publish/subscribe bus for build lifecycle events.
package events

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

// Bus fans events out to typed subscribers.
//
// Publish blocks until every matching subscriber has accepted the event or ctx ends.
// Events are not persisted; the build journal subscribes like any other consumer.
type Bus struct {
	mu     sync.RWMutex
	topics map[reflect.Type]map[uint64]*subscription
	seq    atomic.Uint64
	closed atomic.Bool
	once   sync.Once
}

type subscription struct {
	deliver func(ctx context.Context, evt any) error
	stop    func()
}

// NewBus returns an open bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[reflect.Type]map[uint64]*subscription)}
}

// Subscribe returns a channel receiving events of type T and a function that ends the
// subscription. An interface T receives every event whose concrete type implements it.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	topic := reflect.TypeFor[T]()
	ch := make(chan T, buffer)

	// mu orders close(ch) after in-flight deliveries; done unblocks them.
	var (
		mu       sync.RWMutex
		stopped  bool
		done     = make(chan struct{})
		stopOnce sync.Once
	)
	stop := func() {
		stopOnce.Do(func() {
			close(done)
			mu.Lock()
			stopped = true
			close(ch)
			mu.Unlock()
		})
	}

	if b.closed.Load() {
		stop()
		return ch, func() {}
	}

	sub := &subscription{
		deliver: func(ctx context.Context, evt any) error {
			v, ok := evt.(T)
			if !ok {
				return ferrors.InternalError("event type mismatch").
					WithContext("expected", topic.String()).
					WithContext("actual", reflect.TypeOf(evt).String()).
					Build()
			}
			mu.RLock()
			defer mu.RUnlock()
			if stopped {
				return nil
			}
			select {
			case ch <- v:
				return nil
			case <-done:
				return nil
			case <-ctx.Done():
				return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "event publish canceled").
					WithContext("event_type", topic.String()).
					Build()
			}
		},
		stop: stop,
	}
	id := b.seq.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		stop()
		return ch, func() {}
	}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]*subscription)
	}
	b.topics[topic][id] = sub

	var unsubOnce sync.Once
	return ch, func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			if subs, ok := b.topics[topic]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.topics, topic)
				}
			}
			b.mu.Unlock()
			stop()
		})
	}
}

// SubscriberCount reports the active subscriptions for exactly type T.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[reflect.TypeFor[T]()])
}

// Publish delivers evt to every subscriber whose type matches.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	if b.closed.Load() {
		return ferrors.RuntimeError("event bus is closed").Build()
	}

	evtType := reflect.TypeOf(evt)
	b.mu.RLock()
	var targets []*subscription
	for topic, subs := range b.topics {
		if topic != evtType && (topic.Kind() != reflect.Interface || !evtType.Implements(topic)) {
			continue
		}
		for _, s := range subs {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.deliver(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Close rejects further publishes and closes every subscription channel.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.closed.Store(true)
		b.mu.Lock()
		var all []*subscription
		for _, subs := range b.topics {
			for _, s := range subs {
				all = append(all, s)
			}
		}
		b.topics = make(map[reflect.Type]map[uint64]*subscription)
		b.mu.Unlock()

		for _, s := range all {
			s.stop()
		}
	})
}
