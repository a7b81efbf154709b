package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nordstift/foundation-console/internal/domain/event"
)

// Handler processes one domain event.
type Handler func(ctx context.Context, evt *event.Event) error

// Dispatcher fans domain events out to subscribers. Transitions
// dispatch asynchronously so persistence never waits on a subscriber;
// a failing or panicking subscriber is logged and isolated, it cannot
// fail the transition that emitted the event.
type Dispatcher interface {
	// Subscribe registers a named handler for an event type. The name
	// appears in logs when the handler fails.
	Subscribe(eventType event.Type, name string, handler Handler)

	// DispatchAsync delivers the event to every subscriber of its
	// type without waiting for them to finish.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Close stops accepting events and waits for in-flight handlers.
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type subscription struct {
	name    string
	handler Handler
}

type eventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[event.Type][]subscription
	logger      Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		subscribers: make(map[event.Type][]subscription),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.subscribers[eventType] = append(d.subscribers[eventType], subscription{
		name:    name,
		handler: handler,
	})

	if d.logger != nil {
		d.logger.Info("Handler registered",
			"event_type", eventType,
			"handler_name", name,
		)
	}
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		if d.logger != nil {
			d.logger.Error("Event dropped, dispatcher is closed",
				"event_type", evt.Type,
				"event_id", evt.ID,
			)
		}
		return
	}

	d.mu.RLock()
	subscribers := d.subscribers[evt.Type]
	d.mu.RUnlock()

	for _, sub := range subscribers {
		d.wg.Add(1)
		go func(s subscription) {
			defer d.wg.Done()

			if err := d.run(ctx, evt, s); err != nil && d.logger != nil {
				d.logger.Error("Handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", s.name,
					"error", err,
				)
			}
		}(sub)
	}
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	d.wg.Wait()

	if d.logger != nil {
		d.logger.Info("Dispatcher closed")
	}

	return nil
}

// run executes a handler with panic recovery, so one bad subscriber
// cannot take the process down.
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return sub.handler(ctx, evt)
}
