package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/gamestats/internal/event"
	"github.com/gyaneshwarpardhi/gamestats/internal/metrics"
)

// DefaultMaxDepth bounds nested publishes issued from inside handlers.
const DefaultMaxDepth = 32

// DefaultLockWarnAfter is how long a publish may wait for the dispatch lock
// before a warning is logged.
const DefaultLockWarnAfter = 5 * time.Second

// ErrMaxDepth is returned when a nested publish would exceed the dispatcher's
// maximum depth. It usually means an event re-triggers itself.
var ErrMaxDepth = errors.New("bus: maximum dispatch depth exceeded")

// Dispatcher routes published events to subscribed handlers.
//
// Dispatch is serialized: one top-level Publish runs at a time across all
// goroutines, and handlers run synchronously in registration order. A handler
// may publish again using the ctx it was given; that nested event is recorded
// and fully dispatched before the outer handler continues.
//
// The registry is copy-on-write, so the subscriber list captured when a
// dispatch starts is never affected by Subscribe or Unsubscribe calls made
// while it runs.
type Dispatcher struct {
	mu          sync.Mutex // guards subscribers and history
	subscribers map[string][]*Subscription
	history     []event.Event

	dispatchMu sync.Mutex // serializes top-level dispatch

	maxDepth int
	lockWarn time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the clock used to timestamp published events.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithMaxDepth sets the nesting limit for publishes made from handlers.
// Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(d *Dispatcher) {
		if n >= 1 {
			d.maxDepth = n
		}
	}
}

// WithLockWarnAfter sets how long a top-level publish waits for the dispatch
// lock before logging a warning. Values <= 0 are ignored.
func WithLockWarnAfter(wait time.Duration) Option {
	return func(d *Dispatcher) {
		if wait > 0 {
			d.lockWarn = wait
		}
	}
}

// New creates an empty Dispatcher. A nil logger uses slog.Default().
func New(logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		subscribers: make(map[string][]*Subscription),
		maxDepth:    DefaultMaxDepth,
		lockWarn:    DefaultLockWarnAfter,
		now:         time.Now,
		logger:      logger.With("component", "bus"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers h for eventType. Registering the same handler twice
// yields two independent registrations, each invoked once per publish.
func (d *Dispatcher) Subscribe(eventType string, h Handler) *Subscription {
	if h == nil {
		d.logger.Warn("ignoring nil handler", "event_type", eventType)
		return nil
	}
	s := &Subscription{d: d, eventType: eventType, handler: h}

	d.mu.Lock()
	cur := d.subscribers[eventType]
	next := make([]*Subscription, len(cur), len(cur)+1)
	copy(next, cur)
	d.subscribers[eventType] = append(next, s)
	d.mu.Unlock()

	d.logger.Debug("subscriber registered", "event_type", eventType)
	return s
}

// Unsubscribe removes the first registration of h for eventType.
// It returns false when no matching registration exists.
func (d *Dispatcher) Unsubscribe(eventType string, h Handler) bool {
	return d.remove(eventType, func(s *Subscription) bool { return sameHandler(s.handler, h) })
}

func (d *Dispatcher) remove(eventType string, match func(*Subscription) bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.subscribers[eventType]
	for i, s := range cur {
		if !match(s) {
			continue
		}
		if len(cur) == 1 {
			delete(d.subscribers, eventType)
		} else {
			next := make([]*Subscription, 0, len(cur)-1)
			next = append(next, cur[:i]...)
			d.subscribers[eventType] = append(next, cur[i+1:]...)
		}
		d.logger.Debug("subscriber removed", "event_type", eventType)
		return true
	}
	d.logger.Warn("subscriber not found", "event_type", eventType)
	return false
}

// Publish builds an event stamped with the dispatcher clock and dispatches it.
// A nil payload is treated as empty.
func (d *Dispatcher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) error {
	return d.Dispatch(ctx, event.NewAt(eventType, payload, d.now()))
}

// Dispatch records ev in history and invokes every handler subscribed to its
// type. Handler panics are recovered and logged; they never reach the caller.
// The only error is ErrMaxDepth, in which case ev is not recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	depth := depthOf(ctx)
	if depth >= d.maxDepth {
		metrics.DepthExceeded.Inc()
		d.logger.Error("publish rejected", "event_type", ev.Type(), "depth", depth, "max_depth", d.maxDepth)
		return fmt.Errorf("publish %s at depth %d: %w", ev.Type(), depth, ErrMaxDepth)
	}
	if depth == 0 {
		d.lockDispatch(ev.Type())
		defer d.dispatchMu.Unlock()
	}

	d.mu.Lock()
	d.history = append(d.history, ev)
	subs := d.subscribers[ev.Type()]
	d.mu.Unlock()
	metrics.EventsPublished.WithLabelValues(metricLabel(ev.Type())).Inc()

	if len(subs) == 0 {
		d.logger.Debug("no subscribers", "event_type", ev.Type())
		return nil
	}
	d.logger.Debug("publishing", "event_type", ev.Type(), "subscribers", len(subs), "depth", depth)

	start := time.Now()
	hctx := withDepth(ctx, depth+1)
	for _, s := range subs {
		d.invoke(hctx, s, ev)
	}
	metrics.DispatchDuration.WithLabelValues(metricLabel(ev.Type())).Observe(time.Since(start).Seconds())
	return nil
}

func (d *Dispatcher) invoke(ctx context.Context, s *Subscription, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanics.WithLabelValues(metricLabel(ev.Type())).Inc()
			d.logger.Error("subscriber panicked",
				"event_type", ev.Type(),
				"event_id", ev.ID(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.handler.Handle(ctx, ev)
}

// Exclusive runs fn while no dispatch is in progress, so fn may safely read
// processor state from another goroutine. When ctx already belongs to a
// dispatch, fn runs immediately.
func (d *Dispatcher) Exclusive(ctx context.Context, fn func()) {
	if ctx != nil && depthOf(ctx) > 0 {
		fn()
		return
	}
	d.lockDispatch("")
	defer d.dispatchMu.Unlock()
	fn()
}

// lockDispatch acquires dispatchMu. A handler that publishes with a fresh
// context instead of its own waits here forever; the warning makes that
// visible.
func (d *Dispatcher) lockDispatch(eventType string) {
	if d.dispatchMu.TryLock() {
		return
	}
	warn := time.AfterFunc(d.lockWarn, func() {
		d.logger.Warn("still waiting for dispatch lock; a handler may be publishing without the ctx it was given",
			"event_type", eventType,
			"waited", d.lockWarn,
		)
	})
	d.dispatchMu.Lock()
	warn.Stop()
}

// History returns a copy of every recorded event in publish order.
func (d *Dispatcher) History() []event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Event, len(d.history))
	copy(out, d.history)
	return out
}

// ClearHistory drops all recorded events. Subscriptions are untouched.
func (d *Dispatcher) ClearHistory() {
	d.mu.Lock()
	n := len(d.history)
	d.history = nil
	d.mu.Unlock()
	d.logger.Info("event history cleared", "events", n)
}

// SubscriberCount returns the number of registrations for eventType, or the
// total across all types when eventType is empty.
func (d *Dispatcher) SubscriberCount(eventType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if eventType != "" {
		return len(d.subscribers[eventType])
	}
	total := 0
	for _, subs := range d.subscribers {
		total += len(subs)
	}
	return total
}

// Now returns the dispatcher clock's current time.
func (d *Dispatcher) Now() time.Time { return d.now() }

// otherLabel stands in for event types outside event.Catalog so clients
// cannot grow metric cardinality.
const otherLabel = "other"

func metricLabel(typ string) string {
	if event.Known(typ) {
		return typ
	}
	return otherLabel
}

type depthKey struct{}

func depthOf(ctx context.Context) int {
	n, _ := ctx.Value(depthKey{}).(int)
	return n
}

func withDepth(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, depthKey{}, n)
}
