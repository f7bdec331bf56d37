package bus

import (
	"context"
	"reflect"

	"github.com/gyaneshwarpardhi/gamestats/internal/event"
)

// Handler receives events published for the types it subscribed to.
//
// ctx marks the call as running inside a dispatch. Handlers that publish
// derived events must pass this ctx back to Publish so the nested publish is
// dispatched depth-first without re-acquiring the dispatch lock. The ctx must
// not escape the handler.
type Handler interface {
	Handle(ctx context.Context, ev event.Event)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, ev event.Event)

func (f HandlerFunc) Handle(ctx context.Context, ev event.Event) { f(ctx, ev) }

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	d         *Dispatcher
	eventType string
	handler   Handler
}

// EventType returns the event type this subscription is registered for.
func (s *Subscription) EventType() string { return s.eventType }

// Unsubscribe removes exactly this registration. It reports false if the
// registration was already removed.
func (s *Subscription) Unsubscribe() bool {
	if s == nil || s.d == nil {
		return false
	}
	return s.d.remove(s.eventType, func(x *Subscription) bool { return x == s })
}

// sameHandler compares two handlers without panicking on non-comparable
// dynamic types such as HandlerFunc; those never match.
func sameHandler(a, b Handler) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
