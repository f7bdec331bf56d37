package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gyaneshwarpardhi/gamestats/internal/event"
	"github.com/gyaneshwarpardhi/gamestats/internal/metrics"
)

var (
	ErrQueueFull   = errors.New("bus: dispatch queue full")
	ErrQueueClosed = errors.New("bus: dispatch queue closed")
)

// FullPolicy decides what Submit does when the queue is at capacity.
type FullPolicy string

const (
	PolicyReject FullPolicy = "reject"
	PolicyBlock  FullPolicy = "block"
)

// Queue feeds a Dispatcher from a single loop goroutine through a bounded
// channel. Producers on other goroutines enqueue and return immediately;
// events are dispatched in enqueue order. Close drains everything already
// enqueued before returning.
type Queue struct {
	d      *Dispatcher
	jobs   chan event.Event
	policy FullPolicy
	logger *slog.Logger

	mu     sync.RWMutex // guards closed against sends on a closed channel
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts the dispatch loop. capacity below 1 is raised to 1 and an
// unknown policy falls back to PolicyReject.
func NewQueue(d *Dispatcher, capacity int, policy FullPolicy, logger *slog.Logger) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	if policy != PolicyBlock {
		policy = PolicyReject
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		d:      d,
		jobs:   make(chan event.Event, capacity),
		policy: policy,
		logger: logger.With("component", "queue"),
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run()
	}()
	return q
}

func (q *Queue) run() {
	for ev := range q.jobs {
		if err := q.d.Dispatch(context.Background(), ev); err != nil {
			q.logger.Error("queued dispatch failed", "event_type", ev.Type(), "err", err)
		}
		metrics.QueueUtilization.Set(q.Utilization())
	}
}

// Submit timestamps an event now and enqueues it. With PolicyBlock it waits
// for room or for ctx to end; with PolicyReject it fails fast with ErrQueueFull.
func (q *Queue) Submit(ctx context.Context, eventType string, payload map[string]interface{}) (event.Event, error) {
	ev := event.NewAt(eventType, payload, q.d.Now())

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.EventsDropped.Inc()
		return ev, ErrQueueClosed
	}

	if q.policy == PolicyBlock {
		select {
		case q.jobs <- ev:
		case <-ctx.Done():
			metrics.EventsDropped.Inc()
			return ev, fmt.Errorf("enqueue %s: %w", eventType, ctx.Err())
		}
	} else {
		select {
		case q.jobs <- ev:
		default:
			metrics.EventsDropped.Inc()
			return ev, fmt.Errorf("enqueue %s (capacity %d): %w", eventType, cap(q.jobs), ErrQueueFull)
		}
	}
	metrics.EventsEnqueued.Inc()
	metrics.QueueUtilization.Set(q.Utilization())
	return ev, nil
}

// Close stops accepting events and waits until every queued event is dispatched.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("dispatch queue drained")
}

// Len returns how many events are waiting.
func (q *Queue) Len() int { return len(q.jobs) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.jobs) }

// Utilization returns Len/Cap in the range 0–1.
func (q *Queue) Utilization() float64 {
	return float64(len(q.jobs)) / float64(cap(q.jobs))
}
