package bus_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/gamestats/internal/bus"
	"github.com/gyaneshwarpardhi/gamestats/internal/event"
	"github.com/gyaneshwarpardhi/gamestats/internal/metrics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder appends its name to a shared log on every event.
type recorder struct {
	name string
	log  *[]string
}

func (r *recorder) Handle(_ context.Context, _ event.Event) {
	*r.log = append(*r.log, r.name)
}

type panicker struct{}

func (panicker) Handle(context.Context, event.Event) { panic("boom") }

func TestPublish_RegistrationOrder(t *testing.T) {
	d := bus.New(quietLogger())
	var calls []string
	a := &recorder{name: "A", log: &calls}
	b := &recorder{name: "B", log: &calls}
	c := &recorder{name: "C", log: &calls}
	d.Subscribe("ping", a)
	d.Subscribe("ping", b)
	d.Subscribe("ping", c)

	require.NoError(t, d.Publish(context.Background(), "ping", nil))
	assert.Equal(t, []string{"A", "B", "C"}, calls)

	calls = calls[:0]
	assert.True(t, d.Unsubscribe("ping", b))
	require.NoError(t, d.Publish(context.Background(), "ping", nil))
	assert.Equal(t, []string{"A", "C"}, calls)
}

func TestPublish_NoDeduplication(t *testing.T) {
	d := bus.New(quietLogger())
	var calls []string
	a := &recorder{name: "A", log: &calls}
	d.Subscribe("ping", a)
	d.Subscribe("ping", a)

	require.NoError(t, d.Publish(context.Background(), "ping", nil))
	assert.Equal(t, []string{"A", "A"}, calls)

	// Unsubscribe removes only the first registration.
	assert.True(t, d.Unsubscribe("ping", a))
	assert.Equal(t, 1, d.SubscriberCount("ping"))
}

func TestPublish_PanicIsolation(t *testing.T) {
	d := bus.New(quietLogger())
	var calls []string
	d.Subscribe("ping", panicker{})
	d.Subscribe("ping", &recorder{name: "B", log: &calls})
	d.Subscribe("ping", &recorder{name: "C", log: &calls})

	require.NotPanics(t, func() {
		require.NoError(t, d.Publish(context.Background(), "ping", map[string]interface{}{"n": 1}))
	})
	assert.Equal(t, []string{"B", "C"}, calls)

	hist := d.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "ping", hist[0].Type())
	assert.Equal(t, 1, hist[0].Int("n", 0))
}

func TestPublish_HistoryCountsEveryCall(t *testing.T) {
	d := bus.New(quietLogger())
	d.Subscribe("b", panicker{})
	types := []string{"a", "b", "c", "b", "a"}
	for _, typ := range types {
		require.NoError(t, d.Publish(context.Background(), typ, nil))
	}
	hist := d.History()
	require.Len(t, hist, len(types))
	for i, ev := range hist {
		assert.Equal(t, types[i], ev.Type())
	}
}

func TestHistory_ReturnsCopy(t *testing.T) {
	d := bus.New(quietLogger())
	require.NoError(t, d.Publish(context.Background(), "a", nil))

	hist := d.History()
	hist[0] = event.New("tampered", nil)
	_ = append(hist, event.New("extra", nil))

	again := d.History()
	require.Len(t, again, 1)
	assert.Equal(t, "a", again[0].Type())
}

func TestClearHistory_KeepsSubscriptions(t *testing.T) {
	d := bus.New(quietLogger())
	var calls []string
	d.Subscribe("a", &recorder{name: "A", log: &calls})
	require.NoError(t, d.Publish(context.Background(), "a", nil))

	d.ClearHistory()
	assert.Empty(t, d.History())
	assert.Equal(t, 1, d.SubscriberCount("a"))

	require.NoError(t, d.Publish(context.Background(), "a", nil))
	assert.Len(t, d.History(), 1)
	assert.Equal(t, []string{"A", "A"}, calls)
}

func TestSubscriberCount(t *testing.T) {
	d := bus.New(quietLogger())
	var calls []string
	d.Subscribe("a", &recorder{name: "A", log: &calls})
	d.Subscribe("a", &recorder{name: "B", log: &calls})
	d.Subscribe("b", &recorder{name: "C", log: &calls})

	assert.Equal(t, 2, d.SubscriberCount("a"))
	assert.Equal(t, 1, d.SubscriberCount("b"))
	assert.Equal(t, 0, d.SubscriberCount("missing"))
	assert.Equal(t, 3, d.SubscriberCount(""))
}

func TestUnsubscribe_NotFound(t *testing.T) {
	d := bus.New(quietLogger())
	var calls []string
	assert.False(t, d.Unsubscribe("a", &recorder{name: "A", log: &calls}))

	// Closures are not comparable and never match by value.
	fn := bus.HandlerFunc(func(context.Context, event.Event) {})
	d.Subscribe("a", fn)
	assert.False(t, d.Unsubscribe("a", fn))
	assert.Equal(t, 1, d.SubscriberCount("a"))
}

func TestSubscription_Unsubscribe(t *testing.T) {
	d := bus.New(quietLogger())
	n := 0
	sub := d.Subscribe("a", bus.HandlerFunc(func(context.Context, event.Event) { n++ }))
	assert.Equal(t, "a", sub.EventType())

	require.NoError(t, d.Publish(context.Background(), "a", nil))
	assert.True(t, sub.Unsubscribe())
	assert.False(t, sub.Unsubscribe())
	require.NoError(t, d.Publish(context.Background(), "a", nil))
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, d.SubscriberCount(""))

	var nilSub *bus.Subscription
	assert.False(t, nilSub.Unsubscribe())
}

func TestPublish_SnapshotAtDispatchStart(t *testing.T) {
	d := bus.New(quietLogger())
	var calls []string
	late := &recorder{name: "late", log: &calls}
	var bSub *bus.Subscription

	d.Subscribe("a", bus.HandlerFunc(func(context.Context, event.Event) {
		calls = append(calls, "A")
		d.Subscribe("a", late)
		bSub.Unsubscribe()
	}))
	bSub = d.Subscribe("a", &recorder{name: "B", log: &calls})

	require.NoError(t, d.Publish(context.Background(), "a", nil))
	// B was removed mid-dispatch but still runs; late was added but does not.
	assert.Equal(t, []string{"A", "B"}, calls)

	calls = calls[:0]
	require.NoError(t, d.Publish(context.Background(), "a", nil))
	assert.Equal(t, []string{"A", "late"}, calls)
}

func TestPublish_NestedIsDepthFirst(t *testing.T) {
	d := bus.New(quietLogger())
	var calls []string
	d.Subscribe("outer", bus.HandlerFunc(func(ctx context.Context, ev event.Event) {
		calls = append(calls, "outer:before")
		require.NoError(t, d.Publish(ctx, "inner", nil))
		calls = append(calls, "outer:after")
	}))
	d.Subscribe("outer", &recorder{name: "outer:second", log: &calls})
	d.Subscribe("inner", &recorder{name: "inner", log: &calls})

	require.NoError(t, d.Publish(context.Background(), "outer", nil))
	assert.Equal(t, []string{"outer:before", "inner", "outer:after", "outer:second"}, calls)

	hist := d.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "outer", hist[0].Type())
	assert.Equal(t, "inner", hist[1].Type())
}

func TestPublish_SelfTriggeringEventIsBounded(t *testing.T) {
	d := bus.New(quietLogger(), bus.WithMaxDepth(4))
	var errs []error
	d.Subscribe("loop", bus.HandlerFunc(func(ctx context.Context, ev event.Event) {
		if err := d.Publish(ctx, "loop", nil); err != nil {
			errs = append(errs, err)
		}
	}))

	require.NoError(t, d.Publish(context.Background(), "loop", nil))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], bus.ErrMaxDepth)
	// Depths 0..3 were recorded; the fifth publish was rejected.
	assert.Len(t, d.History(), 4)
}

func TestPublish_UsesClock(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d := bus.New(quietLogger(), bus.WithClock(func() time.Time { return t0 }))
	require.NoError(t, d.Publish(context.Background(), "a", nil))
	assert.True(t, d.History()[0].Timestamp().Equal(t0))
	assert.True(t, d.Now().Equal(t0))
}

func TestPublish_ConcurrentProducers(t *testing.T) {
	d := bus.New(quietLogger())
	count := 0
	d.Subscribe("tick", bus.HandlerFunc(func(context.Context, event.Event) { count++ }))

	const producers, perProducer = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				_ = d.Publish(context.Background(), "tick", nil)
				if j%10 == 0 {
					sub := d.Subscribe("other", bus.HandlerFunc(func(context.Context, event.Event) {}))
					sub.Unsubscribe()
				}
			}
		}()
	}
	wg.Wait()

	d.Exclusive(context.Background(), func() {
		assert.Equal(t, producers*perProducer, count)
	})
	assert.Len(t, d.History(), producers*perProducer)
}

func TestExclusive_InsideHandlerRunsInline(t *testing.T) {
	d := bus.New(quietLogger())
	ran := false
	d.Subscribe("a", bus.HandlerFunc(func(ctx context.Context, ev event.Event) {
		d.Exclusive(ctx, func() { ran = true })
	}))
	require.NoError(t, d.Publish(context.Background(), "a", nil))
	assert.True(t, ran)
}

func TestPublish_UnknownTypesShareMetricLabel(t *testing.T) {
	d := bus.New(quietLogger())
	d.Subscribe("custom_0", panicker{})

	published := metrics.EventsPublished.WithLabelValues("other")
	panics := metrics.HandlerPanics.WithLabelValues("other")
	door := metrics.EventsPublished.WithLabelValues(event.DoorOpened)
	publishedBefore := testutil.ToFloat64(published)
	panicsBefore := testutil.ToFloat64(panics)
	doorBefore := testutil.ToFloat64(door)

	for i := 0; i < 50; i++ {
		require.NoError(t, d.Publish(context.Background(), fmt.Sprintf("custom_%d", i), nil))
	}
	require.NoError(t, d.Publish(context.Background(), event.DoorOpened, nil))

	assert.Equal(t, publishedBefore+50, testutil.ToFloat64(published))
	assert.Equal(t, panicsBefore+1, testutil.ToFloat64(panics))
	assert.Equal(t, doorBefore+1, testutil.ToFloat64(door))
	assert.LessOrEqual(t, testutil.CollectAndCount(metrics.EventsPublished), len(event.Catalog)+1)
	assert.LessOrEqual(t, testutil.CollectAndCount(metrics.DispatchDuration), len(event.Catalog)+1)
}

// syncBuffer is a bytes.Buffer safe for a logger and a test reading together.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPublish_WarnsWhileWaitingForDispatchLock(t *testing.T) {
	var logs syncBuffer
	d := bus.New(slog.New(slog.NewTextHandler(&logs, nil)), bus.WithLockWarnAfter(10*time.Millisecond))

	held := make(chan struct{})
	release := make(chan struct{})
	go d.Exclusive(context.Background(), func() {
		close(held)
		<-release
	})
	<-held

	done := make(chan error, 1)
	go func() { done <- d.Publish(context.Background(), event.DoorOpened, nil) }()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "still waiting for dispatch lock")
	}, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, logs.String(), "event_type=door_opened")

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("publish did not complete after the lock was released")
	}
	assert.Len(t, d.History(), 1)
}
