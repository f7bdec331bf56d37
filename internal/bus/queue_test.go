package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/gamestats/internal/bus"
	"github.com/gyaneshwarpardhi/gamestats/internal/event"
)

func TestQueue_DrainsOnClose(t *testing.T) {
	d := bus.New(quietLogger())
	var seen []int
	d.Subscribe("tick", bus.HandlerFunc(func(_ context.Context, ev event.Event) {
		seen = append(seen, ev.Int("n", -1))
	}))

	q := bus.NewQueue(d, 64, bus.PolicyBlock, quietLogger())
	for i := 0; i < 20; i++ {
		_, err := q.Submit(context.Background(), "tick", map[string]interface{}{"n": i})
		require.NoError(t, err)
	}
	q.Close()

	require.Len(t, seen, 20)
	for i, n := range seen {
		assert.Equal(t, i, n)
	}
	assert.Len(t, d.History(), 20)

	_, err := q.Submit(context.Background(), "tick", nil)
	assert.ErrorIs(t, err, bus.ErrQueueClosed)
	q.Close()
}

func TestQueue_RejectWhenFull(t *testing.T) {
	d := bus.New(quietLogger())
	started := make(chan struct{})
	release := make(chan struct{})
	d.Subscribe("slow", bus.HandlerFunc(func(context.Context, event.Event) {
		started <- struct{}{}
		<-release
	}))

	q := bus.NewQueue(d, 1, bus.PolicyReject, quietLogger())
	_, err := q.Submit(context.Background(), "slow", nil)
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch loop did not pick up the first event")
	}

	_, err = q.Submit(context.Background(), "fast", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())
	assert.InDelta(t, 1.0, q.Utilization(), 1e-9)

	_, err = q.Submit(context.Background(), "fast", nil)
	assert.ErrorIs(t, err, bus.ErrQueueFull)

	close(release)
	q.Close()
	assert.Len(t, d.History(), 2)
}

func TestQueue_BlockHonoursContext(t *testing.T) {
	d := bus.New(quietLogger())
	started := make(chan struct{})
	release := make(chan struct{})
	d.Subscribe("slow", bus.HandlerFunc(func(context.Context, event.Event) {
		started <- struct{}{}
		<-release
	}))

	q := bus.NewQueue(d, 1, bus.PolicyBlock, quietLogger())
	_, err := q.Submit(context.Background(), "slow", nil)
	require.NoError(t, err)
	<-started
	_, err = q.Submit(context.Background(), "filler", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Submit(ctx, "blocked", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	q.Close()
	assert.Len(t, d.History(), 2)
}

func TestQueue_Defaults(t *testing.T) {
	d := bus.New(quietLogger())
	q := bus.NewQueue(d, 0, "bogus", nil)
	defer q.Close()
	assert.Equal(t, 1, q.Cap())
}
