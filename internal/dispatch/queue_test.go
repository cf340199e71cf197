package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actsync/internal/action"
)

func TestActionQueue_FIFO(t *testing.T) {
	q := newActionQueue()

	for _, id := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(action.Action{ID: id}))
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.ID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestActionQueue_SignalCoalesces(t *testing.T) {
	q := newActionQueue()
	q.Enqueue(action.Action{ID: "1"})
	q.Enqueue(action.Action{ID: "2"})

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestActionQueue_Close(t *testing.T) {
	q := newActionQueue()
	q.Enqueue(action.Action{ID: "1"})
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(action.Action{ID: "2"}))
	assert.False(t, q.Drained(), "one action still queued")

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())

	<-q.Wait() // pending signal from the first Enqueue
	_, open := <-q.Wait()
	assert.False(t, open, "signal channel closed")
}

func TestActionQueue_ConcurrentEnqueue(t *testing.T) {
	q := newActionQueue()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(action.Action{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, q.Len())
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	resumed := NewClockAt(41)
	assert.Equal(t, int64(42), resumed.Next())
}
