package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ label string }

func (*testEvent) isEvent() {}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for _, label := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(&testEvent{label: label}))
	}

	for _, want := range []string{"a", "b", "c"} {
		ev, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, ev.(*testEvent).label)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "queue should be empty")
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()
	_, ok := q.TryDequeue()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_Closed(t *testing.T) {
	q := newEventQueue()
	assert.False(t, q.Closed())

	// A coalesced leftover signal leaves the queue empty but open;
	// emptiness alone must not read as closure.
	require.True(t, q.Enqueue(&testEvent{label: "a"}))
	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Closed())

	q.Close()
	assert.True(t, q.Closed())
}

func TestEventQueue_EnqueueAfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()
	assert.False(t, q.Enqueue(&testEvent{label: "late"}))
}

func TestEventQueue_CloseIsIdempotent(t *testing.T) {
	q := newEventQueue()
	assert.NotPanics(t, func() {
		q.Close()
		q.Close()
	})
}

func TestEventQueue_WaitSignaled(t *testing.T) {
	q := newEventQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(&testEvent{label: "x"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait was not signaled by Enqueue")
	}
}

func TestEventQueue_WaitWokenByClose(t *testing.T) {
	q := newEventQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait was not woken by Close")
	}
}

func TestEventQueue_DrainAfterClose(t *testing.T) {
	q := newEventQueue()
	require.True(t, q.Enqueue(&testEvent{label: "a"}))
	q.Close()

	// Events enqueued before the close still drain.
	ev, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "a", ev.(*testEvent).label)
}
