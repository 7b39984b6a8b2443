package asset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_InitialStateDirty(t *testing.T) {
	ctrl := NewNode(NewID("app", "a.txt"), nil)
	assert.Equal(t, StateDirty, ctrl.Node().State())
	assert.Nil(t, ctrl.Node().Asset())
}

func TestNode_SetAvailable(t *testing.T) {
	id := NewID("app", "a.txt")
	ctrl := NewNode(id, nil)
	a := FromString(id, "hello")

	ctrl.SetAvailable(a)
	assert.Equal(t, StateAvailable, ctrl.Node().State())
	assert.Same(t, a, ctrl.Node().Asset())
}

func TestNode_SetDirty_ClearsAsset(t *testing.T) {
	id := NewID("app", "a.txt")
	ctrl := NewNode(id, nil)
	ctrl.SetAvailable(FromString(id, "hello"))

	ctrl.SetDirty()
	assert.Equal(t, StateDirty, ctrl.Node().State())
	assert.Nil(t, ctrl.Node().Asset())
}

func TestNode_SetDirty_NoOpWhenDirty(t *testing.T) {
	ctrl := NewNode(NewID("app", "a.txt"), nil)
	assert.NotPanics(t, func() {
		ctrl.SetDirty()
		ctrl.SetDirty()
	})
	assert.Equal(t, StateDirty, ctrl.Node().State())
}

func TestNode_SetAvailable_PanicsUnlessDirty(t *testing.T) {
	id := NewID("app", "a.txt")
	ctrl := NewNode(id, nil)
	ctrl.SetAvailable(FromString(id, "one"))

	assert.Panics(t, func() {
		ctrl.SetAvailable(FromString(id, "two"))
	})
}

func TestNode_SetRemoved_Terminal(t *testing.T) {
	ctrl := NewNode(NewID("app", "a.txt"), nil)
	ctrl.SetRemoved()
	assert.Equal(t, StateRemoved, ctrl.Node().State())

	// Idempotent.
	assert.NotPanics(t, ctrl.SetRemoved)

	// No resurrection.
	assert.Panics(t, ctrl.SetDirty)
	assert.Panics(t, func() {
		ctrl.SetAvailable(FromString(NewID("app", "a.txt"), "x"))
	})
}

func TestNode_WhenAvailable_ReturnsImmediately(t *testing.T) {
	id := NewID("app", "a.txt")
	ctrl := NewNode(id, nil)
	ctrl.SetAvailable(FromString(id, "hello"))

	a, err := ctrl.Node().WhenAvailable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", a.Text())
}

func TestNode_WhenAvailable_WakesOnTransition(t *testing.T) {
	id := NewID("app", "a.txt")
	ctrl := NewNode(id, nil)

	got := make(chan *Asset, 1)
	go func() {
		a, err := ctrl.Node().WhenAvailable(context.Background())
		if err == nil {
			got <- a
		}
	}()

	// Let the waiter register on the broadcast channel.
	time.Sleep(10 * time.Millisecond)
	ctrl.SetAvailable(FromString(id, "hello"))

	select {
	case a := <-got:
		assert.Equal(t, "hello", a.Text())
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by SetAvailable")
	}
}

func TestNode_WhenAvailable_RemovedFailsNotFound(t *testing.T) {
	ctrl := NewNode(NewID("app", "a.txt"), nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.Node().WhenAvailable(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	ctrl.SetRemoved()

	select {
	case err := <-errCh:
		assert.True(t, IsNotFound(err))
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by SetRemoved")
	}
}

func TestNode_WhenAvailable_ContextCancel(t *testing.T) {
	ctrl := NewNode(NewID("app", "a.txt"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ctrl.Node().WhenAvailable(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNode_WhenStateChanges_ObservesNextTransition(t *testing.T) {
	id := NewID("app", "a.txt")
	ctrl := NewNode(id, nil)

	got := make(chan State, 1)
	go func() {
		st, err := ctrl.Node().WhenStateChanges(context.Background())
		if err == nil {
			got <- st
		}
	}()

	time.Sleep(10 * time.Millisecond)
	ctrl.SetAvailable(FromString(id, "x"))

	select {
	case st := <-got:
		assert.Equal(t, StateAvailable, st)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestNode_Force_InvokesHookOnce(t *testing.T) {
	calls := 0
	ctrl := NewNode(NewID("app", "a.txt"), func() { calls++ })

	n := ctrl.Node()
	assert.False(t, n.Forced())
	n.Force()
	n.Force()
	n.Force()
	assert.True(t, n.Forced())
	assert.Equal(t, 1, calls)
}

func TestNode_Force_NilHook(t *testing.T) {
	ctrl := NewNode(NewID("app", "a.txt"), nil)
	assert.NotPanics(t, ctrl.Node().Force)
}

func TestAsset_ContentIsCopied(t *testing.T) {
	id := NewID("app", "a.txt")
	content := []byte("hello")
	a := New(id, content)
	content[0] = 'X'
	assert.Equal(t, "hello", a.Text())
}
