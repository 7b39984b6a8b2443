package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascade-build/cascade/internal/asset"
)

// gatedProvider serves fixed content, optionally parking each fetch on
// a gate channel until the test releases it.
type gatedProvider struct {
	mu      sync.Mutex
	content map[asset.ID]string
	gate    chan struct{}
	fetches int
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{content: make(map[asset.ID]string)}
}

func (p *gatedProvider) put(id asset.ID, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content[id] = content
}

func (p *gatedProvider) close() (release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	gate := make(chan struct{})
	p.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

func (p *gatedProvider) fetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

func (p *gatedProvider) Fetch(ctx context.Context, id asset.ID) (*asset.Asset, error) {
	p.mu.Lock()
	p.fetches++
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-gate:
		}
	}

	p.mu.Lock()
	content, ok := p.content[id]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no content for %s", id)
	}
	return asset.FromString(id, content), nil
}

func TestCancelableLoad_Delivers(t *testing.T) {
	id := asset.NewID("app", "a.txt")
	provider := newGatedProvider()
	provider.put(id, "hello")

	got := make(chan *asset.Asset, 1)
	l := newCancelableLoad()
	l.Start(context.Background(), provider, id, func(a *asset.Asset, err error) {
		require.NoError(t, err)
		got <- a
	})

	select {
	case a := <-got:
		assert.Equal(t, "hello", a.Text())
	case <-time.After(time.Second):
		t.Fatal("load did not deliver")
	}
}

func TestCancelableLoad_DeliversError(t *testing.T) {
	id := asset.NewID("app", "missing.txt")
	provider := newGatedProvider()

	got := make(chan error, 1)
	l := newCancelableLoad()
	l.Start(context.Background(), provider, id, func(a *asset.Asset, err error) {
		got <- err
	})

	select {
	case err := <-got:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("load did not deliver")
	}
}

func TestCancelableLoad_CancelSuppressesDelivery(t *testing.T) {
	id := asset.NewID("app", "a.txt")
	provider := newGatedProvider()
	provider.put(id, "hello")
	release := provider.close()

	delivered := make(chan struct{}, 1)
	l := newCancelableLoad()
	l.Start(context.Background(), provider, id, func(a *asset.Asset, err error) {
		delivered <- struct{}{}
	})

	// Cancel while the fetch is parked on the gate, then let it finish.
	l.Cancel()
	assert.True(t, l.Cancelled())
	release()

	select {
	case <-delivered:
		t.Fatal("delivery happened after Cancel returned")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancelableLoad_CancelBeforeStart(t *testing.T) {
	id := asset.NewID("app", "a.txt")
	provider := newGatedProvider()
	provider.put(id, "hello")

	l := newCancelableLoad()
	l.Cancel()

	delivered := make(chan struct{}, 1)
	l.Start(context.Background(), provider, id, func(a *asset.Asset, err error) {
		delivered <- struct{}{}
	})

	select {
	case <-delivered:
		t.Fatal("cancelled load still started")
	case <-time.After(100 * time.Millisecond):
	}
	// A cancelled load never fetches at all.
	assert.Equal(t, 0, provider.fetchCount())
}

func TestCancelableLoad_CancelIsIdempotent(t *testing.T) {
	l := newCancelableLoad()
	assert.NotPanics(t, func() {
		l.Cancel()
		l.Cancel()
	})
}

func TestCancelableLoad_CancelPropagatesContext(t *testing.T) {
	id := asset.NewID("app", "a.txt")
	provider := newGatedProvider()
	provider.put(id, "hello")
	// Gate with no release: only context cancellation can unblock the
	// fetch goroutine.
	_ = provider.close()

	l := newCancelableLoad()
	l.Start(context.Background(), provider, id, func(a *asset.Asset, err error) {})

	// Let the fetch park on the gate, then cancel; the fetch context
	// unblocks it and the goroutine exits without delivering.
	time.Sleep(10 * time.Millisecond)
	l.Cancel()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, provider.fetchCount())
}
