package engine

import (
	"context"
	"sync"

	"github.com/cascade-build/cascade/internal/asset"
)

// ContentProvider supplies raw content for source assets. It is the
// cascade's external collaborator for I/O: Fetch may take arbitrarily
// long and must honor ctx cancellation when the caller loses interest.
type ContentProvider interface {
	Fetch(ctx context.Context, id asset.ID) (*asset.Asset, error)
}

// CancelableLoad wraps one in-flight asynchronous fetch of a source
// asset, revocable before it completes.
//
// Cancel is idempotent and guarantees the completion/error continuation
// is never invoked after it returns: the cancelled flag is consulted
// under the same mutex that guards delivery, not merely by dropping a
// reference to the handle.
type CancelableLoad struct {
	mu        sync.Mutex
	cancelled bool
	cancel    context.CancelFunc
}

// newCancelableLoad creates an idle handle. Start begins the fetch.
// Splitting construction from start lets the caller register the handle
// (e.g. in the cascade's loading map) before any continuation can fire.
func newCancelableLoad() *CancelableLoad {
	return &CancelableLoad{}
}

// Start begins fetching id from provider. When the fetch completes and
// the load has not been cancelled, deliver is invoked exactly once with
// the result. deliver runs on the fetch goroutine and must not block.
func (l *CancelableLoad) Start(ctx context.Context, provider ContentProvider, id asset.ID, deliver func(*asset.Asset, error)) {
	fetchCtx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	if l.cancelled {
		l.mu.Unlock()
		cancel()
		return
	}
	l.cancel = cancel
	l.mu.Unlock()

	go func() {
		a, err := provider.Fetch(fetchCtx, id)

		// Deliver under the mutex: once Cancel returns, no delivery
		// can happen.
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.cancelled {
			return
		}
		deliver(a, err)
	}()
}

// Cancel revokes the load. Idempotent; after Cancel returns, the
// continuation passed to Start will never be invoked.
func (l *CancelableLoad) Cancel() {
	l.mu.Lock()
	if l.cancelled {
		l.mu.Unlock()
		return
	}
	l.cancelled = true
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Cancelled reports whether Cancel has been called.
func (l *CancelableLoad) Cancelled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancelled
}
