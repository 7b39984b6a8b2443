// Package testutil provides shared helpers for engine and graph tests:
// an in-memory content provider with optional per-fetch gating, and
// transformers with controllable behavior.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/cascade-build/cascade/internal/asset"
)

// MapProvider serves asset content from an in-memory map.
//
// A gate channel can be installed per ID to hold a fetch open until the
// test releases it, which is how cancellation and supersede races are
// exercised deterministically.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type MapProvider struct {
	mu      sync.Mutex
	content map[asset.ID][]byte
	gates   map[asset.ID]chan struct{}
	fetches map[asset.ID]int
}

// NewMapProvider creates an empty provider.
func NewMapProvider() *MapProvider {
	return &MapProvider{
		content: make(map[asset.ID][]byte),
		gates:   make(map[asset.ID]chan struct{}),
		fetches: make(map[asset.ID]int),
	}
}

// Put installs or replaces the content served for id.
func (p *MapProvider) Put(id asset.ID, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content[id] = []byte(content)
}

// Delete removes the content for id; subsequent fetches fail.
func (p *MapProvider) Delete(id asset.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.content, id)
}

// Gate installs a gate for id. Every subsequent fetch of id blocks
// until the returned release function is called (or the fetch context
// is cancelled).
func (p *MapProvider) Gate(id asset.ID) (release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	gate := make(chan struct{})
	p.gates[id] = gate
	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

// Fetches returns how many times id has been fetched.
func (p *MapProvider) Fetches(id asset.ID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches[id]
}

// Fetch implements engine.ContentProvider.
func (p *MapProvider) Fetch(ctx context.Context, id asset.ID) (*asset.Asset, error) {
	p.mu.Lock()
	p.fetches[id]++
	gate := p.gates[id]
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
	return asset.New(id, content), nil
}
