// Package engine implements the per-package build cascade: an ordered
// pipeline of phases that turns source assets into derived assets,
// recomputing only what a source change invalidates.
//
// The central type is Cascade. Each cascade is a single-writer actor:
// external callers enqueue events (source updates, transformer
// configuration changes, asset requests) and a single Run goroutine
// processes them in FIFO order. All mutation of the cascade's state
// (source map, in-flight loads, pending requests, phase bookkeeping)
// happens in that goroutine, so no evaluation step ever races another.
//
// "Concurrency" in this design means that many transform executions are
// logically independent and interleaved: transformer code runs on its
// own goroutine against immutable snapshots, and its results re-enter
// the cascade as events. A result from a superseded run is discarded by
// a monotonic run sequence check before it can touch any node.
//
// Phases pass through every input they do not overwrite, so the last
// phase's output set is always the full current asset universe for the
// package, and is the externally visible set served by GetAssetNode and
// GetAllAssets.
package engine
