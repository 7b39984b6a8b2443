// Package asset defines the value types that flow through the build
// graph: immutable IDs, immutable content snapshots, and the mutable
// AssetNode slot that tracks one ID's availability across recomputation.
//
// An ID identifies an asset by (package, path) independent of content.
// An Asset binds an ID to a frozen content snapshot; updating an asset
// means constructing a new Asset, never mutating an existing one.
//
// A Node is the stateful slot for one ID. It moves through three states:
//
//	DIRTY     content is being computed or is stale
//	AVAILABLE content is ready and valid
//	REMOVED   terminal; this ID is not currently produced
//
// All transitions are driven by the node's exclusive NodeController,
// which only the producing entity holds. Readers observe the node via
// State, WhenAvailable and WhenStateChanges.
package asset
