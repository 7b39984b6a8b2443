package graph

import (
	"github.com/cascade-build/cascade/internal/asset"
)

// DependencyPolicy decides what flows across a dependency edge when the
// upstream package settles.
//
// Implementations must be safe for concurrent use: each upstream
// cascade invokes the policy from its own loop goroutine.
type DependencyPolicy interface {
	// Propagate returns the assets to push into dependent after
	// dependency settled with the given snapshot. settleErr is the
	// bundled error of the settled pass, nil on success. Returning nil
	// pushes nothing.
	Propagate(dependency, dependent string, assets []*asset.Asset, settleErr error) []*asset.Asset
}

// StaticDependencies is the default policy: a successful settlement
// pushes the full snapshot to every dependent; a failed pass pushes
// nothing, leaving dependents on the last good snapshot.
type StaticDependencies struct{}

func (StaticDependencies) Propagate(dependency, dependent string, assets []*asset.Asset, settleErr error) []*asset.Asset {
	if settleErr != nil {
		return nil
	}
	return assets
}
