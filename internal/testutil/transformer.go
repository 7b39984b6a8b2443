package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cascade-build/cascade/internal/asset"
	"github.com/cascade-build/cascade/internal/engine"
)

// FailingTransformer matches assets with the given extension and always
// fails with Err. Outputs optionally declares output paths up front, so
// tests can exercise declared-but-never-produced IDs.
type FailingTransformer struct {
	Match   string
	Err     error
	Outputs []string
}

func (t *FailingTransformer) Name() string {
	return fmt.Sprintf("failing(%s)", t.Match)
}

func (t *FailingTransformer) CanTransform(id asset.ID) bool {
	return id.Extension() == t.Match
}

func (t *FailingTransformer) DeclareOutputs(primary asset.ID) []asset.ID {
	ids := make([]asset.ID, 0, len(t.Outputs))
	for _, out := range t.Outputs {
		ids = append(ids, asset.NewID(primary.Package, out))
	}
	return ids
}

func (t *FailingTransformer) Apply(ctx context.Context, tc *engine.TransformContext) error {
	return t.Err
}

// EmitTransformer matches assets with extension Match and emits a fixed
// set of output paths (in the primary's package) with the primary's
// content. Useful for provoking output collisions: two instances with
// overlapping Emit sets claim the same IDs.
type EmitTransformer struct {
	Label string
	Match string
	Emit  []string

	mu   sync.Mutex
	runs int
}

func (t *EmitTransformer) Name() string {
	return fmt.Sprintf("emit(%s)", t.Label)
}

func (t *EmitTransformer) CanTransform(id asset.ID) bool {
	return id.Extension() == t.Match
}

func (t *EmitTransformer) Apply(ctx context.Context, tc *engine.TransformContext) error {
	t.mu.Lock()
	t.runs++
	t.mu.Unlock()
	p := tc.Primary()
	for _, out := range t.Emit {
		tc.EmitBytes(asset.NewID(p.ID().Package, out), p.Bytes())
	}
	return nil
}

// Runs returns how many times Apply has completed the counter bump.
func (t *EmitTransformer) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

// DepTransformer matches assets with extension Match and appends the
// content of a fixed secondary input. A missing secondary is tolerated:
// the transform still succeeds and the read is recorded, so the job
// re-runs when the dependency appears or changes.
type DepTransformer struct {
	Match string
	Dep   string
}

func (t *DepTransformer) Name() string {
	return fmt.Sprintf("dep(%s+%s)", t.Match, t.Dep)
}

func (t *DepTransformer) CanTransform(id asset.ID) bool {
	return id.Extension() == t.Match
}

func (t *DepTransformer) Apply(ctx context.Context, tc *engine.TransformContext) error {
	p := tc.Primary()
	var sb strings.Builder
	sb.Write(p.Bytes())
	if dep, err := tc.Input(asset.NewID(p.ID().Package, t.Dep)); err == nil {
		sb.WriteString("+")
		sb.Write(dep.Bytes())
	}
	tc.EmitAsset(asset.FromString(p.ID().ChangeExtension(".out"), sb.String()))
	return nil
}
