package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cascade-build/cascade/internal/asset"
)

// Transformer is a user-supplied pipeline stage instance. One
// transformer is applied once per primary input it consumes; each
// (transformer, primary) pair is an independent execution that can be
// invalidated and re-run when its inputs change.
//
// Transformer values are compared by interface equality when a phase's
// transformer set is reconciled, so implementations should be pointers
// (or otherwise comparable).
type Transformer interface {
	// Name identifies the transformer in errors, logs and reports.
	Name() string

	// CanTransform reports whether the transformer consumes id as a
	// primary input.
	CanTransform(id asset.ID) bool

	// Apply runs the transform. Inputs are read and outputs emitted
	// through tc; Apply runs on its own goroutine against immutable
	// snapshots and must not retain tc after returning.
	Apply(ctx context.Context, tc *TransformContext) error
}

// DeclaringTransformer announces its output IDs before running, which
// lets the phase detect collisions and compute pass-through without
// executing the transform.
type DeclaringTransformer interface {
	Transformer

	// DeclareOutputs returns the IDs the transformer will produce for
	// the given primary input.
	DeclareOutputs(primary asset.ID) []asset.ID
}

// LazyTransformer defers computation until a consumer forces one of its
// declared outputs. Declaration must be cheap: a lazy transformer's
// outputs exist as dirty nodes from declaration time, but Apply only
// runs once something forces them.
type LazyTransformer interface {
	DeclaringTransformer

	// Deferred reports whether computation should wait to be forced.
	Deferred() bool
}

// AggregateTransformer consumes multiple inputs at once. ClassifyPrimary
// routes each candidate input into a named group; one execution runs
// per group, seeing every member as its input set. Inputs with no
// classification pass through unmodified.
//
// For aggregate transformers ClassifyPrimary supersedes CanTransform.
type AggregateTransformer interface {
	Transformer

	// ClassifyPrimary returns the group key for id, or ok=false if the
	// input is not consumed by this transformer.
	ClassifyPrimary(id asset.ID) (group string, ok bool)
}

// LogEntry is one diagnostic entry reported by a running transform,
// surfaced on the cascade's log stream.
type LogEntry struct {
	Level       slog.Level
	Transformer string
	Asset       asset.ID
	Message     string
}

// TransformContext carries a single execution's inputs and collects its
// outputs and log entries. It is built by the phase engine from
// immutable snapshots taken when the execution starts, so transformer
// code never observes a half-updated graph.
type TransformContext struct {
	transformer string
	primary     *asset.Asset
	group       []*asset.Asset
	inputs      map[asset.ID]*asset.Asset

	outputs []*asset.Asset
	logs    []LogEntry
	read    map[asset.ID]struct{}
}

// Primary returns the primary input asset. For aggregate executions it
// is the first group member.
func (tc *TransformContext) Primary() *asset.Asset {
	return tc.primary
}

// Group returns all members of an aggregate execution's input group, in
// stable ID order. Nil for single-input executions.
func (tc *TransformContext) Group() []*asset.Asset {
	return tc.group
}

// Input returns a secondary input by ID. Only inputs that were
// AVAILABLE when the execution started are visible; reading an input
// records a dependency, so the execution is re-run when it changes.
func (tc *TransformContext) Input(id asset.ID) (*asset.Asset, error) {
	tc.read[id] = struct{}{}
	a, ok := tc.inputs[id]
	if !ok {
		return nil, &asset.NotFoundError{ID: id}
	}
	return a, nil
}

// EmitAsset adds an output asset. Emitting the primary input's own ID
// overwrites the pass-through copy (an update, not a collision).
func (tc *TransformContext) EmitAsset(a *asset.Asset) {
	tc.outputs = append(tc.outputs, a)
}

// EmitBytes is shorthand for EmitAsset(asset.New(id, content)).
func (tc *TransformContext) EmitBytes(id asset.ID, content []byte) {
	tc.outputs = append(tc.outputs, asset.New(id, content))
}

// Logf records a diagnostic entry attributed to this execution.
func (tc *TransformContext) Logf(level slog.Level, format string, args ...any) {
	var id asset.ID
	if tc.primary != nil {
		id = tc.primary.ID()
	}
	tc.logs = append(tc.logs, LogEntry{
		Level:       level,
		Transformer: tc.transformer,
		Asset:       id,
		Message:     fmt.Sprintf(format, args...),
	})
}

// Outputs returns the assets emitted so far. Exposed for transformer
// unit tests; the phase engine reads it after Apply returns.
func (tc *TransformContext) Outputs() []*asset.Asset {
	return tc.outputs
}

// Logs returns the entries recorded so far.
func (tc *TransformContext) Logs() []LogEntry {
	return tc.logs
}

// NewTestTransformContext builds a context for exercising a transformer
// directly in tests, outside any cascade. The first input is the
// primary; all inputs are visible to Input.
func NewTestTransformContext(name string, inputs ...*asset.Asset) *TransformContext {
	tc := &TransformContext{
		transformer: name,
		inputs:      make(map[asset.ID]*asset.Asset, len(inputs)),
		read:        make(map[asset.ID]struct{}),
	}
	for i, a := range inputs {
		if i == 0 {
			tc.primary = a
		}
		tc.inputs[a.ID()] = a
	}
	if len(inputs) > 1 {
		tc.group = inputs
	}
	return tc
}
