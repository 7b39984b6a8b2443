package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cascade-build/cascade/internal/asset"
)

// ErrCascadeClosed is returned by cascade methods after Stop, or after
// the Run loop has exited.
var ErrCascadeClosed = errors.New("cascade closed")

// LoadError reports that the content provider failed to fetch a source
// asset. The source node is removed; a later UpdateSources for the same
// ID retries from scratch.
type LoadError struct {
	ID  asset.ID
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.ID, e.Err)
}

// Unwrap returns the provider's underlying error.
func (e *LoadError) Unwrap() error { return e.Err }

// CollisionError reports that two distinct transform instances within
// one phase declared the same output ID. Fatal to that ID, not to the
// rest of the build: the colliding output stays unavailable while both
// producers claim it.
type CollisionError struct {
	ID asset.ID

	// Transformers names the colliding producers, in claim order.
	Transformers []string
}

// Error implements the error interface.
func (e *CollisionError) Error() string {
	return fmt.Sprintf("output collision on %s: produced by %s", e.ID, strings.Join(e.Transformers, " and "))
}

// TransformError reports a transform's own failure, carrying the
// transform's error payload. The transform's outputs become unavailable
// until a new source or transformer update retries it.
type TransformError struct {
	Transformer string
	Primary     asset.ID
	Err         error
}

// Error implements the error interface.
func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s on %s: %v", e.Transformer, e.Primary, e.Err)
}

// Unwrap returns the transform's underlying error.
func (e *TransformError) Unwrap() error { return e.Err }

// AggregateError bundles multiple failures observed for the same build
// pass, in the order they occurred.
type AggregateError struct {
	Errors []error
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d build errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// IsLoadError reports whether err is (or wraps) a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// IsCollision reports whether err is (or wraps) a CollisionError.
func IsCollision(err error) bool {
	var ce *CollisionError
	return errors.As(err, &ce)
}

// IsTransformError reports whether err is (or wraps) a TransformError.
func IsTransformError(err error) bool {
	var te *TransformError
	return errors.As(err, &te)
}

// bundleErrors collapses a pass's accumulated errors: nil for none, the
// error itself for one, an ordered AggregateError otherwise.
func bundleErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		bundled := make([]error, len(errs))
		copy(bundled, errs)
		return &AggregateError{Errors: bundled}
	}
}
