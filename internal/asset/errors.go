package asset

import (
	"errors"
	"fmt"
)

// NotFoundError reports that an asset ID is not (or no longer)
// produced. It is returned by Node.WhenAvailable when the node is
// removed before becoming available, and by lookups for IDs that no
// settled build produces.
//
// Readers that held a node when it was removed should retry their
// lookup: the same ID may be regenerated by a different producer under
// a fresh node instance.
type NotFoundError struct {
	ID ID
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("asset %s not found", e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
