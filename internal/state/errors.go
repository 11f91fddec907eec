package state

import (
	"errors"
	"fmt"
)

var (
	// ErrPathNotFound is returned when a path segment does not resolve.
	ErrPathNotFound = errors.New("path not found")
	// ErrTypeMismatch is returned when a write does not match the declared dtype or shape.
	ErrTypeMismatch = errors.New("type mismatch")
)

func pathNotFound(path string) error {
	return fmt.Errorf("%w: %s", ErrPathNotFound, path)
}

// BoundsError describes an index that fell outside a collection. Stages report
// these through Store.ReportBounds and skip the offending item instead of
// failing the step.
type BoundsError struct {
	Path   string
	Index  int
	Len    int
	Reason string
}

func (e *BoundsError) Error() string {
	msg := fmt.Sprintf("index %d out of range [0,%d) at %s", e.Index, e.Len, e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
