package cache

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache store is closed")

// DimensionMismatchError reports an attempt to store an embedding whose
// dimensionality disagrees with what the model already has on record.
type DimensionMismatchError struct {
	Model    string
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch for model %q: have %d, got %d", e.Model, e.Expected, e.Got)
}

// Is implements errors.Is support for DimensionMismatchError.
func (e *DimensionMismatchError) Is(target error) bool {
	_, ok := target.(*DimensionMismatchError)
	return ok
}
