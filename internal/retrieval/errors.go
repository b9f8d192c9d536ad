package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyIndex is returned when querying a context with no windows.
	ErrEmptyIndex = errors.New("index has no windows")

	// ErrLengthMismatch means the embedder returned a different number of
	// vectors than texts it was given.
	ErrLengthMismatch = errors.New("embedding count does not match input count")

	// ErrDimensionMismatch means two vectors that must be compared differ in size.
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
)

// EmbeddingError wraps any failure of the embedder, including a malformed result.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }
