package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates rejected configuration (e.g. overlap >= window size).
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingUnavailable indicates the embedding service failed or timed out.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRebuildInProgress is returned when a rebuild is requested while another runs.
	ErrRebuildInProgress = errors.New("index rebuild already in progress")

	// ErrNoCitableEvidence marks a context bundle with no resolvable evidence.
	ErrNoCitableEvidence = errors.New("no citable evidence")

	// ErrNotFound indicates a missing document or session.
	ErrNotFound = errors.New("not found")

	// ErrEmptyInput is returned for a blank query, message or claim.
	ErrEmptyInput = errors.New("empty input")
)

// DimensionMismatchError carries both sides of a dimension mismatch.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: index expects %d, got %d", ErrDimensionMismatch, e.Expected, e.Got)
}

// Is lets errors.Is match ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
