package rigid

import "errors"

var (
	// ErrInvalidShape reports a non-convex, degenerate, or non-manifold hull
	// descriptor at construction time.
	ErrInvalidShape = errors.New("rigid: invalid shape")

	// ErrSingularMatrix reports a 3x3 inverse on a near-singular matrix.
	ErrSingularMatrix = errors.New("rigid: singular matrix")

	// ErrQueueOverflow reports an exhausted traversal ring buffer.
	ErrQueueOverflow = errors.New("rigid: queue overflow")

	// ErrEmptyPartition reports a tree build over an empty leaf range.
	ErrEmptyPartition = errors.New("rigid: empty partition")
)
