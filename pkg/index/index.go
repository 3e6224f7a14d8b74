package index

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the vector index cannot be reached. Queries
// degrade to sparse-only results when they see it.
var ErrUnavailable = errors.New("vector index unavailable")

// Hit is one nearest-neighbor match.
type Hit struct {
	ChunkID string
	Score   float64
}

// VectorIndex is the external similarity-search contract. Implementations
// must never return more than k hits and must break internal ties
// deterministically.
type VectorIndex interface {
	// Upsert stores or replaces the vector for a chunk id.
	Upsert(ctx context.Context, chunkID string, vector []float32) error

	// Delete removes a chunk's vector. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, chunkID string) error

	// Query returns the top-k hits by similarity, best first.
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// Close releases any resources.
	Close() error
}
