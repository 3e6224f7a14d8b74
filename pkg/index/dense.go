package index

import (
	"context"
	"fmt"
)

// Ranked is a dense retrieval candidate with its 1-based rank.
type Ranked struct {
	ChunkID string
	Rank    int
	Score   float64
}

// Retriever is the dense retrieval stage: a thin adapter that turns a query
// embedding into a ranked candidate list via the vector index.
type Retriever struct {
	index VectorIndex
}

// NewRetriever creates a dense retriever over the given index.
func NewRetriever(idx VectorIndex) *Retriever {
	return &Retriever{index: idx}
}

// Retrieve returns the top-k candidates for the query vector, rank 1 being
// the most similar.
func (r *Retriever) Retrieve(ctx context.Context, queryVector []float32, k int) ([]Ranked, error) {
	hits, err := r.index.Query(ctx, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("dense retrieval: %w", err)
	}

	ranked := make([]Ranked, len(hits))
	for i, hit := range hits {
		ranked[i] = Ranked{ChunkID: hit.ChunkID, Rank: i + 1, Score: hit.Score}
	}
	return ranked, nil
}
