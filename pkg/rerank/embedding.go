package rerank

import (
	"context"
	"fmt"

	"github.com/soundprediction/retrievo/pkg/utils"
)

// TextEmbedder resolves one text to an embedding vector. The worker pool
// satisfies this, so embedding-based scoring shares its cache and batching.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingScorer scores passages by cosine similarity between the query
// embedding and each passage embedding. Used when no LLM scorer is
// configured.
type EmbeddingScorer struct {
	embedder TextEmbedder
}

// NewEmbeddingScorer creates an embedding-similarity scorer.
func NewEmbeddingScorer(embedder TextEmbedder) *EmbeddingScorer {
	return &EmbeddingScorer{embedder: embedder}
}

// Score implements Client.
func (s *EmbeddingScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	queryVector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	functions := make([]func() ([]float32, error), len(passages))
	for i, passage := range passages {
		passage := passage
		functions[i] = func() ([]float32, error) {
			return s.embedder.EmbedText(ctx, passage)
		}
	}

	vectors, errs := utils.GatherWithResults(ctx, 0, functions...)
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("embedding passage %d: %w", i, err)
		}
	}

	scores := make([]float64, len(passages))
	for i, vector := range vectors {
		scores[i] = utils.CosineSimilarity(queryVector, vector)
	}
	return scores, nil
}

// Close implements Client.
func (s *EmbeddingScorer) Close() error { return nil }
