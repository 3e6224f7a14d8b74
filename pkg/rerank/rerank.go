/*
Package rerank scores retrieval candidates against the query with a second,
more precise model.

Scorers return one score per passage, positionally aligned with the input:
reranking reorders candidates but never adds or removes them, so a caller can
always fall back to its pre-rerank ordering when scoring fails.
*/
package rerank

import "context"

// Client scores passages for relevance to a query.
type Client interface {
	// Score returns one relevance score per passage, in input order.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)

	Close() error
}

// Config holds common reranker settings.
type Config struct {
	Model          string
	BaseURL        string
	MaxConcurrency int
}
