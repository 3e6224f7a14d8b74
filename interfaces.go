package retrievo

import (
	"context"

	"github.com/soundprediction/retrievo/pkg/types"
)

// This file defines focused interfaces so consumers can depend on the
// smallest surface that meets their needs. The Retrievo interface is
// composed from them.

// Ingestor provides write operations on the retrieval indexes.
type Ingestor interface {
	// Ingest indexes chunks for retrieval: each chunk becomes searchable
	// lexically right away and semantically once its embedding resolves.
	Ingest(ctx context.Context, chunks []*types.Chunk) (*types.IngestResults, error)

	// RemoveChunk drops a chunk from both indexes.
	RemoveChunk(ctx context.Context, chunkID string) error
}

// Querier provides read-only retrieval.
type Querier interface {
	// Query runs hybrid retrieval for the query text: sparse and dense
	// stages in parallel, rank fusion, and optionally a rerank pass.
	Query(ctx context.Context, query string, opts *QueryOptions) (*types.QueryResults, error)
}

// Answerer generates grounded answers on top of retrieval.
type Answerer interface {
	// Ask retrieves context for the question and generates an answer
	// from it.
	Ask(ctx context.Context, question string, opts *QueryOptions) (*types.Answer, error)
}

// Admin provides maintenance operations.
type Admin interface {
	// Stats reports index sizes.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases all resources: the worker pool drains, the cache and
	// provider connections close.
	Close(ctx context.Context) error
}

// Retrievo is the full retrieval service surface.
type Retrievo interface {
	Ingestor
	Querier
	Answerer
	Admin
}
