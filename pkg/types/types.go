package types

import "time"

// ContextKey is a typed key for context values propagated through the
// retrieval pipeline and picked up by the telemetry handler.
type ContextKey string

const (
	ContextKeyRequestID     ContextKey = "request_id"
	ContextKeySessionID     ContextKey = "session_id"
	ContextKeyRequestSource ContextKey = "request_source"
)

// Chunk is a unit of retrievable text produced by the external chunking
// pipeline. Chunks are immutable once created; the retrieval core reads them
// but never mutates them.
type Chunk struct {
	// ID is stable and unique within the owning source document.
	ID string `json:"id"`

	// Text is the chunk content used for indexing and embedding.
	Text string `json:"text"`

	// Metadata carries scalar annotations such as source path and ordinal
	// position within the document.
	Metadata map[string]any `json:"metadata,omitempty"`

	// SourceID identifies the owning document.
	SourceID string `json:"source_id,omitempty"`
}

// RetrievalResult is one ranked candidate produced for a query. Rank fields
// are 1-based; a zero rank means the chunk was absent from that retriever's
// list.
type RetrievalResult struct {
	ChunkID  string         `json:"chunk_id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`

	SparseRank  int     `json:"sparse_rank,omitempty"`
	DenseRank   int     `json:"dense_rank,omitempty"`
	SparseScore float64 `json:"sparse_score,omitempty"`
	DenseScore  float64 `json:"dense_score,omitempty"`

	FusedScore  float64  `json:"fused_score"`
	RerankScore *float64 `json:"rerank_score,omitempty"`

	// Sources lists which retrievers produced this candidate ("sparse",
	// "dense").
	Sources []string `json:"sources,omitempty"`
}

// QueryResults is the full response for one query, including per-stage
// status so degraded results stay explainable.
type QueryResults struct {
	Query   string             `json:"query"`
	Results []*RetrievalResult `json:"results"`

	SparseOK bool `json:"sparse_ok"`
	DenseOK  bool `json:"dense_ok"`
	Reranked bool `json:"reranked"`

	// Warnings describes degraded stages (index unreachable, rerank
	// fallback, timeout).
	Warnings []string `json:"warnings,omitempty"`

	Took time.Duration `json:"took_ns"`
}

// Answer is the response of the answer-generation path: the generated text
// plus the retrieval results that supplied its context.
type Answer struct {
	Question string             `json:"question"`
	Answer   string             `json:"answer"`
	Results  []*RetrievalResult `json:"results,omitempty"`
}

// IngestResults summarizes one ingestion call.
type IngestResults struct {
	Submitted int `json:"submitted"`
	Indexed   int `json:"indexed"`
	Failed    int `json:"failed"`
}
