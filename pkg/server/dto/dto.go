// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/retrievo/pkg/types"
)

// MaxChunkTextLength bounds a single chunk's text.
const MaxChunkTextLength = 32 * 1024

// ErrChunkTextTooLong is returned when a chunk exceeds MaxChunkTextLength.
var ErrChunkTextTooLong = errors.New("chunk text exceeds maximum length")

// IngestRequest is the body of POST /api/v1/ingest.
type IngestRequest struct {
	Chunks []ChunkPayload `json:"chunks" binding:"required"`
}

// ChunkPayload is one chunk in an ingest request.
type ChunkPayload struct {
	ID       string         `json:"id" binding:"required"`
	Text     string         `json:"text" binding:"required"`
	Metadata map[string]any `json:"metadata,omitempty"`
	SourceID string         `json:"source_id,omitempty"`
}

// Validate checks one chunk payload.
func (p *ChunkPayload) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("chunk id cannot be empty")
	}
	if strings.TrimSpace(p.Text) == "" {
		return errors.New("chunk text cannot be empty")
	}
	if len(p.Text) > MaxChunkTextLength {
		return ErrChunkTextTooLong
	}
	return nil
}

// ToChunk converts the payload to the internal chunk type.
func (p *ChunkPayload) ToChunk() *types.Chunk {
	return &types.Chunk{
		ID:       p.ID,
		Text:     p.Text,
		Metadata: p.Metadata,
		SourceID: p.SourceID,
	}
}

// QueryRequest is the body of POST /api/v1/query and /api/v1/ask.
type QueryRequest struct {
	Query       string `json:"query" binding:"required"`
	TopK        int    `json:"top_k,omitempty"`
	UseReranker *bool  `json:"use_reranker,omitempty"`
}

// Validate checks a query request.
func (r *QueryRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query cannot be empty")
	}
	if r.TopK < 0 {
		return errors.New("top_k cannot be negative")
	}
	return nil
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
