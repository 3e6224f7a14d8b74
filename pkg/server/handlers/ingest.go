package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	retrievo "github.com/soundprediction/retrievo"
	"github.com/soundprediction/retrievo/pkg/server/dto"
	"github.com/soundprediction/retrievo/pkg/types"
)

// IngestHandler serves the write side of the API.
type IngestHandler struct {
	retrievo retrievo.Ingestor
	logger   *slog.Logger
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(client retrievo.Ingestor, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{retrievo: client, logger: logger}
}

// IngestChunks handles POST /api/v1/ingest.
func (h *IngestHandler) IngestChunks(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if len(req.Chunks) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "chunks cannot be empty"})
		return
	}

	chunks := make([]*types.Chunk, 0, len(req.Chunks))
	for i := range req.Chunks {
		payload := &req.Chunks[i]
		if err := payload.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}
		chunks = append(chunks, payload.ToChunk())
	}

	results, err := h.retrievo.Ingest(c.Request.Context(), chunks)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "ingestion failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	status := http.StatusAccepted
	if results.Failed > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, results)
}

// RemoveChunk handles DELETE /api/v1/chunks/:id.
func (h *IngestHandler) RemoveChunk(c *gin.Context) {
	chunkID := c.Param("id")
	if chunkID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "chunk id is required"})
		return
	}

	if err := h.retrievo.RemoveChunk(c.Request.Context(), chunkID); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "chunk removal failed", "chunk_id", chunkID, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": chunkID})
}
