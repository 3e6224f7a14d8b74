package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	retrievo "github.com/soundprediction/retrievo"
	"github.com/soundprediction/retrievo/pkg/server/dto"
)

// QueryService is the read surface the query handler depends on.
type QueryService interface {
	retrievo.Querier
	retrievo.Answerer
	retrievo.Admin
}

// QueryHandler serves the read side of the API.
type QueryHandler struct {
	retrievo QueryService
	logger   *slog.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(client QueryService, logger *slog.Logger) *QueryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryHandler{retrievo: client, logger: logger}
}

// Query handles POST /api/v1/query.
func (h *QueryHandler) Query(c *gin.Context) {
	req, ok := bindQueryRequest(c)
	if !ok {
		return
	}

	results, err := h.retrievo.Query(c.Request.Context(), req.Query, queryOptions(req))
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "query failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, results)
}

// Ask handles POST /api/v1/ask.
func (h *QueryHandler) Ask(c *gin.Context) {
	req, ok := bindQueryRequest(c)
	if !ok {
		return
	}

	answer, err := h.retrievo.Ask(c.Request.Context(), req.Query, queryOptions(req))
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "ask failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, answer)
}

// Stats handles GET /api/v1/stats.
func (h *QueryHandler) Stats(c *gin.Context) {
	stats, err := h.retrievo.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func bindQueryRequest(c *gin.Context) (*dto.QueryRequest, bool) {
	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return nil, false
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return nil, false
	}
	return &req, true
}

func queryOptions(req *dto.QueryRequest) *retrievo.QueryOptions {
	return &retrievo.QueryOptions{
		TopK:        req.TopK,
		UseReranker: req.UseReranker,
	}
}
