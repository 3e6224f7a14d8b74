// Package server exposes the retrieval service over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	retrievo "github.com/soundprediction/retrievo"
	"github.com/soundprediction/retrievo/pkg/config"
	"github.com/soundprediction/retrievo/pkg/server/handlers"
	"github.com/soundprediction/retrievo/pkg/types"
)

// Server is the HTTP front end over a retrievo client.
type Server struct {
	config   *config.Config
	router   *gin.Engine
	retrievo retrievo.Retrievo
	logger   *slog.Logger
	server   *http.Server
}

// New creates a server instance.
func New(cfg *config.Config, client retrievo.Retrievo, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:   cfg,
		retrievo: client,
		logger:   logger,
	}
}

// Setup builds the router, middleware and the underlying HTTP server.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(contextMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// Router returns the configured router, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.retrievo)
	ingestHandler := handlers.NewIngestHandler(s.retrievo, s.logger)
	queryHandler := handlers.NewQueryHandler(s.retrievo, s.logger)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/ingest", ingestHandler.IngestChunks)
		v1.DELETE("/chunks/:id", ingestHandler.RemoveChunk)

		v1.POST("/query", queryHandler.Query)
		v1.POST("/ask", queryHandler.Ask)
		v1.GET("/stats", queryHandler.Stats)
	}

	// Legacy paths matching the original deployment surface.
	s.router.POST("/query", queryHandler.Query)
	s.router.POST("/ask", queryHandler.Ask)
}

// Start starts serving and blocks until the listener stops.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.server.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// contextMiddleware stamps each request with an id and session info so the
// telemetry handler can attribute log records.
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = context.WithValue(ctx, types.ContextKeyRequestID, requestID)

		if sessionID := c.GetHeader("X-Session-ID"); sessionID != "" {
			ctx = context.WithValue(ctx, types.ContextKeySessionID, sessionID)
		}
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "server")

		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
