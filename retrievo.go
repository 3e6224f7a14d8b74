package retrievo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundprediction/retrievo/pkg/alert"
	"github.com/soundprediction/retrievo/pkg/cache"
	"github.com/soundprediction/retrievo/pkg/config"
	"github.com/soundprediction/retrievo/pkg/embedder"
	"github.com/soundprediction/retrievo/pkg/index"
	"github.com/soundprediction/retrievo/pkg/llm"
	"github.com/soundprediction/retrievo/pkg/pool"
	"github.com/soundprediction/retrievo/pkg/rerank"
	"github.com/soundprediction/retrievo/pkg/sparse"
)

// Client is the main implementation of the Retrievo interface. It owns the
// fingerprint cache, the embedding worker pool and both retrieval indexes.
type Client struct {
	cfg    *config.Config
	logger *slog.Logger

	store    *cache.Store
	provider embedder.Client
	pool     *pool.Pool

	sparse *sparse.Index
	vindex index.VectorIndex
	dense  *index.Retriever

	reranker  rerank.Client
	generator llm.Client
}

// Stats reports index sizes.
type Stats struct {
	SparseChunks int `json:"sparse_chunks"`
	DenseVectors int `json:"dense_vectors"`
}

// Option customizes client construction, mainly for tests and embedded use.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithEmbedder overrides the embedding provider built from configuration.
func WithEmbedder(client embedder.Client) Option {
	return func(c *Client) { c.provider = client }
}

// WithVectorIndex overrides the default in-memory vector index.
func WithVectorIndex(idx index.VectorIndex) Option {
	return func(c *Client) { c.vindex = idx }
}

// WithReranker overrides the reranker built from configuration.
func WithReranker(r rerank.Client) Option {
	return func(c *Client) { c.reranker = r }
}

// WithGenerator overrides the answer-generation client.
func WithGenerator(g llm.Client) Option {
	return func(c *Client) { c.generator = g }
}

// New creates a client from configuration, wiring the cache, provider,
// worker pool and indexes, and starts the pool.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	store, err := cache.Open(cfg.Cache.Path, c.logger)
	if err != nil {
		return nil, fmt.Errorf("opening fingerprint cache: %w", err)
	}
	c.store = store

	if c.provider == nil {
		provider, err := buildEmbedder(cfg)
		if err != nil {
			store.Close()
			return nil, err
		}
		c.provider = provider
	}

	if c.vindex == nil {
		c.vindex = index.NewMemoryIndex()
	}
	c.dense = index.NewRetriever(c.vindex)
	c.sparse = sparse.NewIndex()

	c.pool = pool.New(pool.Config{
		Workers:      cfg.Pool.Workers,
		MaxBatchSize: cfg.Pool.MaxBatchSize,
		MaxBatchWait: cfg.Pool.MaxBatchWait(),
		QueueDepth:   cfg.Pool.QueueDepth,
	}, c.store, c.provider, c.vindex, c.logger)
	c.pool.Start()

	if c.reranker == nil && cfg.Retrieval.RerankEnabled {
		c.reranker = buildReranker(cfg, c.pool)
	}
	if c.generator == nil && cfg.LLM.APIKey != "" {
		generator, err := llm.NewOpenAIClient(cfg.LLM.APIKey, llm.Config{
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			c.logger.Warn("answer generation disabled", "error", err)
		} else {
			c.generator = generator
		}
	}

	return c, nil
}

// buildEmbedder assembles the provider stack from configuration: the raw
// client wrapped with retries and, when enabled, a circuit breaker.
func buildEmbedder(cfg *config.Config) (embedder.Client, error) {
	var base embedder.Client
	switch cfg.Embedding.Provider {
	case "mock":
		base = embedder.NewMockClient(cfg.Embedding.Model, cfg.Embedding.Dimensions)
	case "", "openai":
		if cfg.Embedding.APIKey == "" {
			return nil, errors.New("embedding api key is required; set OPENAI_API_KEY or embedding.api_key")
		}
		base = embedder.NewOpenAIEmbedder(cfg.Embedding.APIKey, embedder.Config{
			Model:      cfg.Embedding.Model,
			BaseURL:    cfg.Embedding.BaseURL,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	var client embedder.Client = embedder.NewRetryClient(base, &embedder.RetryConfig{
		MaxRetries:        cfg.Pool.RetryCount,
		InitialDelay:      cfg.Pool.RetryBackoff(),
		BackoffMultiplier: cfg.Pool.RetryFactor,
	})

	if cfg.CircuitBreaker.Enabled {
		var alerter alert.Alerter = &alert.NoOpAlerter{}
		if cfg.Alert.Enabled {
			alerter = alert.NewEmailAlerter(cfg.Alert)
		}
		client = embedder.NewCircuitBreakerClient(client, cfg.CircuitBreaker, alerter, "embedding-provider")
	}
	return client, nil
}

// buildReranker picks the LLM scorer when credentials are configured and
// falls back to embedding similarity, which needs no extra provider.
func buildReranker(cfg *config.Config, p *pool.Pool) rerank.Client {
	if cfg.LLM.APIKey != "" {
		scorer, err := rerank.NewLLMScorer(cfg.LLM.APIKey, rerank.Config{
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		})
		if err == nil {
			return scorer
		}
	}
	return rerank.NewEmbeddingScorer(p)
}

// Stats implements Admin.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &Stats{SparseChunks: c.sparse.Len()}
	if sized, ok := c.vindex.(interface{ Len() int }); ok {
		stats.DenseVectors = sized.Len()
	}
	return stats, nil
}

// Close implements Admin. The pool drains first so no worker touches the
// cache or index after they close.
func (c *Client) Close(ctx context.Context) error {
	var errs []error

	if err := c.pool.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if c.reranker != nil {
		if err := c.reranker.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.generator != nil {
		if err := c.generator.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.provider.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.vindex.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// compile-time interface check
var _ Retrievo = (*Client)(nil)
