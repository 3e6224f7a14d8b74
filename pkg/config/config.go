package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Cache configuration
	Cache CacheConfig `mapstructure:"cache"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Pool configuration
	Pool PoolConfig `mapstructure:"pool"`

	// Retrieval configuration
	Retrieval RetrievalConfig `mapstructure:"retrieval"`

	// LLM configuration for answer generation
	LLM LLMConfig `mapstructure:"llm"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// CacheConfig holds fingerprint cache configuration.
type CacheConfig struct {
	// Path is the Badger directory; empty selects an in-memory store.
	Path string `mapstructure:"path"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, mock
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

// PoolConfig holds embedding worker pool configuration.
type PoolConfig struct {
	Workers        int     `mapstructure:"workers"`
	MaxBatchSize   int     `mapstructure:"max_batch_size"`
	MaxBatchWaitMS int     `mapstructure:"max_batch_wait_ms"`
	QueueDepth     int     `mapstructure:"queue_depth"`
	RetryCount     int     `mapstructure:"retry_count"`
	RetryBackoffMS int     `mapstructure:"retry_backoff_ms"`
	RetryFactor    float64 `mapstructure:"retry_factor"`
}

// MaxBatchWait returns the batch wait window as a duration.
func (c PoolConfig) MaxBatchWait() time.Duration {
	return time.Duration(c.MaxBatchWaitMS) * time.Millisecond
}

// RetryBackoff returns the initial retry backoff as a duration.
func (c PoolConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// RetrievalConfig holds hybrid retrieval configuration.
type RetrievalConfig struct {
	// Alpha blends dense vs sparse contributions: 0 is pure lexical,
	// 1 is pure semantic.
	Alpha float64 `mapstructure:"alpha"`

	// RankConstant is the RRF smoothing constant.
	RankConstant int `mapstructure:"rank_constant"`

	// TopK is the default result count per query.
	TopK int `mapstructure:"top_k"`

	// RerankEnabled toggles the rerank stage.
	RerankEnabled bool `mapstructure:"rerank_enabled"`

	// RerankMultiplier sizes the fused shortlist handed to the reranker
	// as a multiple of TopK.
	RerankMultiplier int `mapstructure:"rerank_multiplier"`

	// QueryTimeoutMS bounds a whole query including embedding, dense
	// retrieval and rerank.
	QueryTimeoutMS int `mapstructure:"query_timeout_ms"`
}

// QueryTimeout returns the per-query deadline as a duration.
func (c RetrievalConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMS) * time.Millisecond
}

// LLMConfig holds answer-generation configuration.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// TelemetryConfig holds telemetry configuration.
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// AlertConfig holds configuration for alerting.
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking.
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Cache defaults
	viper.SetDefault("cache.path", "./retrievo_cache")

	// Embedding defaults
	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")

	// Pool defaults match the original ingestion pipeline.
	viper.SetDefault("pool.workers", 3)
	viper.SetDefault("pool.max_batch_size", 64)
	viper.SetDefault("pool.max_batch_wait_ms", 200)
	viper.SetDefault("pool.queue_depth", 1024)
	viper.SetDefault("pool.retry_count", 3)
	viper.SetDefault("pool.retry_backoff_ms", 1000)
	viper.SetDefault("pool.retry_factor", 2.0)

	// Retrieval defaults
	viper.SetDefault("retrieval.alpha", 0.5)
	viper.SetDefault("retrieval.rank_constant", 60)
	viper.SetDefault("retrieval.top_k", 10)
	viper.SetDefault("retrieval.rerank_enabled", true)
	viper.SetDefault("retrieval.rerank_multiplier", 3)
	viper.SetDefault("retrieval.query_timeout_ms", 30000)

	// LLM defaults
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 1024)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.retrievo/telemetry", home))
	}
}

// overrideWithEnv overrides config with environment variables. The names
// match the original deployment surface so existing environments keep
// working.
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = apiKey
		}
		if config.LLM.APIKey == "" {
			config.LLM.APIKey = apiKey
		}
	}

	if model := os.Getenv("EMBED_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if baseURL := os.Getenv("EMBED_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if path := os.Getenv("EMBED_CACHE_PATH"); path != "" {
		config.Cache.Path = path
	}

	if v := os.Getenv("EMBED_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Pool.Workers = n
		}
	}
	if v := os.Getenv("EMBED_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Pool.MaxBatchSize = n
		}
	}
	if v := os.Getenv("EMBED_BATCH_WAIT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Pool.MaxBatchWaitMS = n
		}
	}

	if v := os.Getenv("HYBRID_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Retrieval.Alpha = f
		}
	}
	if v := os.Getenv("USE_RERANKER"); v != "" {
		config.Retrieval.RerankEnabled = v == "1" || v == "true"
	}
}
