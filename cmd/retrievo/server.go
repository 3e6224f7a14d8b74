package retrievo

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	retrievo "github.com/soundprediction/retrievo"
	"github.com/soundprediction/retrievo/pkg/config"
	"github.com/soundprediction/retrievo/pkg/server"
	"github.com/soundprediction/retrievo/pkg/utils"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Retrievo HTTP server",
	Long: `Start the Retrievo HTTP server providing REST API access to the retrieval
pipeline.

The server provides endpoints for:
- Ingesting chunks
- Hybrid querying and answer generation
- Health checks and index stats

Configuration can be provided through config files, environment variables, or
command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	serverCmd.Flags().String("cache-path", "", "Fingerprint cache directory (empty for in-memory)")

	serverCmd.Flags().String("embedding-provider", "openai", "Embedding provider (openai, mock)")
	serverCmd.Flags().String("embedding-model", "text-embedding-3-small", "Embedding model")
	serverCmd.Flags().String("embedding-api-key", "", "Embedding API key")
	serverCmd.Flags().String("embedding-base-url", "", "Embedding base URL")

	serverCmd.Flags().Int("workers", 0, "Embedding worker count")
	serverCmd.Flags().Float64("alpha", -1, "Dense weight for rank fusion (0..1)")
	serverCmd.Flags().Bool("no-rerank", false, "Disable the rerank stage")

	serverCmd.Flags().String("telemetry-parquet-path", "", "Directory for Parquet error telemetry")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)

	logger := buildLogger(cfg)

	client, err := retrievo.New(cfg, retrievo.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to initialize retrieval client: %w", err)
	}

	srv := server.New(cfg, client, logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	utils.SafeGo(func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}, func(err error) {
		serverErrChan <- err
	})

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		if err := client.Close(shutdownCtx); err != nil {
			return fmt.Errorf("client shutdown error: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	if cmd.Flags().Changed("cache-path") {
		cfg.Cache.Path, _ = cmd.Flags().GetString("cache-path")
	}

	if cmd.Flags().Changed("embedding-provider") {
		cfg.Embedding.Provider, _ = cmd.Flags().GetString("embedding-provider")
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
	if cmd.Flags().Changed("embedding-api-key") {
		cfg.Embedding.APIKey, _ = cmd.Flags().GetString("embedding-api-key")
	}
	if cmd.Flags().Changed("embedding-base-url") {
		cfg.Embedding.BaseURL, _ = cmd.Flags().GetString("embedding-base-url")
	}

	if cmd.Flags().Changed("workers") {
		cfg.Pool.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("alpha") {
		cfg.Retrieval.Alpha, _ = cmd.Flags().GetFloat64("alpha")
	}
	if cmd.Flags().Changed("no-rerank") {
		noRerank, _ := cmd.Flags().GetBool("no-rerank")
		cfg.Retrieval.RerankEnabled = !noRerank
	}

	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}
