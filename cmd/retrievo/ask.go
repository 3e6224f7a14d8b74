package retrievo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	retrievo "github.com/soundprediction/retrievo"
	"github.com/soundprediction/retrievo/pkg/config"
	"github.com/soundprediction/retrievo/pkg/types"
	"github.com/soundprediction/retrievo/pkg/utils"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ingest documents and ask a question against them",
	Long: `Ingest one or more text files, run hybrid retrieval for the question, and
print the answer with its supporting chunks. Files are split into chunks on
blank lines.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

var askFiles []string

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringSliceVarP(&askFiles, "file", "f", nil, "Text file to ingest (repeatable)")
	askCmd.MarkFlagRequired("file")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// One-shot runs keep everything in memory.
	cfg.Cache.Path = ""
	logger := buildLogger(cfg)

	client, err := retrievo.New(cfg, retrievo.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to initialize retrieval client: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client.Close(ctx)
	}()

	ctx := context.WithValue(cmd.Context(), types.ContextKeyRequestSource, "cli")

	chunks, err := chunksFromFiles(askFiles)
	if err != nil {
		return err
	}

	// Ingest in bounded batches so very large files cannot swamp the
	// embedding queue.
	var indexed, failed int
	for _, batch := range utils.Batch(chunks, 256) {
		ingested, err := client.Ingest(ctx, batch)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		indexed += ingested.Indexed
		failed += ingested.Failed
	}
	fmt.Fprintf(os.Stderr, "Ingested %d chunks (%d failed)\n", indexed, failed)

	answer, err := client.Ask(ctx, question, nil)
	if err != nil {
		return err
	}

	fmt.Println(answer.Answer)
	fmt.Fprintln(os.Stderr, "\nSupporting chunks:")
	for _, r := range answer.Results {
		fmt.Fprintf(os.Stderr, "  [%.4f] %s: %s\n", r.FusedScore, r.ChunkID, firstLine(r.Text))
	}
	return nil
}

// chunksFromFiles splits each file into chunks on blank lines.
func chunksFromFiles(paths []string) ([]*types.Chunk, error) {
	var chunks []*types.Chunk
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for i, block := range strings.Split(string(raw), "\n\n") {
			text := strings.TrimSpace(block)
			if text == "" {
				continue
			}
			chunks = append(chunks, &types.Chunk{
				ID:       fmt.Sprintf("%s_%d", base, i),
				Text:     text,
				SourceID: path,
				Metadata: map[string]any{"source_path": path, "ordinal": i},
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks found in input files")
	}
	return chunks, nil
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > 100 {
		text = text[:100] + "..."
	}
	return text
}
