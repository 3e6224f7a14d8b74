package telemetry_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/retrievo/pkg/telemetry"
	"github.com/soundprediction/retrievo/pkg/types"
)

func TestHandlerPersistsErrorsOnly(t *testing.T) {
	dir := t.TempDir()
	h, err := telemetry.NewParquetHandler(slog.NewTextHandler(io.Discard, nil), dir)
	require.NoError(t, err)
	logger := slog.New(h)

	ctx := context.WithValue(context.Background(), types.ContextKeyRequestID, "req-1")
	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "api")

	logger.InfoContext(ctx, "ingestion started")
	logger.ErrorContext(ctx, "embedding batch failed", "size", 4)

	require.NoError(t, h.Flush())

	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	rows, err := readRecords(files[0])
	require.NoError(t, err)
	require.Len(t, rows, 1, "info records must not be persisted")

	rec := rows[0]
	assert.Equal(t, "ERROR", rec.Level)
	assert.Equal(t, "embedding batch failed", rec.Message)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, "api", rec.RequestSource)
	assert.Contains(t, rec.Attributes, `"size":4`)
	assert.NotEmpty(t, rec.ID)
}

func TestFlushEmptyBufferWritesNothing(t *testing.T) {
	dir := t.TempDir()
	h, err := telemetry.NewParquetHandler(slog.NewTextHandler(io.Discard, nil), dir)
	require.NoError(t, err)

	require.NoError(t, h.Flush())

	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func readRecords(path string) ([]telemetry.LogRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, err
	}

	reader := parquet.NewGenericReader[telemetry.LogRecord](pf)
	defer reader.Close()

	out := make([]telemetry.LogRecord, 0, reader.NumRows())
	buf := make([]telemetry.LogRecord, 16)
	for {
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
