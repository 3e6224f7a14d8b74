package retrievo

import (
	"context"
	"fmt"

	"github.com/soundprediction/retrievo/pkg/pool"
	"github.com/soundprediction/retrievo/pkg/types"
)

// Ingest implements Ingestor. Chunks become lexically searchable immediately;
// the embedding side resolves through the worker pool, and Ingest waits for
// it so the caller learns about embedding failures. Failed chunks stay in the
// sparse index and remain retrievable there.
func (c *Client) Ingest(ctx context.Context, chunks []*types.Chunk) (*types.IngestResults, error) {
	results := &types.IngestResults{Submitted: len(chunks)}
	if len(chunks) == 0 {
		return results, nil
	}

	handles := make([]*pool.Handle, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk == nil || chunk.ID == "" {
			results.Failed++
			continue
		}
		c.sparse.Add(chunk)

		handle, err := c.pool.Submit(ctx, chunk.Text, chunk)
		if err != nil {
			c.logger.Warn("embedding submission failed", "chunk_id", chunk.ID, "error", err)
			results.Failed++
			continue
		}
		handles = append(handles, handle)
	}

	for _, handle := range handles {
		if _, err := handle.Wait(ctx); err != nil {
			c.logger.Warn("chunk embedding failed", "fingerprint", handle.Fingerprint(), "error", err)
			results.Failed++
			continue
		}
		results.Indexed++
	}

	c.logger.Info("ingestion finished",
		"submitted", results.Submitted,
		"indexed", results.Indexed,
		"failed", results.Failed)
	return results, nil
}

// RemoveChunk implements Ingestor.
func (c *Client) RemoveChunk(ctx context.Context, chunkID string) error {
	if chunkID == "" {
		return fmt.Errorf("chunk id is required")
	}

	c.sparse.Remove(chunkID)
	if err := c.vindex.Delete(ctx, chunkID); err != nil {
		return fmt.Errorf("removing chunk %s from vector index: %w", chunkID, err)
	}
	return nil
}
