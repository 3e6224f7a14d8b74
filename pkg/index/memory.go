package index

import (
	"context"
	"sort"
	"sync"

	"github.com/soundprediction/retrievo/pkg/utils"
)

// MemoryIndex is an in-memory cosine-similarity index. Ties are broken by
// chunk id ascending so results are deterministic.
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[string][]float32)}
}

// Upsert implements VectorIndex. Vectors are stored L2-normalized.
func (m *MemoryIndex) Upsert(ctx context.Context, chunkID string, vector []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)
	stored = utils.NormalizeL2(stored)

	m.mu.Lock()
	m.vectors[chunkID] = stored
	m.mu.Unlock()
	return nil
}

// Delete implements VectorIndex.
func (m *MemoryIndex) Delete(ctx context.Context, chunkID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.vectors, chunkID)
	m.mu.Unlock()
	return nil
}

// Query implements VectorIndex.
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.vectors))
	for id, v := range m.vectors {
		hits = append(hits, Hit{ChunkID: id, Score: utils.CosineSimilarity(vector, v)})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Close implements VectorIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
