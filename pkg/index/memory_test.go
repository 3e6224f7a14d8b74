package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/retrievo/pkg/index"
)

func TestMemoryIndexQueryOrdersBySimilarity(t *testing.T) {
	idx := index.NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "exact", []float32{1, 0, 0}))
	require.NoError(t, idx.Upsert(ctx, "close", []float32{1, 0.2, 0}))
	require.NoError(t, idx.Upsert(ctx, "orthogonal", []float32{0, 1, 0}))

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "exact", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "close", hits[1].ChunkID)
	assert.Equal(t, "orthogonal", hits[2].ChunkID)
}

func TestMemoryIndexTieBreakByChunkID(t *testing.T) {
	idx := index.NewMemoryIndex()
	ctx := context.Background()

	// Scaled copies normalize to the same vector, so scores tie exactly.
	require.NoError(t, idx.Upsert(ctx, "z", []float32{2, 0}))
	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0}))

	hits, err := idx.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.Equal(t, "z", hits[1].ChunkID)
}

func TestMemoryIndexUpsertReplacesAndDelete(t *testing.T) {
	idx := index.NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Upsert(ctx, "a", []float32{0, 1}))
	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	require.NoError(t, idx.Delete(ctx, "a"))
	assert.Zero(t, idx.Len())

	hits, err = idx.Query(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndexTopKAndZeroK(t *testing.T) {
	idx := index.NewMemoryIndex()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, idx.Upsert(ctx, id, []float32{1, 0}))
	}

	hits, err := idx.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = idx.Query(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRetrieverAssignsRanks(t *testing.T) {
	idx := index.NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "best", []float32{1, 0}))
	require.NoError(t, idx.Upsert(ctx, "worse", []float32{0.5, 0.5}))

	ranked, err := index.NewRetriever(idx).Retrieve(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, "best", ranked[0].ChunkID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
}

// unavailableIndex always refuses queries.
type unavailableIndex struct{ *index.MemoryIndex }

func (u *unavailableIndex) Query(ctx context.Context, vector []float32, k int) ([]index.Hit, error) {
	return nil, index.ErrUnavailable
}

func TestRetrieverPropagatesUnavailable(t *testing.T) {
	r := index.NewRetriever(&unavailableIndex{index.NewMemoryIndex()})

	_, err := r.Retrieve(context.Background(), []float32{1}, 5)
	assert.ErrorIs(t, err, index.ErrUnavailable)
}
