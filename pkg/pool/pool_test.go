package pool_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/retrievo/pkg/cache"
	"github.com/soundprediction/retrievo/pkg/embedder"
	"github.com/soundprediction/retrievo/pkg/index"
	"github.com/soundprediction/retrievo/pkg/pool"
	"github.com/soundprediction/retrievo/pkg/types"
)

// recordingClient wraps the mock provider and records per-call batch sizes,
// optionally delaying each call.
type recordingClient struct {
	*embedder.MockClient
	delay time.Duration

	mu     sync.Mutex
	sizes  []int
}

func (r *recordingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	r.sizes = append(r.sizes, len(texts))
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.MockClient.Embed(ctx, texts)
}

func (r *recordingClient) batchSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.sizes))
	copy(out, r.sizes)
	return out
}

func newTestPool(t *testing.T, provider embedder.Client, idx index.VectorIndex, cfg pool.Config) (*pool.Pool, *cache.Store) {
	t.Helper()

	store, err := cache.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	p := pool.New(cfg, store, provider, idx, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
	return p, store
}

func TestCacheIdempotence(t *testing.T) {
	provider := embedder.NewMockClient("m", 8)
	p, _ := newTestPool(t, provider, nil, pool.Config{
		Workers:      1,
		MaxBatchSize: 4,
		MaxBatchWait: 10 * time.Millisecond,
	})
	p.Start()

	ctx := context.Background()
	first, err := p.EmbedText(ctx, "cats are mammals")
	require.NoError(t, err)

	second, err := p.EmbedText(ctx, "cats are mammals")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.Calls(), "second request must resolve from cache")
}

func TestNoDuplicateInflightWork(t *testing.T) {
	provider := &recordingClient{
		MockClient: embedder.NewMockClient("m", 8),
		delay:      50 * time.Millisecond,
	}
	p, _ := newTestPool(t, provider, nil, pool.Config{
		Workers:      4,
		MaxBatchSize: 4,
		MaxBatchWait: 5 * time.Millisecond,
	})
	p.Start()

	const callers = 16
	vectors := make([][]float32, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vectors[i], errs[i] = p.EmbedText(context.Background(), "shared text")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, vectors[0], vectors[i], "all callers must receive the same vector")
	}
	assert.Equal(t, 1, provider.Calls(), "concurrent callers for one fingerprint must coalesce")
}

func TestBatchAtomicityOnProviderFailure(t *testing.T) {
	provider := embedder.NewMockClient("m", 8)
	provider.FailAlways(&embedder.ProviderError{Provider: "m", Err: context.DeadlineExceeded})

	p, store := newTestPool(t, provider, nil, pool.Config{
		Workers:      1,
		MaxBatchSize: 8,
		MaxBatchWait: 10 * time.Millisecond,
	})
	p.Start()

	texts := []string{"one", "two", "three", "four", "five"}
	handles := make([]*pool.Handle, len(texts))
	for i, text := range texts {
		h, err := p.Submit(context.Background(), text, nil)
		require.NoError(t, err)
		handles[i] = h
	}

	for _, h := range handles {
		_, err := h.Wait(context.Background())
		require.Error(t, err)
		var providerErr *embedder.ProviderError
		assert.ErrorAs(t, err, &providerErr)
	}

	// No partial cache writes for the failed batch.
	for _, text := range texts {
		_, found, err := store.Get(cache.Fingerprint(text, "m"))
		require.NoError(t, err)
		assert.False(t, found, "fingerprint for %q must not be cached", text)
	}
}

func TestDimensionGuardFailsBatch(t *testing.T) {
	provider := embedder.NewMockClient("m", 8)

	p, store := newTestPool(t, provider, nil, pool.Config{
		Workers:      1,
		MaxBatchSize: 4,
		MaxBatchWait: 10 * time.Millisecond,
	})

	// The model is already on record with a different dimensionality.
	require.NoError(t, store.Put(cache.Fingerprint("seed", "m"), &cache.Entry{
		Vector: make([]float32, 384),
		Model:  "m",
	}))

	p.Start()

	_, err := p.EmbedText(context.Background(), "new text")
	require.Error(t, err)

	var mismatch *cache.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 384, mismatch.Expected)
	assert.Equal(t, 8, mismatch.Got)

	_, found, err := store.Get(cache.Fingerprint("new text", "m"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMicroBatchSizeTrigger(t *testing.T) {
	provider := &recordingClient{MockClient: embedder.NewMockClient("m", 8)}
	p, _ := newTestPool(t, provider, nil, pool.Config{
		Workers:      1,
		MaxBatchSize: 4,
		MaxBatchWait: time.Second,
		QueueDepth:   64,
	})

	// Queue up before starting so the single worker sees a full queue and
	// closes batches on the size trigger, not the timer.
	handles := make([]*pool.Handle, 0, 8)
	for _, text := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		h, err := p.Submit(context.Background(), text, nil)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	p.Start()

	for _, h := range handles {
		_, err := h.Wait(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []int{4, 4}, provider.batchSizes())
}

func TestMicroBatchWaitTrigger(t *testing.T) {
	provider := &recordingClient{MockClient: embedder.NewMockClient("m", 8)}
	p, _ := newTestPool(t, provider, nil, pool.Config{
		Workers:      1,
		MaxBatchSize: 64,
		MaxBatchWait: 20 * time.Millisecond,
	})

	h1, err := p.Submit(context.Background(), "first", nil)
	require.NoError(t, err)
	h2, err := p.Submit(context.Background(), "second", nil)
	require.NoError(t, err)
	p.Start()

	_, err = h1.Wait(context.Background())
	require.NoError(t, err)
	_, err = h2.Wait(context.Background())
	require.NoError(t, err)

	// Both requests fit one wait-window batch.
	assert.Equal(t, []int{2}, provider.batchSizes())
}

func TestSubmitNoWaitQueueFull(t *testing.T) {
	provider := embedder.NewMockClient("m", 8)
	p, _ := newTestPool(t, provider, nil, pool.Config{
		Workers:      1,
		MaxBatchSize: 4,
		MaxBatchWait: 10 * time.Millisecond,
		QueueDepth:   1,
	})
	// Workers intentionally not started: the queue cannot drain.

	_, err := p.SubmitNoWait("fits", nil)
	require.NoError(t, err)

	_, err = p.SubmitNoWait("overflow", nil)
	assert.ErrorIs(t, err, pool.ErrQueueFull)
}

func TestChunkUpsertFanout(t *testing.T) {
	provider := embedder.NewMockClient("m", 8)
	idx := index.NewMemoryIndex()
	p, _ := newTestPool(t, provider, idx, pool.Config{
		Workers:      2,
		MaxBatchSize: 4,
		MaxBatchWait: 10 * time.Millisecond,
	})
	p.Start()

	// Two chunks with identical text coalesce into one provider call but
	// both ids must land in the index.
	h1, err := p.Submit(context.Background(), "same words", &types.Chunk{ID: "d1_0", Text: "same words"})
	require.NoError(t, err)
	h2, err := p.Submit(context.Background(), "same words", &types.Chunk{ID: "d2_0", Text: "same words"})
	require.NoError(t, err)

	_, err = h1.Wait(context.Background())
	require.NoError(t, err)
	_, err = h2.Wait(context.Background())
	require.NoError(t, err)

	// Upserts fan out on resolution, possibly slightly after Wait returns.
	assert.Eventually(t, func() bool {
		return idx.Len() == 2
	}, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, provider.Calls(), 1)
}

func TestSubmitAfterClose(t *testing.T) {
	provider := embedder.NewMockClient("m", 8)
	p, _ := newTestPool(t, provider, nil, pool.Config{Workers: 1})
	p.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))

	_, err := p.Submit(context.Background(), "late", nil)
	assert.ErrorIs(t, err, pool.ErrClosed)
}
