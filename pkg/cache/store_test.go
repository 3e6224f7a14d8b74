package cache_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/retrievo/pkg/cache"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		textA string
		textB string
		model string
		equal bool
	}{
		{
			name:  "identical text and model share a fingerprint",
			textA: "cats are mammals",
			textB: "cats are mammals",
			model: "bge-m3",
			equal: true,
		},
		{
			name:  "surrounding whitespace is normalized away",
			textA: "  cats are mammals\n",
			textB: "cats are mammals",
			model: "bge-m3",
			equal: true,
		},
		{
			name:  "different text differs",
			textA: "cats are mammals",
			textB: "dogs are mammals too",
			model: "bge-m3",
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := cache.Fingerprint(tt.textA, tt.model)
			b := cache.Fingerprint(tt.textB, tt.model)
			if tt.equal {
				assert.Equal(t, a, b)
			} else {
				assert.NotEqual(t, a, b)
			}
		})
	}
}

func TestFingerprintModelSeparation(t *testing.T) {
	// Same text under two models must never collide.
	a := cache.Fingerprint("hello", "model-a")
	b := cache.Fingerprint("hello", "model-b")
	assert.NotEqual(t, a, b)
}

func openTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorePutGet(t *testing.T) {
	store := openTestStore(t)

	fp := cache.Fingerprint("cats are mammals", "bge-m3")
	entry := &cache.Entry{
		Vector: []float32{0.1, 0.2, 0.3},
		Model:  "bge-m3",
	}
	require.NoError(t, store.Put(fp, entry))

	got, found, err := store.Get(fp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.Vector)
	assert.Equal(t, 3, got.Dims)
	assert.Equal(t, "bge-m3", got.Model)
	assert.False(t, got.CreatedAt.IsZero())

	_, found, err = store.Get(cache.Fingerprint("missing", "bge-m3"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreDimensionGuard(t *testing.T) {
	store := openTestStore(t)

	fp384 := cache.Fingerprint("first", "m")
	first := &cache.Entry{Vector: make([]float32, 384), Model: "m"}
	first.Vector[0] = 1
	require.NoError(t, store.Put(fp384, first))

	fp768 := cache.Fingerprint("second", "m")
	err := store.Put(fp768, &cache.Entry{Vector: make([]float32, 768), Model: "m"})
	require.Error(t, err)

	var mismatch *cache.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "m", mismatch.Model)
	assert.Equal(t, 384, mismatch.Expected)
	assert.Equal(t, 768, mismatch.Got)

	// Original entry is intact and the offending one was never written.
	got, found, err := store.Get(fp384)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float32(1), got.Vector[0])

	_, found, err = store.Get(fp768)
	require.NoError(t, err)
	assert.False(t, found)

	dims, known, err := store.Dims("m")
	require.NoError(t, err)
	require.True(t, known)
	assert.Equal(t, 384, dims)
}

func TestStoreBulkPutAtomicity(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(cache.Fingerprint("seed", "m"), &cache.Entry{
		Vector: []float32{1, 2},
		Model:  "m",
	}))

	// One bad entry poisons the whole batch.
	batch := map[string]*cache.Entry{
		cache.Fingerprint("a", "m"): {Vector: []float32{1, 2}, Model: "m"},
		cache.Fingerprint("b", "m"): {Vector: []float32{1, 2, 3}, Model: "m"},
	}
	err := store.BulkPut(batch)
	require.Error(t, err)

	for _, text := range []string{"a", "b"} {
		_, found, err := store.Get(cache.Fingerprint(text, "m"))
		require.NoError(t, err)
		assert.False(t, found, "entry %q must not be committed", text)
	}
}

func TestStoreBulkGet(t *testing.T) {
	store := openTestStore(t)

	fps := make([]string, 0, 3)
	for _, text := range []string{"one", "two", "three"} {
		fp := cache.Fingerprint(text, "m")
		fps = append(fps, fp)
		require.NoError(t, store.Put(fp, &cache.Entry{Vector: []float32{1}, Model: "m"}))
	}

	got, err := store.BulkGet(append(fps, cache.Fingerprint("absent", "m")))
	require.NoError(t, err)
	assert.Len(t, got, 3)
	for _, fp := range fps {
		assert.Contains(t, got, fp)
	}
}

func TestStoreFirstWriteWins(t *testing.T) {
	store := openTestStore(t)

	fp := cache.Fingerprint("stable", "m")
	original := &cache.Entry{Vector: []float32{1, 2}, Model: "m", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Put(fp, original))
	require.NoError(t, store.Put(fp, &cache.Entry{Vector: []float32{9, 9}, Model: "m"}))

	got, found, err := store.Get(fp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []float32{1, 2}, got.Vector)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")

	store, err := cache.Open(dir, nil)
	require.NoError(t, err)

	fp := cache.Fingerprint("durable", "m")
	require.NoError(t, store.Put(fp, &cache.Entry{Vector: []float32{4, 5, 6}, Model: "m"}))
	require.NoError(t, store.Close())

	reopened, err := cache.Open(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, found, err := reopened.Get(fp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []float32{4, 5, 6}, got.Vector)

	dims, known, err := reopened.Dims("m")
	require.NoError(t, err)
	require.True(t, known)
	assert.Equal(t, 3, dims)
}

func TestStoreClosed(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())

	_, _, err := store.Get("x")
	assert.ErrorIs(t, err, cache.ErrClosed)
	assert.ErrorIs(t, store.Put("x", &cache.Entry{Vector: []float32{1}, Model: "m"}), cache.ErrClosed)
}
