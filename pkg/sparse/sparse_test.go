package sparse_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/retrievo/pkg/sparse"
	"github.com/soundprediction/retrievo/pkg/types"
)

func chunk(id, text string) *types.Chunk {
	return &types.Chunk{ID: id, Text: text}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"cats", "are", "mammals"},
		sparse.Tokenize("Cats are mammals."))
	assert.Equal(t,
		[]string{"foo", "bar", "42"},
		sparse.Tokenize("  Foo—bar, 42! "))
	assert.Empty(t, sparse.Tokenize("...!?"))
}

func TestSearchRanksByTermMatch(t *testing.T) {
	x := sparse.NewIndex()
	x.Add(chunk("a", "cats are mammals"))
	x.Add(chunk("b", "dogs are mammals too"))
	x.Add(chunk("c", "submarines are vehicles"))

	results := x.Search("cats mammals", 10)
	require.NotEmpty(t, results)

	// Only a and b contain a query term; c must be excluded entirely.
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID, "the only chunk containing both terms must rank first")
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "b", results[1].ChunkID)
	assert.Less(t, results[1].Score, results[0].Score)
}

func TestSearchExcludesNonMatching(t *testing.T) {
	x := sparse.NewIndex()
	x.Add(chunk("a", "cats are mammals"))
	x.Add(chunk("b", "quantum chromodynamics"))

	results := x.Search("cats", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
}

func TestSearchEmptyQueryAndEmptyIndex(t *testing.T) {
	x := sparse.NewIndex()
	assert.Empty(t, x.Search("anything", 10))

	x.Add(chunk("a", "some text"))
	assert.Empty(t, x.Search("", 10))
	assert.Empty(t, x.Search("   !!!", 10))
	assert.Empty(t, x.Search("some", 0))
}

func TestSearchTieBreakByChunkID(t *testing.T) {
	x := sparse.NewIndex()
	// Identical texts produce identical scores.
	x.Add(chunk("z", "orbital mechanics"))
	x.Add(chunk("a", "orbital mechanics"))
	x.Add(chunk("m", "orbital mechanics"))

	results := x.Search("orbital", 10)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "m", results[1].ChunkID)
	assert.Equal(t, "z", results[2].ChunkID)
}

func TestSearchTopKTruncation(t *testing.T) {
	x := sparse.NewIndex()
	for i := 0; i < 20; i++ {
		x.Add(chunk(fmt.Sprintf("c%02d", i), "shared term"))
	}

	results := x.Search("shared", 5)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestAddReplacesExisting(t *testing.T) {
	x := sparse.NewIndex()
	x.Add(chunk("a", "cats are mammals"))
	x.Add(chunk("a", "submarines are vehicles"))

	assert.Equal(t, 1, x.Len())
	assert.Empty(t, x.Search("cats", 10))
	require.Len(t, x.Search("submarines", 10), 1)

	got, ok := x.Get("a")
	require.True(t, ok)
	assert.Equal(t, "submarines are vehicles", got.Text)
}

func TestRemove(t *testing.T) {
	x := sparse.NewIndex()
	x.Add(chunk("a", "cats are mammals"))
	x.Add(chunk("b", "dogs are mammals too"))

	x.Remove("a")
	assert.Equal(t, 1, x.Len())
	assert.Empty(t, x.Search("cats", 10))

	_, ok := x.Get("a")
	assert.False(t, ok)

	// Unknown id is a no-op.
	x.Remove("never-indexed")
	assert.Equal(t, 1, x.Len())
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	x := sparse.NewIndex()
	for i := 0; i < 50; i++ {
		x.Add(chunk(fmt.Sprintf("seed%02d", i), "stable seed document"))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			x.Add(chunk(fmt.Sprintf("w%03d", i), "freshly written document"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = x.Search("document", 10)
			_, _ = x.Get("seed00")
		}
	}()
	wg.Wait()

	assert.Equal(t, 250, x.Len())
}
