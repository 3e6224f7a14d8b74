package utils_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/retrievo/pkg/utils"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, utils.CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, utils.CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, utils.CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Degenerate inputs score zero.
	assert.Zero(t, utils.CosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Zero(t, utils.CosineSimilarity(nil, nil))
	assert.Zero(t, utils.CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestNormalizeL2(t *testing.T) {
	got := utils.NormalizeL2([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(got[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(got[1]), 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, utils.NormalizeL2(zero))
}

func TestGatherRunsAllAndKeepsErrorSlots(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int32

	errs := utils.Gather(context.Background(), 2,
		func() error { ran.Add(1); return nil },
		func() error { ran.Add(1); return boom },
		func() error { ran.Add(1); return nil },
	)

	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], boom)
	assert.NoError(t, errs[2])
	assert.Equal(t, int32(3), ran.Load())
}

func TestGatherRecoversPanics(t *testing.T) {
	errs := utils.Gather(context.Background(), 1,
		func() error { panic("worker exploded") },
	)

	require.Len(t, errs, 1)
	var panicErr *utils.PanicError
	require.ErrorAs(t, errs[0], &panicErr)
	assert.Contains(t, panicErr.Error(), "worker exploded")
}

func TestGatherWithResults(t *testing.T) {
	results, errs := utils.GatherWithResults(context.Background(), 0,
		func() (int, error) { return 10, nil },
		func() (int, error) { return 0, errors.New("nope") },
		func() (int, error) { return 30, nil },
	)

	require.Len(t, results, 3)
	assert.Equal(t, 10, results[0])
	assert.Error(t, errs[1])
	assert.Equal(t, 30, results[2])
}

func TestBatch(t *testing.T) {
	batches := utils.Batch([]int{1, 2, 3, 4, 5}, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []int{1, 2}, batches[0])
	assert.Equal(t, []int{3, 4}, batches[1])
	assert.Equal(t, []int{5}, batches[2])

	assert.Empty(t, utils.Batch([]int(nil), 2))
}

func TestRecoverAsError(t *testing.T) {
	fn := func() (err error) {
		defer utils.RecoverAsError(&err)
		panic("bad state")
	}

	err := fn()
	var panicErr *utils.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.NotEmpty(t, panicErr.StackTrace)
}
