// Package fusion merges the sparse and dense candidate lists with weighted
// reciprocal rank fusion.
package fusion

import "sort"

// RankedItem is one candidate from a retrieval stage, rank 1 being best.
type RankedItem struct {
	ChunkID string
	Rank    int
	Score   float64
}

// Config holds the fusion parameters.
type Config struct {
	// Alpha weights the dense contribution; 1-Alpha weights the sparse
	// contribution. 0.5 treats both stages equally.
	Alpha float64

	// RankConstant is the k in 1/(k+rank). Larger values flatten the
	// difference between adjacent ranks.
	RankConstant int
}

func (c Config) withDefaults() Config {
	if c.Alpha < 0 || c.Alpha > 1 {
		c.Alpha = 0.5
	}
	if c.RankConstant <= 0 {
		c.RankConstant = 60
	}
	return c
}

// Fused is a merged candidate. A rank of 0 means the stage did not surface
// the chunk.
type Fused struct {
	ChunkID     string
	SparseRank  int
	DenseRank   int
	SparseScore float64
	DenseScore  float64
	FusedScore  float64
}

// Fuse merges two ranked lists. Each chunk scores
//
//	alpha/(k+denseRank) + (1-alpha)/(k+sparseRank)
//
// summing only over the stages that surfaced it. The result is ordered by
// fused score descending; exact ties prefer the chunk with the better dense
// rank, then the lower chunk id, so the ordering is fully deterministic.
func Fuse(sparse, dense []RankedItem, cfg Config) []Fused {
	cfg = cfg.withDefaults()
	k := float64(cfg.RankConstant)

	merged := make(map[string]*Fused, len(sparse)+len(dense))

	for _, item := range sparse {
		f := &Fused{ChunkID: item.ChunkID, SparseRank: item.Rank, SparseScore: item.Score}
		f.FusedScore += (1 - cfg.Alpha) / (k + float64(item.Rank))
		merged[item.ChunkID] = f
	}
	for _, item := range dense {
		f, ok := merged[item.ChunkID]
		if !ok {
			f = &Fused{ChunkID: item.ChunkID}
			merged[item.ChunkID] = f
		}
		f.DenseRank = item.Rank
		f.DenseScore = item.Score
		f.FusedScore += cfg.Alpha / (k + float64(item.Rank))
	}

	out := make([]Fused, 0, len(merged))
	for _, f := range merged {
		out = append(out, *f)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if better, decided := betterDense(out[i], out[j]); decided {
			return better
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

// betterDense resolves a score tie in favor of the chunk the dense stage
// ranked higher; chunks the dense stage surfaced at all beat chunks it did
// not.
func betterDense(a, b Fused) (bool, bool) {
	switch {
	case a.DenseRank > 0 && b.DenseRank == 0:
		return true, true
	case a.DenseRank == 0 && b.DenseRank > 0:
		return false, true
	case a.DenseRank > 0 && b.DenseRank > 0 && a.DenseRank != b.DenseRank:
		return a.DenseRank < b.DenseRank, true
	}
	return false, false
}
