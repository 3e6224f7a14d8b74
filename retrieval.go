package retrievo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/soundprediction/retrievo/pkg/fusion"
	"github.com/soundprediction/retrievo/pkg/index"
	"github.com/soundprediction/retrievo/pkg/sparse"
	"github.com/soundprediction/retrievo/pkg/types"
	"github.com/soundprediction/retrievo/pkg/utils"
)

// QueryOptions tunes a single query. Zero values fall back to configuration.
type QueryOptions struct {
	// TopK is the number of results to return.
	TopK int

	// UseReranker overrides the configured rerank toggle.
	UseReranker *bool
}

// Query implements Querier. The sparse and dense stages run in parallel and
// their candidate lists are merged with weighted reciprocal rank fusion. A
// failing dense stage degrades to sparse-only results with a warning rather
// than failing the query; a failing rerank pass falls back to fused order.
func (c *Client) Query(ctx context.Context, query string, opts *QueryOptions) (_ *types.QueryResults, err error) {
	defer utils.RecoverAsError(&err)
	start := time.Now()

	if query == "" {
		return nil, errors.New("query text is required")
	}

	topK := c.cfg.Retrieval.TopK
	useReranker := c.cfg.Retrieval.RerankEnabled && c.reranker != nil
	if opts != nil {
		if opts.TopK > 0 {
			topK = opts.TopK
		}
		if opts.UseReranker != nil {
			useReranker = *opts.UseReranker && c.reranker != nil
		}
	}
	if topK <= 0 {
		topK = 10
	}

	if timeout := c.cfg.Retrieval.QueryTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Both stages retrieve a shortlist larger than topK so fusion and
	// reranking have candidates to work with.
	fetchK := topK
	if mult := c.cfg.Retrieval.RerankMultiplier; mult > 1 {
		fetchK = topK * mult
	}

	out := &types.QueryResults{Query: query}

	var sparseHits []sparse.Ranked
	var denseRes denseOutcome
	stageErrs := utils.Gather(ctx, 2,
		func() error {
			sparseHits = c.sparse.Search(query, fetchK)
			return nil
		},
		func() error {
			denseRes = c.retrieveDense(ctx, query, fetchK)
			return denseRes.err
		},
	)

	if stageErrs[0] != nil {
		c.logger.Warn("sparse retrieval failed", "error", stageErrs[0])
		out.Warnings = append(out.Warnings, "sparse retrieval unavailable")
	} else {
		out.SparseOK = true
	}
	if stageErrs[1] != nil {
		c.logger.Warn("dense retrieval degraded to sparse-only", "error", stageErrs[1])
		out.Warnings = append(out.Warnings, "dense retrieval unavailable; results are sparse-only")
	} else {
		out.DenseOK = true
	}

	fused := fusion.Fuse(toRankedItems(sparseHits), denseToRankedItems(denseRes.hits), fusion.Config{
		Alpha:        c.cfg.Retrieval.Alpha,
		RankConstant: c.cfg.Retrieval.RankConstant,
	})

	results := c.hydrate(fused)

	if useReranker && len(results) > 0 {
		if err := c.rerankResults(ctx, query, results); err != nil {
			c.logger.Warn("rerank failed, keeping fused order", "error", err)
			out.Warnings = append(out.Warnings, "rerank unavailable; results are in fused order")
		} else {
			out.Reranked = true
		}
	}

	if len(results) > topK {
		results = results[:topK]
	}
	out.Results = results
	out.Took = time.Since(start)

	c.logger.Debug("query finished",
		"results", len(out.Results),
		"dense_ok", out.DenseOK,
		"reranked", out.Reranked,
		"took", out.Took)
	return out, nil
}

// Ask implements Answerer: retrieve context for the question, then generate
// an answer from it.
func (c *Client) Ask(ctx context.Context, question string, opts *QueryOptions) (*types.Answer, error) {
	if c.generator == nil {
		return nil, errors.New("answer generation is not configured")
	}

	retrieved, err := c.Query(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	// Context passages keep retrieval order, deduplicated by text.
	contexts := make([]string, 0, len(retrieved.Results))
	seen := make(map[string]bool, len(retrieved.Results))
	for _, r := range retrieved.Results {
		if r.Text == "" || seen[r.Text] {
			continue
		}
		seen[r.Text] = true
		contexts = append(contexts, r.Text)
	}

	answer, err := c.generator.Generate(ctx, question, contexts)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &types.Answer{
		Question: question,
		Answer:   answer,
		Results:  retrieved.Results,
	}, nil
}

type denseOutcome struct {
	hits []index.Ranked
	err  error
}

// retrieveDense embeds the query through the worker pool and queries the
// vector index.
func (c *Client) retrieveDense(ctx context.Context, query string, k int) denseOutcome {
	vector, err := c.pool.EmbedText(ctx, query)
	if err != nil {
		return denseOutcome{err: fmt.Errorf("embedding query: %w", err)}
	}

	hits, err := c.dense.Retrieve(ctx, vector, k)
	if err != nil {
		return denseOutcome{err: err}
	}
	return denseOutcome{hits: hits}
}

// hydrate joins fused candidates with the chunk catalog. Chunks missing from
// the catalog keep their id so the caller can resolve them elsewhere.
func (c *Client) hydrate(fused []fusion.Fused) []*types.RetrievalResult {
	results := make([]*types.RetrievalResult, len(fused))
	for i, f := range fused {
		r := &types.RetrievalResult{
			ChunkID:     f.ChunkID,
			SparseRank:  f.SparseRank,
			DenseRank:   f.DenseRank,
			SparseScore: f.SparseScore,
			DenseScore:  f.DenseScore,
			FusedScore:  f.FusedScore,
		}
		if f.SparseRank > 0 {
			r.Sources = append(r.Sources, "sparse")
		}
		if f.DenseRank > 0 {
			r.Sources = append(r.Sources, "dense")
		}
		if chunk, ok := c.sparse.Get(f.ChunkID); ok {
			r.Text = chunk.Text
			r.Metadata = chunk.Metadata
		}
		results[i] = r
	}
	return results
}

// rerankResults scores the candidates and reorders them in place. Scores are
// positional, so the candidate set never changes; ties keep fused order.
func (c *Client) rerankResults(ctx context.Context, query string, results []*types.RetrievalResult) error {
	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Text
	}

	scores, err := c.reranker.Score(ctx, query, passages)
	if err != nil {
		return err
	}
	if len(scores) != len(results) {
		return fmt.Errorf("reranker returned %d scores for %d passages", len(scores), len(results))
	}

	for i := range results {
		score := scores[i]
		results[i].RerankScore = &score
	}
	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].RerankScore > *results[j].RerankScore
	})
	return nil
}

func toRankedItems(hits []sparse.Ranked) []fusion.RankedItem {
	items := make([]fusion.RankedItem, len(hits))
	for i, h := range hits {
		items[i] = fusion.RankedItem{ChunkID: h.ChunkID, Rank: h.Rank, Score: h.Score}
	}
	return items
}

func denseToRankedItems(hits []index.Ranked) []fusion.RankedItem {
	items := make([]fusion.RankedItem, len(hits))
	for i, h := range hits {
		items[i] = fusion.RankedItem{ChunkID: h.ChunkID, Rank: h.Rank, Score: h.Score}
	}
	return items
}
