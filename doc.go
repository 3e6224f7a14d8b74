/*
Package retrievo implements the retrieval core of a document question
answering service: hybrid sparse plus dense retrieval with weighted
reciprocal rank fusion, an embedding worker pool with a persistent
fingerprint cache, and an optional rerank stage.

The Client ties the pieces together. Ingested chunks are indexed lexically
right away and semantically once the worker pool resolves their embeddings;
queries run both stages in parallel and merge the candidate lists. Stage
failures degrade the response instead of failing it: an unreachable vector
index yields sparse-only results and a failed rerank pass keeps fused order,
in both cases with a warning attached to the response.

	cfg, _ := config.Load()
	client, err := retrievo.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close(ctx)

	client.Ingest(ctx, chunks)
	results, err := client.Query(ctx, "how do submarines navigate?", nil)
*/
package retrievo
