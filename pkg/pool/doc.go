/*
Package pool implements the embedding worker pool: a fixed set of workers
that turn a stream of embedding requests into resolved vectors with as few
provider calls as possible.

Workers pull from a shared bounded queue and micro-batch requests: a batch
closes when it reaches the configured maximum size or when the configured
wait window elapses after its first request, whichever comes first. Each
batch is partitioned against the fingerprint cache; only uncached texts go
to the provider, in one ordered call per batch.

Requests are coalesced by fingerprint. While a fingerprint is in flight,
additional submissions attach to the pending completion handle instead of
enqueuing duplicate work, so at most one outstanding provider call covers a
given fingerprint at any instant.

Failure is atomic per batch: if the provider call fails or a vector fails
dimensionality validation, no fingerprint from that call is committed to the
cache and every attached request observes the error.
*/
package pool
