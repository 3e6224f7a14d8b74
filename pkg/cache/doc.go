/*
Package cache implements the durable fingerprint cache that deduplicates
embedding computation.

A fingerprint is a deterministic key derived from the normalized chunk text
and the embedding model identifier. The store maps fingerprints to embedding
vectors and survives process restarts; it is backed by Badger, so reads never
touch the network.

The store guards dimensional consistency per model: once a model has stored
an entry with a given dimensionality, a put with a different dimensionality
fails with DimensionMismatchError instead of overwriting. This protects
against silently serving embeddings from two incompatible model generations.

All operations are linearizable per key; bulk writes are committed in a
single transaction so a failed batch leaves no partial state behind.
*/
package cache
