// Package index defines the contract for the external vector similarity
// index and provides a local in-memory implementation of it.
//
// The index is an external collaborator from the core's point of view: it
// owns its own search algorithm and tie-breaking; the core only upserts
// vectors keyed by chunk id and issues top-K nearest-neighbor queries. The
// in-memory implementation backs tests, local runs, and serves as the
// reference behavior for the contract.
package index
