// Package types defines the shared data model of the retrieval core:
// chunks, retrieval results, query responses, and the context keys used for
// request-scoped telemetry.
package types
