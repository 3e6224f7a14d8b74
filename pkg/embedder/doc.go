// Package embedder provides text embedding provider clients.
//
// The Client interface models the external embedding provider: an ordered
// batch of texts in, an ordered batch of fixed-length float32 vectors out.
// Providers are slow and fallible, so the package ships two composable
// wrappers in the same style:
//
//   - RetryClient retries transient failures with exponential backoff.
//   - CircuitBreakerClient stops hammering a provider that keeps failing
//     and raises an alert when the breaker trips.
//
// The OpenAI implementation speaks any OpenAI-compatible embeddings API
// (including local servers exposing that surface) via a configurable base
// URL.
package embedder
