package embedder

import "context"

// Client is the embedding provider contract. Embed must preserve input
// order in its output so callers can zip vectors back to texts by position,
// and calls are all-or-nothing: a returned error means no vector was
// produced for any input.
type Client interface {
	// Embed generates one embedding per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model identifier used for fingerprints.
	Model() string

	// Dimensions returns the expected vector dimensionality, or 0 when the
	// provider does not declare it up front.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}

// Config holds common embedding client settings.
type Config struct {
	// Model is the embedding model identifier.
	Model string

	// BaseURL overrides the provider endpoint, e.g. for a local
	// OpenAI-compatible server.
	BaseURL string

	// Dimensions is the expected vector size; 0 means accept whatever the
	// provider returns.
	Dimensions int
}
