package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// MockClient is a deterministic in-process embedding client used by tests
// and by local runs without provider credentials. Vectors are derived from
// the text content, so identical texts always embed identically.
type MockClient struct {
	model string
	dims  int

	calls atomic.Int64

	mu      sync.Mutex
	failErr error
	failN   int
}

// NewMockClient creates a mock client producing vectors of the given
// dimensionality.
func NewMockClient(model string, dims int) *MockClient {
	if model == "" {
		model = "mock-embed"
	}
	if dims <= 0 {
		dims = 8
	}
	return &MockClient{model: model, dims: dims}
}

// FailNext makes the next n Embed calls return err.
func (m *MockClient) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failN = n
	m.failErr = err
}

// FailAlways makes every Embed call return err until reset with nil.
func (m *MockClient) FailAlways(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failN = -1
	m.failErr = err
}

// Calls returns how many Embed calls reached the mock.
func (m *MockClient) Calls() int {
	return int(m.calls.Load())
}

// Embed implements Client.
func (m *MockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)

	m.mu.Lock()
	if m.failErr != nil && m.failN != 0 {
		err := m.failErr
		if m.failN > 0 {
			m.failN--
			if m.failN == 0 {
				m.failErr = nil
			}
		}
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = m.vectorFor(text)
	}
	return vectors, nil
}

func (m *MockClient) vectorFor(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, m.dims)
	for i := range vec {
		word := binary.LittleEndian.Uint32(sum[(i*4)%28:])
		// Map into [-1, 1), perturbed by position so components differ.
		vec[i] = float32(int32(word+uint32(i)*2654435761)) / float32(1<<31)
	}
	return vec
}

// Model implements Client.
func (m *MockClient) Model() string { return m.model }

// Dimensions implements Client.
func (m *MockClient) Dimensions() int { return m.dims }

// Close implements Client.
func (m *MockClient) Close() error { return nil }
