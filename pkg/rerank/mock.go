package rerank

import (
	"context"
	"strings"
	"sync"
)

// MockScorer is a deterministic scorer for tests: each passage scores the
// fraction of query tokens it contains.
type MockScorer struct {
	mu      sync.Mutex
	failErr error
	calls   int
}

// NewMockScorer creates a mock scorer.
func NewMockScorer() *MockScorer {
	return &MockScorer{}
}

// FailWith makes every Score call return err until reset with nil.
func (m *MockScorer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Calls returns how many Score calls reached the mock.
func (m *MockScorer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Score implements Client.
func (m *MockScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	m.mu.Lock()
	m.calls++
	err := m.failErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))
	scores := make([]float64, len(passages))
	for i, passage := range passages {
		if len(terms) == 0 {
			continue
		}
		lower := strings.ToLower(passage)
		matched := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				matched++
			}
		}
		scores[i] = float64(matched) / float64(len(terms))
	}
	return scores, nil
}

// Close implements Client.
func (m *MockScorer) Close() error { return nil }
