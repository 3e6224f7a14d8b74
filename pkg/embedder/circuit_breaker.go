package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/retrievo/pkg/alert"
	"github.com/soundprediction/retrievo/pkg/config"
)

// CircuitBreakerClient wraps a Client with circuit breaking logic. While
// the breaker is open, calls fail immediately with a ProviderError.
type CircuitBreakerClient struct {
	client  Client
	cb      *gobreaker.CircuitBreaker
	alerter alert.Alerter
	name    string
}

// NewCircuitBreakerClient creates a new circuit breaker client.
func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, name string) *CircuitBreakerClient {
	if alerter == nil {
		alerter = &alert.NoOpAlerter{}
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				msg := fmt.Sprintf("Circuit breaker %q changed status from %s to %s. Too many embedding provider failures detected.", name, from, to)
				if err := alerter.Alert(fmt.Sprintf("URGENT: Circuit Breaker Tripped - %s", name), msg); err != nil {
					slog.Error("failed to send circuit breaker alert", "breaker", name, "error", err)
				}
				slog.Warn("circuit breaker tripped", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	}

	return &CircuitBreakerClient{
		client:  client,
		cb:      gobreaker.NewCircuitBreaker(st),
		alerter: alerter,
		name:    name,
	}
}

// Embed implements Client.
func (c *CircuitBreakerClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Embed(ctx, texts)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &ProviderError{Provider: c.name, Err: err}
		}
		return nil, err
	}
	return vectors.([][]float32), nil
}

// Model implements Client.
func (c *CircuitBreakerClient) Model() string { return c.client.Model() }

// Dimensions implements Client.
func (c *CircuitBreakerClient) Dimensions() int { return c.client.Dimensions() }

// Close implements Client.
func (c *CircuitBreakerClient) Close() error { return c.client.Close() }
