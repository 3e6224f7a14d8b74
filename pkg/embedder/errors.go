package embedder

import (
	"errors"
	"fmt"
)

// ErrRateLimit indicates the provider rate limit was exceeded.
var ErrRateLimit = errors.New("embedding provider rate limit exceeded")

// ProviderError wraps a failed provider call. It surfaces to the caller of
// the originating embedding request once retries are exhausted.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for ProviderError.
func (e *ProviderError) Is(target error) bool {
	_, ok := target.(*ProviderError)
	return ok
}

// RateLimitError is a rate limit failure with an optional provider message.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return ErrRateLimit.Error()
	}
	return e.Message
}

// Is implements errors.Is support for RateLimitError.
func (e *RateLimitError) Is(target error) bool {
	if _, ok := target.(*RateLimitError); ok {
		return true
	}
	return target == ErrRateLimit
}
