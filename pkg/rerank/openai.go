package rerank

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

const relevancePrompt = `Respond with "True" if PASSAGE is relevant to QUERY and "False" otherwise.
<PASSAGE>
%s
</PASSAGE>
<QUERY>
%s
</QUERY>`

// LLMScorer scores passages by running a boolean relevance classifier prompt
// for each one, concurrently up to MaxConcurrency. The True-token
// log-probability is used as the score when the provider returns logprobs;
// otherwise the verdict text maps to a coarse score.
type LLMScorer struct {
	client    *openai.Client
	model     string
	semaphore chan struct{}
}

// NewLLMScorer creates an LLM-backed scorer. apiKey is required; cfg.BaseURL
// redirects the client to an OpenAI-compatible endpoint.
func NewLLMScorer(apiKey string, cfg Config) (*LLMScorer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("rerank: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 10
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &LLMScorer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		semaphore: make(chan struct{}, cfg.MaxConcurrency),
	}, nil
}

// Score implements Client.
func (s *LLMScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	scores := make([]float64, len(passages))
	errs := make([]error, len(passages))
	var wg sync.WaitGroup

	for i, passage := range passages {
		wg.Add(1)
		go func(i int, passage string) {
			defer wg.Done()

			select {
			case s.semaphore <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-s.semaphore }()

			scores[i], errs[i] = s.scorePassage(ctx, query, passage)
		}(i, passage)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("scoring passage %d: %w", i, err)
		}
	}
	return scores, nil
}

func (s *LLMScorer) scorePassage(ctx context.Context, query, passage string) (float64, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert tasked with determining whether the passage is relevant to the query",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(relevancePrompt, passage, query),
			},
		},
		MaxTokens:   1,
		Temperature: 0,
		LogProbs:    true,
		TopLogProbs: 2,
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Choices) == 0 {
		return 0.5, nil
	}

	choice := resp.Choices[0]
	if choice.LogProbs != nil && len(choice.LogProbs.Content) > 0 {
		return scoreFromLogprobs(choice.LogProbs.Content[0]), nil
	}
	return scoreFromVerdict(choice.Message.Content), nil
}

// scoreFromLogprobs converts the first generated token's logprobs into
// P(relevant).
func scoreFromLogprobs(token openai.LogProb) float64 {
	p := math.Exp(token.LogProb)
	if isAffirmative(token.Token) {
		return p
	}
	return 1 - p
}

func scoreFromVerdict(content string) float64 {
	verdict := strings.TrimSpace(content)
	if i := strings.IndexAny(verdict, " \t\n"); i > 0 {
		verdict = verdict[:i]
	}

	switch {
	case isAffirmative(verdict):
		return 0.8
	case strings.EqualFold(verdict, "false"), strings.EqualFold(verdict, "no"):
		return 0.2
	default:
		return 0.5
	}
}

func isAffirmative(token string) bool {
	token = strings.TrimSpace(token)
	return strings.EqualFold(token, "true") || strings.EqualFold(token, "yes")
}

// Close implements Client.
func (s *LLMScorer) Close() error { return nil }
