// Package llm generates grounded answers from retrieved context passages.
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client generates an answer to a question from context passages.
type Client interface {
	Generate(ctx context.Context, question string, contexts []string) (string, error)
	Close() error
}

// Config holds generation settings.
type Config struct {
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}

const answerSystemPrompt = "You answer questions using only the provided context. " +
	"If the context does not contain the answer, say you don't know. Be concise."

// OpenAIClient generates answers through the OpenAI chat API or any
// compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	cfg    Config
}

// NewOpenAIClient creates an answer-generation client.
func NewOpenAIClient(apiKey string, cfg Config) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("Context:\n")
	for i, text := range contexts {
		fmt.Fprintf(&prompt, "[%d] %s\n", i+1, text)
	}
	prompt.WriteString("\nQuestion: ")
	prompt.WriteString(question)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("answer generation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("answer generation: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Close implements Client.
func (c *OpenAIClient) Close() error { return nil }

// MockClient returns a canned answer and records its inputs.
type MockClient struct {
	Answer string

	LastQuestion string
	LastContexts []string
	Err          error
}

// Generate implements Client.
func (m *MockClient) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	m.LastQuestion = question
	m.LastContexts = contexts
	if m.Err != nil {
		return "", m.Err
	}
	if m.Answer == "" {
		return "mock answer", nil
	}
	return m.Answer, nil
}

// Close implements Client.
func (m *MockClient) Close() error { return nil }
