package llm_gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type CompletionRequest struct {
	Model       string
	Prompt      Prompt
	Temperature float32
	MaxTokens   int
}

// Provider defines the interface for chat completion backends
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// OpenAICompatible talks to any api implementing the openai chat completion
// endpoint, which covers both perplexity and openai.
type OpenAICompatible struct {
	client *openai.Client
}

func NewOpenAICompatible(config ProviderConfig) *OpenAICompatible {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	} else {
		clientConfig.HTTPClient = DefaultHTTPClient()
	}
	return &OpenAICompatible{client: openai.NewClientWithConfig(clientConfig)}
}

func (p *OpenAICompatible) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.Prompt.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt.User,
			},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("error creating chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

// NewProviderFunc is the provider factory. Tests replace NewProvider to
// avoid calling real apis.
type NewProviderFunc func(provider string, config ProviderConfig) (Provider, error)

var NewProvider NewProviderFunc = func(provider string, config ProviderConfig) (Provider, error) {
	switch strings.ToLower(provider) {
	case Perplexity:
		if config.BaseURL == "" {
			config.BaseURL = PerplexityBaseURL
		}
	case OpenAI:
		if config.BaseURL == "" {
			config.BaseURL = OpenAIBaseURL
		}
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	if config.APIKey == "" {
		return nil, fmt.Errorf("API key required for %v: %w", provider, ErrProviderNotConfigured)
	}

	return NewOpenAICompatible(config), nil
}
