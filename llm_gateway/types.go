package llm_gateway

import (
	"net/http"
	"time"
)

const (
	Perplexity = "perplexity"
	OpenAI     = "openai"

	PerplexityBaseURL = "https://api.perplexity.ai"
	OpenAIBaseURL     = "https://api.openai.com/v1"
)

// Prompt is a single system + user exchange sent to a chat completion model.
type Prompt struct {
	System string
	User   string
}

// Attempt is one step of a chain: a model on a provider with its own
// timeout and sampling settings.
type Attempt struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// Chain is an ordered list of attempts. Later attempts only run when an
// earlier one fails with a retryable error.
type Chain []Attempt

// ProviderConfig holds configuration for an LLM provider
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// DefaultHTTPClient returns an http.Client with sensible defaults. Per attempt
// timeouts are applied through the request context.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
