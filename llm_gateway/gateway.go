package llm_gateway

import (
	"context"
	"errors"
	"fmt"
	"localfarmer/utils/logging"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var attemptMetric = promauto.NewSummaryVec(prometheus.SummaryOpts{
	Name: "llm_attempt_seconds", Help: "LLM completion attempts by provider, model and outcome",
}, []string{"provider", "model", "outcome"})

// Gateway runs named chains of attempts against the configured providers.
type Gateway struct {
	providers map[string]Provider
	chains    map[string]Chain
}

// NewGateway creates a provider for every config with credentials. Attempts
// naming a provider that could not be created fail as configuration errors
// and the chain continues.
func NewGateway(configs map[string]ProviderConfig, chains map[string]Chain) *Gateway {
	providers := make(map[string]Provider, len(configs))
	for name, config := range configs {
		provider, err := NewProvider(name, config)
		if err != nil {
			slog.Warn("llm provider unavailable", "provider", name, "error", err, "code", logging.LLM_ATTEMPT)
			continue
		}
		providers[name] = provider
	}
	return &Gateway{providers: providers, chains: chains}
}

func (g *Gateway) HasChain(name string) bool {
	chain, ok := g.chains[name]
	return ok && len(chain) > 0
}

func (g *Gateway) attempt(ctx context.Context, attempt Attempt, prompt Prompt) (string, error) {
	provider, ok := g.providers[attempt.Provider]
	if !ok {
		return "", &AttemptError{Kind: KindConfiguration, Provider: attempt.Provider, Model: attempt.Model, Err: ErrProviderNotConfigured}
	}

	if attempt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, attempt.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := provider.Complete(ctx, CompletionRequest{
		Model:       attempt.Model,
		Prompt:      prompt,
		Temperature: attempt.Temperature,
		MaxTokens:   attempt.MaxTokens,
	})
	if err == nil && text == "" {
		err = ErrEmptyCompletion
	}
	if err != nil {
		kind := Classify(err)
		attemptMetric.WithLabelValues(attempt.Provider, attempt.Model, kind.String()).Observe(time.Since(start).Seconds())
		return "", &AttemptError{Kind: kind, Provider: attempt.Provider, Model: attempt.Model, Err: err}
	}
	attemptMetric.WithLabelValues(attempt.Provider, attempt.Model, "success").Observe(time.Since(start).Seconds())
	return text, nil
}

// Run executes the attempts of a chain in order until one succeeds or a
// failure is terminal. The returned error is the last attempt's error.
func (g *Gateway) Run(ctx context.Context, chainName string, prompt Prompt) (string, error) {
	chain, ok := g.chains[chainName]
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrUnknownChain, chainName)
	}
	if len(chain) == 0 {
		return "", fmt.Errorf("%w: %v", ErrEmptyChain, chainName)
	}

	var lastErr error
	for i, attempt := range chain {
		text, err := g.attempt(ctx, attempt, prompt)
		if err == nil {
			slog.Info("llm attempt succeeded", "chain", chainName, "attempt", i, "provider", attempt.Provider, "model", attempt.Model, "code", logging.LLM_ATTEMPT)
			return text, nil
		}

		lastErr = err

		var attemptErr *AttemptError
		if errors.As(err, &attemptErr) && attemptErr.Kind.Retryable() {
			slog.Warn("llm attempt failed, trying next", "chain", chainName, "attempt", i, "error", err, "code", logging.LLM_ATTEMPT)
			continue
		}

		slog.Error("llm attempt failed", "chain", chainName, "attempt", i, "error", err, "code", logging.LLM_ATTEMPT)
		break
	}

	return "", lastErr
}
