package llm_gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	results map[string]error
	calls   []string
}

func (p *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	p.calls = append(p.calls, req.Model)
	if err, ok := p.results[req.Model]; ok && err != nil {
		return "", err
	}
	return "answer from " + req.Model, nil
}

func withFakeProvider(t *testing.T, fake *fakeProvider) {
	prevProvider := NewProvider
	t.Cleanup(func() { NewProvider = prevProvider })

	NewProvider = func(provider string, config ProviderConfig) (Provider, error) {
		return fake, nil
	}
}

func TestRunRetriesModelErrors(t *testing.T) {
	fake := &fakeProvider{results: map[string]error{
		"a": ErrEmptyCompletion,
		"b": ErrEmptyCompletion,
	}}
	withFakeProvider(t, fake)

	gateway := NewGateway(map[string]ProviderConfig{Perplexity: {}}, map[string]Chain{
		"test": {{Provider: Perplexity, Model: "a"}, {Provider: Perplexity, Model: "b"}, {Provider: Perplexity, Model: "c"}},
	})

	text, err := gateway.Run(context.Background(), "test", Prompt{User: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "answer from c", text)
	assert.Equal(t, []string{"a", "b", "c"}, fake.calls)
}

func TestRunStopsOnTerminalError(t *testing.T) {
	fake := &fakeProvider{results: map[string]error{
		"a": context.DeadlineExceeded,
	}}
	withFakeProvider(t, fake)

	gateway := NewGateway(map[string]ProviderConfig{Perplexity: {}}, map[string]Chain{
		"test": {{Provider: Perplexity, Model: "a"}, {Provider: Perplexity, Model: "b"}},
	})

	_, err := gateway.Run(context.Background(), "test", Prompt{User: "hi"})
	var attemptErr *AttemptError
	if !errors.As(err, &attemptErr) {
		t.Fatalf("expected attempt error, got %v", err)
	}
	assert.Equal(t, KindTimeout, attemptErr.Kind)
	assert.Equal(t, []string{"a"}, fake.calls)
	assert.Equal(t, "Request timed out. Please try again.", ChatFailureMessage(err))
}

func TestRunSkipsUnconfiguredProvider(t *testing.T) {
	fake := &fakeProvider{}
	withFakeProvider(t, fake)

	gateway := NewGateway(map[string]ProviderConfig{Perplexity: {}}, map[string]Chain{
		"test": {{Provider: OpenAI, Model: "gpt"}, {Provider: Perplexity, Model: "sonar"}},
	})

	text, err := gateway.Run(context.Background(), "test", Prompt{User: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "answer from sonar", text)
}

func TestRunUnknownChain(t *testing.T) {
	gateway := &Gateway{providers: map[string]Provider{}, chains: map[string]Chain{}}
	_, err := gateway.Run(context.Background(), "missing", Prompt{})
	assert.True(t, errors.Is(err, ErrUnknownChain))
}

func TestNewProviderRequiresKey(t *testing.T) {
	_, err := NewProvider(Perplexity, ProviderConfig{})
	assert.True(t, errors.Is(err, ErrProviderNotConfigured))

	_, err = NewProvider("bard", ProviderConfig{APIKey: "x"})
	assert.Error(t, err)
}

func completionServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}

		switch body.Model {
		case "bad-model":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"Invalid model 'bad-model'","type":"invalid_request_error"}}`))
		case "html":
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`<html>bad gateway</html>`))
		case "quota":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"Rate limit exceeded","type":"rate_limit_error"}}`))
		case "slow":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		default:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"good","choices":[{"index":0,"message":{"role":"assistant","content":"hello farmer"},"finish_reason":"stop"}]}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAICompatibleClassification(t *testing.T) {
	server := completionServer(t)

	gateway := NewGateway(map[string]ProviderConfig{
		Perplexity: {APIKey: "key", BaseURL: server.URL},
	}, map[string]Chain{
		"retry":   {{Provider: Perplexity, Model: "bad-model"}, {Provider: Perplexity, Model: "html"}, {Provider: Perplexity, Model: "good"}},
		"quota":   {{Provider: Perplexity, Model: "quota"}, {Provider: Perplexity, Model: "good"}},
		"timeout": {{Provider: Perplexity, Model: "slow", Timeout: 50 * time.Millisecond}, {Provider: Perplexity, Model: "good"}},
	})

	text, err := gateway.Run(context.Background(), "retry", Prompt{System: "s", User: "u"})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "hello farmer", text)

	_, err = gateway.Run(context.Background(), "quota", Prompt{User: "u"})
	var attemptErr *AttemptError
	if !errors.As(err, &attemptErr) {
		t.Fatalf("expected attempt error, got %v", err)
	}
	assert.Equal(t, KindUpstream, attemptErr.Kind)
	assert.Equal(t, "AI service is temporarily unavailable. Please try again in a moment.", ChatFailureMessage(err))

	_, err = gateway.Run(context.Background(), "timeout", Prompt{User: "u"})
	if !errors.As(err, &attemptErr) {
		t.Fatalf("expected attempt error, got %v", err)
	}
	assert.Equal(t, KindTimeout, attemptErr.Kind)
}

func TestClassifyModelErrorMessage(t *testing.T) {
	err := &AttemptError{Kind: KindModel, Provider: Perplexity, Model: "x", Err: ErrEmptyCompletion}
	assert.Equal(t, "AI service configuration issue. Please contact support.", ChatFailureMessage(err))
	assert.Equal(t, "AI service is temporarily unavailable. Please try again in a moment.", ChatFailureMessage(errors.New("boom")))
}

func TestLoadChains(t *testing.T) {
	chains, err := LoadChains("")
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, chains[ChatChain], 4)
	assert.Equal(t, 30*time.Second, chains[ChatChain][0].Timeout)
	assert.Equal(t, "gpt-4o-mini", chains[SchemeExtractFallbackChain][0].Model)

	path := filepath.Join(t.TempDir(), "chains.yaml")
	config := `
chains:
  chat:
    - provider: openai
      model: gpt-4o-mini
      timeout: 20s
      temperature: 0.5
      max_tokens: 800
`
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	chains, err = LoadChains(path)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, Chain{{Provider: OpenAI, Model: "gpt-4o-mini", Timeout: 20 * time.Second, Temperature: 0.5, MaxTokens: 800}}, chains[ChatChain])
	assert.Len(t, chains[CropDetailsChain], 4)

	if err := os.WriteFile(path, []byte("chains:\n  chat:\n    - model: x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = LoadChains(path)
	assert.Error(t, err)
}
