package llm_gateway

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ChatChain                  = "chat"
	CropDetailsChain           = "crop_details"
	SchemeExtractChain         = "scheme_extract"
	SchemeExtractFallbackChain = "scheme_extract_fallback"
)

var perplexityModels = []string{"sonar-small-online", "sonar-pro", "sonar-medium-online", "llama-3.1-sonar-small-128k-online"}

func perplexityChain(timeout time.Duration, temperature float32, maxTokens int) Chain {
	chain := make(Chain, 0, len(perplexityModels))
	for _, model := range perplexityModels {
		chain = append(chain, Attempt{
			Provider:    Perplexity,
			Model:       model,
			Timeout:     timeout,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
	}
	return chain
}

func DefaultChains() map[string]Chain {
	return map[string]Chain{
		ChatChain:          perplexityChain(30*time.Second, 0.7, 1000),
		CropDetailsChain:   perplexityChain(45*time.Second, 0.7, 4000),
		SchemeExtractChain: perplexityChain(45*time.Second, 0.3, 4000),
		SchemeExtractFallbackChain: {
			{Provider: OpenAI, Model: "gpt-4o-mini", Timeout: 45 * time.Second, Temperature: 0.2, MaxTokens: 3000},
		},
	}
}

type chainsFile struct {
	Chains map[string]Chain `yaml:"chains"`
}

// LoadChains reads chain overrides from a yaml file and merges them over the
// defaults. A chain named in the file fully replaces the default of that name.
//
//	chains:
//	  chat:
//	    - provider: openai
//	      model: gpt-4o-mini
//	      timeout: 20s
//	      temperature: 0.7
//	      max_tokens: 1000
func LoadChains(path string) (map[string]Chain, error) {
	chains := DefaultChains()
	if path == "" {
		return chains, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading llm chains file: %w", err)
	}

	var file chainsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing llm chains file: %w", err)
	}

	for name, chain := range file.Chains {
		for i, attempt := range chain {
			if attempt.Provider == "" || attempt.Model == "" {
				return nil, fmt.Errorf("chain %v attempt %d must specify provider and model", name, i)
			}
		}
		chains[name] = chain
		slog.Info("loaded llm chain override", "chain", name, "attempts", len(chain))
	}

	return chains, nil
}
