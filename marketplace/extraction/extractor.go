package extraction

import (
	"context"
	"errors"
	"fmt"
	"localfarmer/llm_gateway"
	"localfarmer/utils/logging"
	"log/slog"
	"net/http"
	"time"
)

var (
	ErrNoInput        = errors.New("Content or URL is required")
	ErrNoContent      = errors.New("Could not extract content from URL")
	errUnparseable    = errors.New("could not parse json from ai response")
	errNoValidSchemes = errors.New("no valid schemes found in extracted data")
)

const (
	defaultFailureText  = "Could not extract schemes from the provided content."
	timeoutFailureText  = "Request timed out. The website may be slow. Please try again."
	parseFailureText    = "Could not parse scheme data. Please try with a different URL or ensure the content contains scheme information."
	noSchemeFailureText = "No government schemes found in the provided content. Please try a different URL or page."
)

// FetchError is returned when a url was given but could not be downloaded.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Failed to fetch URL: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Result struct {
	Schemes []Scheme
	Source  string
	Url     string
	// Message explains an empty result.
	Message string
}

type Extractor struct {
	gateway *llm_gateway.Gateway
	client  *http.Client
	now     func() time.Time
}

func NewExtractor(gateway *llm_gateway.Gateway, client *http.Client) *Extractor {
	if client == nil {
		client = DefaultFetchClient()
	}
	return &Extractor{gateway: gateway, client: client, now: time.Now}
}

// Extract finds government schemes in content, or in the page at url when no
// content is given. Model failures never surface as errors; they produce an
// empty result with an advisory message. Only missing input and fetch
// failures are returned as errors.
func (e *Extractor) Extract(ctx context.Context, content, url string) (Result, error) {
	if content == "" && url == "" {
		return Result{}, ErrNoInput
	}

	source := DetectPortal(url)

	if content == "" {
		page, err := FetchPage(ctx, e.client, url)
		if err != nil {
			slog.Warn("unable to fetch scheme page", "url", url, "error", err, "code", logging.LLM_EXTRACT)
			return Result{}, &FetchError{Err: err}
		}
		content = page
	}

	content = CleanContent(content)
	if content == "" {
		return Result{}, ErrNoContent
	}

	prompt := BuildPrompt(source, url, Truncate(content), e.now())

	var lastErr error
	for _, chain := range []string{llm_gateway.SchemeExtractChain, llm_gateway.SchemeExtractFallbackChain} {
		if !e.gateway.HasChain(chain) {
			continue
		}

		reply, err := e.gateway.Run(ctx, chain, prompt)
		if err != nil {
			var attemptErr *llm_gateway.AttemptError
			unconfigured := errors.As(err, &attemptErr) && attemptErr.Kind == llm_gateway.KindConfiguration
			if !unconfigured || lastErr == nil {
				lastErr = err
			}
			continue
		}

		parsed, ok := ParseResponse(reply)
		if !ok {
			if lastErr == nil {
				lastErr = errUnparseable
			}
			continue
		}

		schemes := CleanSchemes(parsed, url)
		if len(schemes) == 0 {
			if lastErr == nil {
				lastErr = errNoValidSchemes
			}
			continue
		}

		slog.Info("extracted schemes", "chain", chain, "count", len(schemes), "source", source, "code", logging.LLM_EXTRACT)
		return Result{Schemes: schemes, Source: source, Url: url}, nil
	}

	slog.Warn("scheme extraction produced no schemes", "source", source, "error", lastErr, "code", logging.LLM_EXTRACT)

	return Result{Schemes: []Scheme{}, Source: source, Url: url, Message: failureMessage(lastErr)}, nil
}

func failureMessage(err error) string {
	if err == nil {
		return defaultFailureText
	}
	switch {
	case errors.Is(err, errUnparseable):
		return parseFailureText
	case errors.Is(err, errNoValidSchemes):
		return noSchemeFailureText
	}

	var attemptErr *llm_gateway.AttemptError
	if errors.As(err, &attemptErr) {
		switch attemptErr.Kind {
		case llm_gateway.KindTimeout:
			return timeoutFailureText
		case llm_gateway.KindConfiguration:
			return "Extraction failed: AI service is not configured"
		}
		return fmt.Sprintf("Extraction failed: %v", attemptErr.Err)
	}
	return fmt.Sprintf("Extraction failed: %v", err)
}
