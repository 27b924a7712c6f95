package llm_gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type ErrorKind int

const (
	// KindModel covers rejected model names, invalid requests, non-json
	// error bodies and empty completions. The chain moves on.
	KindModel ErrorKind = iota
	// KindConfiguration means the provider of an attempt is not configured.
	// The chain moves on.
	KindConfiguration
	KindTimeout
	KindNetwork
	KindUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindConfiguration:
		return "configuration"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	default:
		return "upstream"
	}
}

func (k ErrorKind) Retryable() bool {
	return k == KindModel || k == KindConfiguration
}

var (
	ErrEmptyCompletion       = errors.New("completion contained no choices")
	ErrProviderNotConfigured = errors.New("provider is not configured")
	ErrUnknownChain          = errors.New("unknown chain")
	ErrEmptyChain            = errors.New("chain has no attempts")
)

// AttemptError is the classified failure of one attempt.
type AttemptError struct {
	Kind     ErrorKind
	Provider string
	Model    string
	Err      error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%v/%v: %v error: %v", e.Provider, e.Model, e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

func mentionsModel(message string) bool {
	message = strings.ToLower(message)
	return strings.Contains(message, "model") || strings.Contains(message, "invalid")
}

// Classify maps an error from a provider call to its kind.
func Classify(err error) ErrorKind {
	if errors.Is(err, ErrProviderNotConfigured) {
		return KindConfiguration
	}
	if errors.Is(err, ErrEmptyCompletion) {
		return KindModel
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if mentionsModel(apiErr.Message) {
			return KindModel
		}
		return KindUpstream
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		// Error responses without a json body.
		return KindModel
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	return KindUpstream
}

// ChatFailureMessage turns the final error of a chat chain into the message
// shown to the user.
func ChatFailureMessage(err error) string {
	var attemptErr *AttemptError
	if errors.As(err, &attemptErr) {
		switch attemptErr.Kind {
		case KindModel, KindConfiguration:
			return "AI service configuration issue. Please contact support."
		case KindTimeout:
			return "Request timed out. Please try again."
		case KindNetwork:
			return "Network error. Please check your internet connection and try again."
		}
	}
	return "AI service is temporarily unavailable. Please try again in a moment."
}
