package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a provider failure so the orchestrator can branch
// on it explicitly instead of string-matching error text.
type ErrorKind string

const (
	ErrorTransient ErrorKind = "transient"  // network failure, timeout, 5xx
	ErrorAuth      ErrorKind = "auth"       // 401/403, bad or revoked key
	ErrorRateLimit ErrorKind = "rate_limit" // 429
	ErrorUnknown   ErrorKind = "unknown"
)

// ErrCredentialMissing marks a provider skipped because no usable
// credential is configured. Skips are not counted as fallback attempts.
var ErrCredentialMissing = errors.New("no valid credential")

// ProviderError wraps a failure from one provider attempt with its
// classification. It triggers advancement to the next eligible provider.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a classified provider failure.
func NewProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// ClassifyStatus maps an HTTP status code to an error kind.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return ErrorAuth
	case status == 429:
		return ErrorRateLimit
	case status == 408 || status >= 500:
		return ErrorTransient
	default:
		return ErrorUnknown
	}
}

// ProviderFailure records one provider's failure reason during a
// fallback pass, in the order the providers were tried.
type ProviderFailure struct {
	Provider string
	Err      error
}

// AllProvidersFailedError is raised when every eligible provider in the
// fallback chain failed. Failures holds the ordered per-provider reasons.
type AllProvidersFailedError struct {
	Failures []ProviderFailure
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Failures) == 0 {
		return "no eligible providers"
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Provider, f.Err)
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// ToolLoopExceededError is raised when a model keeps requesting tools past
// the configured follow-up depth. Transcript holds the conversation up to
// and including the last successful tool fold, so the caller can inspect
// or retry.
type ToolLoopExceededError struct {
	Depth      int
	Transcript []Message
}

func (e *ToolLoopExceededError) Error() string {
	return fmt.Sprintf("tool follow-up depth %d exceeded", e.Depth)
}
