package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts LLM provider implementations (Ollama, OpenAI,
// OpenRouter, Anthropic) behind provider-agnostic types.
//
// The interface lives in the model package (not provider) to avoid import
// cycles: adapter implementations import model, and the orchestrator can
// use the Provider interface without importing the provider package.
//
// Send and SendStreaming return typed *ProviderError values on failure so
// the orchestrator can classify the failure and decide whether to advance
// the fallback chain. Adapters never mutate conversation state.
type Provider interface {
	// Name returns the provider ID used for attribution ("anthropic", ...).
	Name() string

	// Capabilities reports what this backend supports. Static per vendor.
	Capabilities() Capabilities

	// HasValidCredential reports whether a usable API credential is
	// present. Providers without one are skipped by the fallback chain.
	HasValidCredential() bool

	// ListModels returns the models available on this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the currently selected model name as used in API
	// calls (for OpenRouter this includes the vendor prefix).
	GetModel() string

	// GetDisplayName returns the model name formatted for display
	// (vendor prefix stripped where applicable).
	GetDisplayName() string

	// SetModel changes the active model. Returns false without changing
	// anything if the id is not in the provider's known catalog.
	SetModel(id string) bool

	// Send performs a single blocking exchange and returns the assembled
	// envelope. systemPrompt may be empty. tools may be nil.
	Send(ctx context.Context, messages []Message, systemPrompt string, tools []mcptypes.Tool) (*ResponseEnvelope, error)

	// SendStreaming is Send with incremental delivery: callback is invoked
	// zero or more times, in generation order, before the envelope is
	// returned. The concatenation of all delivered chunks equals the final
	// message content exactly. A nil callback degrades to Send.
	SendStreaming(ctx context.Context, messages []Message, systemPrompt string, tools []mcptypes.Tool, callback StreamCallback) (*ResponseEnvelope, error)

	// Ping checks if the provider is reachable with the current credential.
	Ping(ctx context.Context) error
}

// StreamCallback is called for each chunk of a streamed response.
// Returning an error stops the stream and fails the exchange.
type StreamCallback func(chunk string) error
