// Package provider implements the LLM provider adapters.
//
// Four backends are supported (Ollama, OpenAI, OpenRouter, Anthropic)
// behind the common model.Provider interface, so the orchestration layer
// and any front end stay provider-agnostic. Adding a backend means
// implementing the interface and adding a case to the factory.
//
// # Why Provider Abstraction?
//
// The abstraction exists to:
//   - Enable multi-provider support (local Ollama, cloud APIs)
//   - Isolate vendor SDK types from the core model types
//   - Make the fallback chain testable with mock providers
//
// # Type Conversions
//
// The provider layer owns all conversions between the core types and
// vendor-specific types; see conversions.go and the mcp package for tool
// schema conversion.
//
// # Registry
//
// The Registry holds the adapters in registration order, tracks the
// active provider, and hands out fallback-chain snapshots so an in-flight
// send is never affected by a concurrent active-provider change.
package provider

// ProviderType identifies the adapter implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds provider-specific configuration for the factory.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama
}
