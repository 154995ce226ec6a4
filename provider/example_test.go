package provider_test

import (
	"context"
	"fmt"
	"log"

	"attache/model"
	"attache/provider"
)

// ExampleNewProvider demonstrates creating an Ollama provider using the factory.
func ExampleNewProvider() {
	cfg := provider.Config{
		Type:    provider.ProviderTypeOllama,
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	}

	p, err := provider.NewProvider(cfg)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Provider created: %T\n", p)
	// Output: Provider created: *provider.OllamaProvider
}

// ExampleNewOllamaProvider demonstrates creating an Ollama provider directly.
func ExampleNewOllamaProvider() {
	p, err := provider.NewOllamaProvider("http://localhost:11434", "llama3.1")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Current model: %s\n", p.GetModel())

	// Before the first model refresh the catalog accepts any id
	p.SetModel("llama3.2:latest")
	fmt.Printf("New model: %s\n", p.GetModel())

	// Output:
	// Current model: llama3.1
	// New model: llama3.2:latest
}

// ExampleOllamaProvider_SendStreaming demonstrates streaming chat.
//
// Note: This example doesn't actually run because it requires a live Ollama server.
// It's provided for documentation purposes.
func ExampleOllamaProvider_SendStreaming() {
	p, err := provider.NewOllamaProvider("http://localhost:11434", "llama3.1")
	if err != nil {
		log.Fatal(err)
	}

	messages := []model.Message{
		model.NewUserMessage("Hello! How are you?"),
	}

	ctx := context.Background()
	envelope, err := p.SendStreaming(ctx, messages, "", nil, func(chunk string) error {
		fmt.Print(chunk)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\n%d tokens used\n", envelope.Usage.TotalTokens)
}

// ExampleConfig demonstrates different provider configurations.
func ExampleConfig() {
	ollamaCfg := provider.Config{
		Type:    provider.ProviderTypeOllama,
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
		// APIKey is not used for Ollama
	}

	openaiCfg := provider.Config{
		Type:   provider.ProviderTypeOpenAI,
		Model:  "gpt-4o-mini",
		APIKey: "sk-...",
	}

	anthropicCfg := provider.Config{
		Type:   provider.ProviderTypeAnthropic,
		APIKey: "sk-ant-...",
	}

	fmt.Printf("Ollama: %s\n", ollamaCfg.Type)
	fmt.Printf("OpenAI: %s\n", openaiCfg.Type)
	fmt.Printf("Anthropic: %s\n", anthropicCfg.Type)

	// Output:
	// Ollama: ollama
	// OpenAI: openai
	// Anthropic: anthropic
}
