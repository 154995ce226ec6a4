package provider

import (
	"context"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"

	"attache/mcp"
	"attache/model"
	"attache/ollama"
)

// OllamaProvider implements model.Provider over the local Ollama client.
// It owns the conversions between core types and Ollama API types.
type OllamaProvider struct {
	client  *ollama.Client
	catalog modelCatalog
}

// NewOllamaProvider creates an Ollama provider. Empty baseURL and model
// select the local default server and model.
func NewOllamaProvider(baseURL, modelID string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return &OllamaProvider{client: client}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Capabilities reports the API surface; whether the selected local model
// actually honors tool calls is per-model, see ModelInfo.SupportsTools.
func (p *OllamaProvider) Capabilities() model.Capabilities {
	return model.Capabilities{Streaming: true, ToolCalls: true, Vision: false}
}

// HasValidCredential is always true: a local Ollama server needs no API
// key. Reachability is a Ping concern, not a credential one.
func (p *OllamaProvider) HasValidCredential() bool {
	return true
}

func (p *OllamaProvider) Send(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool) (*model.ResponseEnvelope, error) {
	return p.SendStreaming(ctx, messages, systemPrompt, tools, nil)
}

func (p *OllamaProvider) SendStreaming(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
	ollamaMessages := ConvertToOllamaMessages(messages, systemPrompt)

	var ollamaTools []api.Tool
	if len(tools) > 0 {
		ollamaTools = mcp.ToOllamaTools(tools)
	}

	result, err := p.client.Chat(ctx, ollamaMessages, ollamaTools, ollama.StreamCallback(callback))
	if err != nil {
		return nil, classifyError(p.Name(), err)
	}

	return &model.ResponseEnvelope{
		Message:      model.NewAssistantMessage(result.Content),
		ToolCalls:    convertOllamaToolCalls(result.ToolCalls),
		ProviderName: p.Name(),
		ModelName:    p.client.GetModel(),
		Usage: model.Usage{
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			TotalTokens:      result.PromptTokens + result.CompletionTokens,
		},
	}, nil
}

func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, classifyError(p.Name(), err)
	}
	p.catalog.store(models)
	return models, nil
}

func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// GetDisplayName matches GetModel: Ollama names carry no vendor prefix.
func (p *OllamaProvider) GetDisplayName() string {
	return p.client.GetModel()
}

func (p *OllamaProvider) SetModel(id string) bool {
	resolved, ok := p.catalog.resolve(id)
	if !ok {
		return false
	}
	p.client.SetModel(resolved)
	return true
}

func (p *OllamaProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return classifyError(p.Name(), err)
	}
	return nil
}
