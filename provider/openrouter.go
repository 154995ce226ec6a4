package provider

import (
	"context"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"attache/model"
)

const (
	openrouterDefaultBaseURL = "https://openrouter.ai/api/v1"
	openrouterDefaultModel   = "meta-llama/llama-3.2-90b-instruct"
)

// OpenRouterProvider implements model.Provider against OpenRouter's API,
// which is OpenAI-compatible, using the official OpenAI Go SDK with a
// custom base URL.
type OpenRouterProvider struct {
	client  openai.Client
	model   string
	baseURL string
	apiKey  string
	catalog modelCatalog
}

func NewOpenRouterProvider(baseURL, apiKey, modelID string) (*OpenRouterProvider, error) {
	if baseURL == "" {
		baseURL = openrouterDefaultBaseURL
	}
	if modelID == "" {
		modelID = openrouterDefaultModel
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenRouterProvider{
		client:  client,
		model:   modelID,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

func (p *OpenRouterProvider) Capabilities() model.Capabilities {
	return model.Capabilities{Streaming: true, ToolCalls: true, Vision: true}
}

func (p *OpenRouterProvider) HasValidCredential() bool {
	return p.apiKey != ""
}

func (p *OpenRouterProvider) Send(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool) (*model.ResponseEnvelope, error) {
	return p.SendStreaming(ctx, messages, systemPrompt, tools, nil)
}

func (p *OpenRouterProvider) SendStreaming(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
	// OpenRouter requires tool names matching ^[a-zA-Z0-9_-]{1,64}$, so
	// dotted namespaces go out as underscores and come back converted.
	outTools := encodeToolNames(tools)

	envelope, err := streamOpenAICompatible(ctx, &p.client, p.Name(), p.model, messages, systemPrompt, outTools, callback, decodeToolName)
	if err != nil {
		return nil, err
	}
	return envelope, nil
}

// ListModels fetches OpenRouter's catalog, stripping vendor prefixes for
// display ("meta-llama/llama-3.2-90b-instruct" → "llama-3.2-90b-instruct").
func (p *OpenRouterProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, classifyError(p.Name(), err)
	}

	models := make([]model.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, model.ModelInfo{
			Name:         stripVendorPrefix(m.ID),
			InternalName: m.ID,
			Provider:     p.Name(),
		})
	}

	p.catalog.store(models)
	return models, nil
}

// GetModel returns the full model name with vendor prefix, as used in
// API calls.
func (p *OpenRouterProvider) GetModel() string {
	return p.model
}

// GetDisplayName returns the model name with the vendor prefix stripped.
func (p *OpenRouterProvider) GetDisplayName() string {
	return stripVendorPrefix(p.model)
}

func (p *OpenRouterProvider) SetModel(id string) bool {
	resolved, ok := p.catalog.resolve(id)
	if !ok {
		return false
	}
	p.model = resolved
	return true
}

func (p *OpenRouterProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return classifyError(p.Name(), err)
	}
	return nil
}

// encodeToolNames rewrites dotted tool names to double-underscore form
// for the OpenRouter API ("weather.current" → "weather__current").
func encodeToolNames(tools []mcptypes.Tool) []mcptypes.Tool {
	if len(tools) == 0 {
		return tools
	}
	out := make([]mcptypes.Tool, len(tools))
	for i, tool := range tools {
		out[i] = tool
		out[i].Name = strings.ReplaceAll(tool.Name, ".", "__")
	}
	return out
}

// decodeToolName reverses encodeToolNames on names coming back from the
// API.
func decodeToolName(name string) string {
	return strings.ReplaceAll(name, "__", ".")
}

// stripVendorPrefix removes the vendor segment from an OpenRouter model
// name.
func stripVendorPrefix(modelName string) string {
	if idx := strings.Index(modelName, "/"); idx != -1 {
		return modelName[idx+1:]
	}
	return modelName
}
