package provider

import (
	"context"
	"strings"

	"github.com/google/uuid"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"attache/mcp"
	"attache/model"
)

const (
	openaiDefaultBaseURL = "https://api.openai.com/v1"
	openaiDefaultModel   = "gpt-4o-mini"

	// OpenAI does not report context windows on the models endpoint;
	// current GPT-4-class models all accept at least this much.
	openaiContextLength = 128000
)

// OpenAIProvider implements model.Provider using the official OpenAI Go
// SDK.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	baseURL string
	apiKey  string
	catalog modelCatalog
}

// NewOpenAIProvider creates an OpenAI provider. Empty baseURL and model
// select the API default and an affordable default model. A missing API
// key leaves the adapter ineligible for the fallback chain rather than
// failing construction.
func NewOpenAIProvider(baseURL, apiKey, modelID string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	if modelID == "" {
		modelID = openaiDefaultModel
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{
		client:  client,
		model:   modelID,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Capabilities() model.Capabilities {
	return model.Capabilities{Streaming: true, ToolCalls: true, Vision: true}
}

func (p *OpenAIProvider) HasValidCredential() bool {
	return p.apiKey != ""
}

func (p *OpenAIProvider) Send(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool) (*model.ResponseEnvelope, error) {
	return p.SendStreaming(ctx, messages, systemPrompt, tools, nil)
}

func (p *OpenAIProvider) SendStreaming(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
	envelope, err := streamOpenAICompatible(ctx, &p.client, p.Name(), p.model, messages, systemPrompt, tools, callback, nil)
	if err != nil {
		return nil, err
	}
	return envelope, nil
}

// ListModels fetches the account's model list.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, classifyError(p.Name(), err)
	}

	models := make([]model.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, model.ModelInfo{
			Name:          m.ID,
			InternalName:  m.ID,
			Provider:      p.Name(),
			ContextLength: openaiContextLength,
			SupportsTools: true,
		})
	}

	p.catalog.store(models)
	return models, nil
}

func (p *OpenAIProvider) GetModel() string {
	return p.model
}

func (p *OpenAIProvider) GetDisplayName() string {
	return p.model
}

func (p *OpenAIProvider) SetModel(id string) bool {
	resolved, ok := p.catalog.resolve(id)
	if !ok {
		return false
	}
	p.model = resolved
	return true
}

func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return classifyError(p.Name(), err)
	}
	return nil
}

// streamOpenAICompatible drives one streamed chat completion against an
// OpenAI-compatible endpoint and assembles the envelope. OpenAI and
// OpenRouter share this path; renameTool, when non-nil, maps tool names
// coming back from the API (OpenRouter forbids dots in tool names).
func streamOpenAICompatible(ctx context.Context, client *openai.Client, providerName, modelID string, messages []model.Message, systemPrompt string, tools []mcptypes.Tool, callback model.StreamCallback, renameTool func(string) string) (*model.ResponseEnvelope, error) {
	// Prepend tool instructions unless the model is known to break with
	// them.
	if len(tools) > 0 && !shouldSkipToolInstructions(modelID) {
		instruction := buildOpenAIToolInstructions(tools)
		if systemPrompt != "" {
			systemPrompt = instruction + "\n\n" + systemPrompt
		} else {
			systemPrompt = instruction
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messages, systemPrompt),
		Model:    openai.ChatModel(modelID),
	}
	if len(tools) > 0 {
		params.Tools = mcp.ToOpenAITools(tools)
	}

	stream := client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	var content strings.Builder
	var toolCalls []model.ToolCall

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok {
			name := tool.Name
			if renameTool != nil {
				name = renameTool(name)
			}
			id := tool.ID
			if id == "" {
				id = uuid.NewString()
			}
			toolCalls = append(toolCalls, model.ToolCall{
				ID:        id,
				Name:      name,
				Arguments: ParseToolArguments(tool.Arguments),
			})
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			text := chunk.Choices[0].Delta.Content
			content.WriteString(text)
			if callback != nil {
				if err := callback(text); err != nil {
					return nil, classifyError(providerName, err)
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, classifyError(providerName, err)
	}

	return &model.ResponseEnvelope{
		Message:      model.NewAssistantMessage(content.String()),
		ToolCalls:    toolCalls,
		ProviderName: providerName,
		ModelName:    modelID,
		Usage: model.Usage{
			PromptTokens:     int(acc.Usage.PromptTokens),
			CompletionTokens: int(acc.Usage.CompletionTokens),
			TotalTokens:      int(acc.Usage.TotalTokens),
		},
	}, nil
}
