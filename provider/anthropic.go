package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"attache/mcp"
	"attache/model"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicDefaultModel   = string(anthropic.ModelClaudeSonnet4_5_20250929)

	// All current Claude models share a 200k context window.
	anthropicContextLength = 200000

	// Required by the Anthropic API on every request.
	anthropicMaxTokens = 4096
)

// AnthropicProvider implements model.Provider using the official
// Anthropic Go SDK for direct Claude API access.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
	apiKey  string
	catalog modelCatalog
}

// NewAnthropicProvider creates an Anthropic provider. An empty baseURL
// and model select the API default and current Sonnet respectively. The
// adapter is created even without an API key; the fallback chain skips
// it until a credential is configured.
func NewAnthropicProvider(baseURL, apiKey, modelID string) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	if modelID == "" {
		modelID = anthropicDefaultModel
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:  &client,
		model:   anthropic.Model(modelID),
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Capabilities() model.Capabilities {
	return model.Capabilities{Streaming: true, ToolCalls: true, Vision: true}
}

func (p *AnthropicProvider) HasValidCredential() bool {
	return p.apiKey != ""
}

// Send implements model.Provider.Send as a streaming exchange with no
// chunk delivery.
func (p *AnthropicProvider) Send(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool) (*model.ResponseEnvelope, error) {
	return p.SendStreaming(ctx, messages, systemPrompt, tools, nil)
}

// SendStreaming implements model.Provider.SendStreaming.
func (p *AnthropicProvider) SendStreaming(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
	anthropicMessages, systemBlocks := convertToAnthropicMessages(messages, systemPrompt)

	// Tool instructions go first, then the caller's system prompt.
	if len(tools) > 0 {
		instructionBlock := anthropic.TextBlockParam{
			Text: buildAnthropicToolInstructions(tools),
		}
		systemBlocks = append([]anthropic.TextBlockParam{instructionBlock}, systemBlocks...)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: anthropicMaxTokens,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(tools) > 0 {
		params.Tools = mcp.ToAnthropicTools(tools)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	msg := anthropic.Message{}
	var content []byte

	for stream.Next() {
		event := stream.Current()

		if err := msg.Accumulate(event); err != nil {
			return nil, classifyError(p.Name(), fmt.Errorf("accumulating message: %w", err))
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				content = append(content, deltaVariant.Text...)
				if callback != nil {
					if err := callback(deltaVariant.Text); err != nil {
						return nil, classifyError(p.Name(), err)
					}
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, classifyError(p.Name(), err)
	}

	return &model.ResponseEnvelope{
		Message:      model.NewAssistantMessage(string(content)),
		ToolCalls:    extractAnthropicToolCalls(msg.Content),
		ProviderName: p.Name(),
		ModelName:    string(p.model),
		Usage: model.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

// ListModels returns a curated list: Anthropic has no public models
// endpoint for the catalog we need, so known Claude models are listed.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	known := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	models := make([]model.ModelInfo, 0, len(known))
	for _, m := range known {
		models = append(models, model.ModelInfo{
			Name:           string(m),
			InternalName:   string(m),
			Provider:       p.Name(),
			ContextLength:  anthropicContextLength,
			SupportsTools:  true,
			SupportsVision: true,
		})
	}

	p.catalog.store(models)
	return models, nil
}

func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

func (p *AnthropicProvider) GetDisplayName() string {
	return string(p.model)
}

func (p *AnthropicProvider) SetModel(id string) bool {
	resolved, ok := p.catalog.resolve(id)
	if !ok {
		return false
	}
	p.model = anthropic.Model(resolved)
	return true
}

// Ping makes a minimal one-token request; Anthropic has no health
// endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return classifyError(p.Name(), err)
	}
	return nil
}

// convertToAnthropicMessages converts core messages to Anthropic format.
// System content is returned separately since the Anthropic API carries
// it in a dedicated parameter, not the message array.
func convertToAnthropicMessages(messages []model.Message, systemPrompt string) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	if systemPrompt != "" {
		systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: systemPrompt})
	}

	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleAssistant:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		case model.RoleTool:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(toolResultText(msg))))
		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return anthropicMsgs, systemBlocks
}

// extractAnthropicToolCalls pulls tool-use blocks out of an accumulated
// message.
func extractAnthropicToolCalls(content []anthropic.ContentBlockUnion) []model.ToolCall {
	var toolCalls []model.ToolCall

	for _, block := range content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}

		var args map[string]any
		if err := json.Unmarshal(toolUse.Input, &args); err != nil {
			continue
		}

		toolCalls = append(toolCalls, model.ToolCall{
			ID:        toolUse.ID,
			Name:      toolUse.Name,
			Arguments: args,
		})
	}

	return toolCalls
}
