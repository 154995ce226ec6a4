package provider

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"attache/model"
)

// ConvertToOllamaMessages converts core messages to Ollama api.Message.
// A non-empty systemPrompt is prepended as a system message since the
// Ollama API carries the system prompt inside the message list.
// Tool-result messages map onto Ollama's tool role directly.
func ConvertToOllamaMessages(messages []model.Message, systemPrompt string) []api.Message {
	result := make([]api.Message, 0, len(messages)+1)
	if systemPrompt != "" {
		result = append(result, api.Message{Role: "system", Content: systemPrompt})
	}
	for _, msg := range messages {
		result = append(result, api.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return result
}

// ConvertToOpenAIMessages converts core messages to the OpenAI message
// union. systemPrompt, when non-empty, becomes the leading system
// message. Tool results are folded in as user messages: the exchange is
// correlated by our own bridge, not by vendor tool-call ids.
func ConvertToOpenAIMessages(messages []model.Message, systemPrompt string) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if systemPrompt != "" {
		result = append(result, openai.SystemMessage(systemPrompt))
	}
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		case model.RoleTool:
			result = append(result, openai.UserMessage(toolResultText(msg)))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

// toolResultText renders a tool message for vendors without a first-class
// tool-result role on our path.
func toolResultText(msg model.Message) string {
	if msg.ToolName == "" {
		return msg.Content
	}
	return "[" + msg.ToolName + " result]\n" + msg.Content
}

// ParseToolArguments parses a JSON arguments string into a map. Used by
// the OpenAI-compatible adapters, whose tool calls carry raw JSON.
// Unparseable input yields an empty map rather than an error: a garbled
// argument payload should surface as a failed tool execution, not as a
// provider failure.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return make(map[string]any)
	}
	return args
}

// convertOllamaToolCalls converts Ollama tool calls to the core type.
// Ollama does not assign call ids, so fresh ones are generated to keep
// the call/result correlation contract.
func convertOllamaToolCalls(calls []api.ToolCall) []model.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	result := make([]model.ToolCall, len(calls))
	for i, call := range calls {
		result[i] = model.ToolCall{
			ID:        uuid.NewString(),
			Name:      call.Function.Name,
			Arguments: map[string]any(call.Function.Arguments),
		}
	}
	return result
}
