package model

// ToolCall is a model-issued request to invoke a named capability.
// The ID is opaque and only used to correlate the call with its result.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult is the outcome of executing a single ToolCall.
type ToolResult struct {
	ID      string
	Name    string
	Success bool
	Content string // result payload on success, error text on failure
}

// Message converts the result into a tool-role message for the transcript.
// Failed executions become conversation content the model can react to,
// never a fatal error.
func (r ToolResult) Message() Message {
	content := r.Content
	if !r.Success {
		content = "Tool execution failed: " + r.Content
	}
	return NewToolMessage(r.Name, content)
}

// Usage tracks token consumption reported by a provider for one exchange.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ResponseEnvelope is the outcome of one orchestration call.
//
// ProviderName and ModelName always identify the provider that actually
// answered, which after fallback may differ from the one originally
// selected.
type ResponseEnvelope struct {
	Message        Message
	Usage          Usage
	ToolCalls      []ToolCall
	ProviderName   string
	ModelName      string
	ConversationID string
	// BudgetExceeded reports that history trimming could not bring the
	// prompt under the model's context limit without dropping the most
	// recent user message. The call proceeded anyway.
	BudgetExceeded bool
}

// ModelInfo describes a selectable model on a provider.
type ModelInfo struct {
	Name           string // display name (vendor prefix stripped where applicable)
	InternalName   string // full name used in API calls
	Provider       string // provider ID: "ollama", "openrouter", "openai", "anthropic"
	Size           int64  // on-disk size in bytes (Ollama only, 0 elsewhere)
	ContextLength  int    // max context window in tokens, 0 if unknown
	SupportsTools  bool
	SupportsVision bool
}

// Capabilities are static per provider implementation.
type Capabilities struct {
	Streaming bool
	ToolCalls bool
	Vision    bool
}
