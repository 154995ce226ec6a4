package provider

import (
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Explicit execution guidance sent alongside tool definitions. Models
// reliably discover the tools from the API schema but still tend to
// narrate instead of calling them; the instructions push them to act.
//
// Anthropic and OpenAI variants differ only in framing today but are kept
// separate so they can diverge per vendor, as tuning has shown they need to.

// buildAnthropicToolInstructions creates tool instructions for Claude
// models, prepended to the system blocks when tools are present.
func buildAnthropicToolInstructions(tools []mcptypes.Tool) string {
	return strings.Join([]string{
		"TOOLS: " + joinToolNames(tools),
		"",
		"When the user asks you to do something that requires a tool:",
		"1. Determine which tool is needed",
		"2. Check if you have all required parameters",
		"3. If yes: Execute the tool IMMEDIATELY without explanation",
		"4. If no: Ask for the missing parameter ONLY",
		"",
		"DO NOT:",
		"- List available tools",
		"- Explain what you're about to do",
		"- Ask 'what would you like me to do?'",
	}, "\n")
}

// buildOpenAIToolInstructions creates tool instructions for GPT models
// and OpenAI-compatible endpoints. Brief, direct guidance works best.
func buildOpenAIToolInstructions(tools []mcptypes.Tool) string {
	return strings.Join([]string{
		"TOOLS: " + joinToolNames(tools),
		"",
		"When a request requires a tool and you have all required",
		"parameters, call the tool immediately. If a parameter is missing,",
		"ask for that parameter only. Never list the available tools or",
		"describe what you are about to do.",
	}, "\n")
}

func joinToolNames(tools []mcptypes.Tool) string {
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	return strings.Join(names, ", ")
}

// shouldSkipToolInstructions reports whether a model is known to BREAK
// with explicit tool instructions. Most models benefit from them, but
// some understand tools natively and leak malformed call syntax into the
// text stream when prompted about tools explicitly.
func shouldSkipToolInstructions(modelName string) bool {
	modelLower := strings.ToLower(modelName)

	skipInstructions := []string{
		"qwen", // leaks call syntax with instructions, works natively without
	}
	for _, prefix := range skipInstructions {
		if strings.Contains(modelLower, prefix) {
			return true
		}
	}
	return false
}
