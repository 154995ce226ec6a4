package mcp

import (
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
)

func weatherTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "get_weather",
		Description: "Get current weather",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "City name",
				},
				"unit": map[string]any{
					"type": "string",
					"enum": []any{"celsius", "fahrenheit"},
				},
			},
			Required: []string{"location"},
		},
	}
}

func TestToOllamaTools(t *testing.T) {
	tests := []struct {
		name     string
		input    []mcptypes.Tool
		validate func(t *testing.T, result []api.Tool)
	}{
		{
			name:  "empty input",
			input: nil,
			validate: func(t *testing.T, result []api.Tool) {
				if result != nil {
					t.Errorf("expected nil, got %d tools", len(result))
				}
			},
		},
		{
			name:  "weather tool",
			input: []mcptypes.Tool{weatherTool()},
			validate: func(t *testing.T, result []api.Tool) {
				if len(result) != 1 {
					t.Fatalf("got %d tools, want 1", len(result))
				}
				fn := result[0].Function
				if result[0].Type != "function" {
					t.Errorf("type = %q, want function", result[0].Type)
				}
				if fn.Name != "get_weather" {
					t.Errorf("name = %q", fn.Name)
				}
				loc, ok := fn.Parameters.Properties["location"]
				if !ok {
					t.Fatal("location property missing")
				}
				if len(loc.Type) != 1 || loc.Type[0] != "string" {
					t.Errorf("location type = %v", loc.Type)
				}
				if loc.Description != "City name" {
					t.Errorf("location description = %q", loc.Description)
				}
				unit := fn.Parameters.Properties["unit"]
				if len(unit.Enum) != 2 {
					t.Errorf("unit enum = %v", unit.Enum)
				}
				if len(fn.Parameters.Required) != 1 || fn.Parameters.Required[0] != "location" {
					t.Errorf("required = %v", fn.Parameters.Required)
				}
			},
		},
		{
			name: "union typed property",
			input: []mcptypes.Tool{{
				Name: "lookup",
				InputSchema: mcptypes.ToolInputSchema{
					Type: "object",
					Properties: map[string]any{
						"key": map[string]any{"type": []any{"string", "number"}},
					},
				},
			}},
			validate: func(t *testing.T, result []api.Tool) {
				key := result[0].Function.Parameters.Properties["key"]
				if len(key.Type) != 2 {
					t.Errorf("key type = %v, want two entries", key.Type)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, ToOllamaTools(tt.input))
		})
	}
}

func TestToOpenAITools(t *testing.T) {
	result := ToOpenAITools([]mcptypes.Tool{weatherTool()})
	if len(result) != 1 {
		t.Fatalf("got %d tools, want 1", len(result))
	}
	fn := result[0].OfFunction
	if fn == nil {
		t.Fatal("expected function tool variant")
	}
	if fn.Function.Name != "get_weather" {
		t.Errorf("name = %q", fn.Function.Name)
	}
	params := fn.Function.Parameters
	if params["type"] != "object" {
		t.Errorf("params type = %v", params["type"])
	}
	if _, ok := params["properties"].(map[string]any)["location"]; !ok {
		t.Error("location property missing")
	}

	if got := ToOpenAITools(nil); got != nil {
		t.Errorf("nil input produced %d tools", len(got))
	}
}

func TestToAnthropicTools(t *testing.T) {
	result := ToAnthropicTools([]mcptypes.Tool{weatherTool()})
	if len(result) != 1 {
		t.Fatalf("got %d tools, want 1", len(result))
	}
	tool := result[0].OfTool
	if tool == nil {
		t.Fatal("expected tool variant")
	}
	if tool.Name != "get_weather" {
		t.Errorf("name = %q", tool.Name)
	}
	if tool.Description.Value != "Get current weather" {
		t.Errorf("description = %q", tool.Description.Value)
	}
	if _, ok := tool.InputSchema.Properties.(map[string]any)["location"]; !ok {
		t.Error("location property missing")
	}

	if got := ToAnthropicTools(nil); got != nil {
		t.Errorf("nil input produced %d tools", len(got))
	}
}
