package provider

import (
	"strings"
	"testing"

	"attache/provider/testutil"
)

func TestToolInstructionsNameAllTools(t *testing.T) {
	tools := testutil.TestTools()

	for name, build := range map[string]func() string{
		"anthropic": func() string { return buildAnthropicToolInstructions(tools) },
		"openai":    func() string { return buildOpenAIToolInstructions(tools) },
	} {
		t.Run(name, func(t *testing.T) {
			got := build()
			if !strings.Contains(got, "get_weather") || !strings.Contains(got, "calculate") {
				t.Errorf("instructions missing tool names:\n%s", got)
			}
		})
	}
}

func TestShouldSkipToolInstructions(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"qwen2.5:7b", true},
		{"Qwen/Qwen2.5-72B-Instruct", true},
		{"llama3.1:latest", false},
		{"gpt-4o-mini", false},
		{"claude-sonnet-4-5", false},
	}

	for _, tt := range tests {
		if got := shouldSkipToolInstructions(tt.model); got != tt.want {
			t.Errorf("shouldSkipToolInstructions(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
