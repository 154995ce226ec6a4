package tools

import (
	"testing"

	"attache/model"
)

func TestParseBlocks(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantCalls int
		validate  func(t *testing.T, blocks []Block)
	}{
		{
			name:      "no blocks",
			content:   "Just a plain answer with no tools involved.",
			wantCalls: 0,
		},
		{
			name: "single block",
			content: "Let me check.\n```tool\n" +
				`{"id": "t1", "name": "get_weather", "arguments": {"location": "Reno"}}` +
				"\n```\nDone.",
			wantCalls: 1,
			validate: func(t *testing.T, blocks []Block) {
				call := blocks[0].Call
				if call.ID != "t1" {
					t.Errorf("id = %q, want t1", call.ID)
				}
				if call.Name != "get_weather" {
					t.Errorf("name = %q, want get_weather", call.Name)
				}
				if call.Arguments["location"] != "Reno" {
					t.Errorf("arguments = %v", call.Arguments)
				}
			},
		},
		{
			name: "two blocks in order",
			content: "```tool\n{\"id\": \"t1\", \"name\": \"first\"}\n```\n" +
				"between\n" +
				"```tool\n{\"id\": \"t2\", \"name\": \"second\"}\n```\n",
			wantCalls: 2,
			validate: func(t *testing.T, blocks []Block) {
				if blocks[0].Call.ID != "t1" || blocks[1].Call.ID != "t2" {
					t.Errorf("order wrong: %s, %s", blocks[0].Call.ID, blocks[1].Call.ID)
				}
			},
		},
		{
			name:      "missing id gets generated",
			content:   "```tool\n{\"name\": \"search\"}\n```",
			wantCalls: 1,
			validate: func(t *testing.T, blocks []Block) {
				if blocks[0].Call.ID == "" {
					t.Error("expected generated id, got empty")
				}
			},
		},
		{
			name:      "invalid JSON is skipped",
			content:   "```tool\nnot json at all\n```",
			wantCalls: 0,
		},
		{
			name:      "missing name is skipped",
			content:   "```tool\n{\"arguments\": {}}\n```",
			wantCalls: 0,
		},
		{
			name:      "plain code fence is not a tool block",
			content:   "```go\nfunc main() {}\n```",
			wantCalls: 0,
		},
		{
			name:      "fence must start a line",
			content:   "inline ```tool\n{\"name\": \"x\"}\n```",
			wantCalls: 0,
		},
		{
			name:      "unterminated block",
			content:   "```tool\n{\"name\": \"x\"}",
			wantCalls: 0,
		},
		{
			name:      "longer fence does not close the block",
			content:   "```tool\n{\"name\": \"clock\"}\n```json\n{}\n```",
			wantCalls: 0,
		},
		{
			name:      "close fence with trailing text does not close",
			content:   "```tool\n{\"name\": \"clock\"}\n``` done",
			wantCalls: 0,
		},
		{
			name:      "close fence at end of content",
			content:   "```tool\n{\"name\": \"clock\"}\n```",
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := ParseBlocks(tt.content)
			if len(blocks) != tt.wantCalls {
				t.Fatalf("got %d blocks, want %d", len(blocks), tt.wantCalls)
			}
			if tt.validate != nil {
				tt.validate(t, blocks)
			}
		})
	}
}

func TestSubstitute(t *testing.T) {
	content := "Before.\n```tool\n{\"id\": \"t1\", \"name\": \"clock\"}\n```\nAfter."
	blocks := ParseBlocks(content)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}

	t.Run("success result replaces block", func(t *testing.T) {
		results := []model.ToolResult{{ID: "t1", Name: "clock", Success: true, Content: "12:00"}}
		got := Substitute(content, blocks, results)
		want := "Before.\n12:00After."
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("failure result is marked in text", func(t *testing.T) {
		results := []model.ToolResult{{ID: "t1", Name: "clock", Success: false, Content: "timeout"}}
		got := Substitute(content, blocks, results)
		want := "Before.\n[tool clock failed: timeout]After."
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}
