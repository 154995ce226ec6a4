package tools

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"attache/model"
)

// Textual tool-call convention, for backends without native structured
// tool calls (and for models that leak calls into the text stream even
// when the API supports them).
//
// The grammar is a strict contract, not a heuristic: a fenced block whose
// opening fence is exactly "```tool" on its own line, whose body is a
// single JSON object, and which is closed by "```" on its own line:
//
//	```tool
//	{"id": "t1", "name": "get_weather", "arguments": {"location": "Reno"}}
//	```
//
// "name" is required. "id" is optional; a fresh one is generated when
// absent. "arguments" is optional and must be a JSON object when present.
// Blocks that do not parse are left untouched in the text.

const (
	toolFenceOpen  = "```tool"
	toolFenceClose = "```"
)

// Block is one parsed tool block, with the byte span it occupies in the
// original content so callers can substitute results in place.
type Block struct {
	Call  model.ToolCall
	Start int // offset of the opening fence
	End   int // offset just past the closing fence (and its newline, if any)
}

type blockPayload struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ParseBlocks extracts all well-formed tool blocks from content.
func ParseBlocks(content string) []Block {
	var blocks []Block

	offset := 0
	for {
		rel := strings.Index(content[offset:], toolFenceOpen)
		if rel == -1 {
			return blocks
		}
		start := offset + rel

		// The opening fence must begin a line.
		if start > 0 && content[start-1] != '\n' {
			offset = start + len(toolFenceOpen)
			continue
		}

		bodyStart := start + len(toolFenceOpen)
		if bodyStart >= len(content) || content[bodyStart] != '\n' {
			offset = bodyStart
			continue
		}
		bodyStart++

		closeIdx := findCloseFence(content, bodyStart)
		if closeIdx == -1 {
			return blocks
		}
		body := content[bodyStart:closeIdx]

		end := closeIdx + 1 + len(toolFenceClose)
		// Swallow one trailing newline so substitution doesn't leave a
		// blank line behind.
		if end < len(content) && content[end] == '\n' {
			end++
		}

		var payload blockPayload
		if err := json.Unmarshal([]byte(body), &payload); err != nil || payload.Name == "" {
			offset = end
			continue
		}

		id := payload.ID
		if id == "" {
			id = uuid.NewString()
		}

		blocks = append(blocks, Block{
			Call: model.ToolCall{
				ID:        id,
				Name:      payload.Name,
				Arguments: payload.Arguments,
			},
			Start: start,
			End:   end,
		})
		offset = end
	}
}

// findCloseFence locates the newline preceding a closing fence that sits
// on its own line: the backticks must be followed by a newline or the end
// of the content. A longer fence like "```json" never closes a block.
func findCloseFence(content string, from int) int {
	for {
		rel := strings.Index(content[from:], "\n"+toolFenceClose)
		if rel == -1 {
			return -1
		}
		idx := from + rel
		after := idx + 1 + len(toolFenceClose)
		if after >= len(content) || content[after] == '\n' {
			return idx
		}
		from = idx + 1
	}
}

// ParseCalls extracts just the tool calls from content, in order.
func ParseCalls(content string) []model.ToolCall {
	blocks := ParseBlocks(content)
	if len(blocks) == 0 {
		return nil
	}
	calls := make([]model.ToolCall, len(blocks))
	for i, b := range blocks {
		calls[i] = b.Call
	}
	return calls
}

// Substitute replaces each parsed block with the corresponding result
// text. results must be in the same order as blocks.
func Substitute(content string, blocks []Block, results []model.ToolResult) string {
	if len(blocks) == 0 {
		return content
	}

	var sb strings.Builder
	prev := 0
	for i, b := range blocks {
		sb.WriteString(content[prev:b.Start])
		if i < len(results) {
			r := results[i]
			if r.Success {
				sb.WriteString(r.Content)
			} else {
				sb.WriteString("[tool " + r.Name + " failed: " + r.Content + "]")
			}
		}
		prev = b.End
	}
	sb.WriteString(content[prev:])
	return sb.String()
}
