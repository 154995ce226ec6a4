package tools

import (
	"context"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// CurrentTimeTool describes the built-in clock tool.
func CurrentTimeTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "current_time",
		Description: "Get the current local date and time",
		InputSchema: mcptypes.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}
}

// CurrentTimeFunc implements the built-in clock tool.
func CurrentTimeFunc(ctx context.Context, args map[string]any) (string, error) {
	return time.Now().Format("Monday, January 2, 2006 at 3:04 PM MST"), nil
}
