package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"attache/model"
)

// Func is the implementation of a locally registered tool.
type Func func(ctx context.Context, args map[string]any) (string, error)

// Registry stores in-process tools by unique name and exposes them both
// as MCP tool definitions (for the providers) and as an Executor (for
// the bridge).
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]mcptypes.Tool
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{
		defs:  map[string]mcptypes.Tool{},
		funcs: map[string]Func{},
	}
}

// Register adds a tool. The definition's name must be unique and non-empty.
func (r *Registry) Register(def mcptypes.Tool, fn Func) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if fn == nil {
		return fmt.Errorf("tool %s: nil implementation", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.defs[name] = def
	r.funcs[name] = fn
	return nil
}

// Definitions returns all registered tool definitions, sorted by name.
func (r *Registry) Definitions() []mcptypes.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]mcptypes.Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.defs[name])
	}
	return out
}

// Execute implements Executor. Unknown tools and implementation errors
// both become failed results.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) model.ToolResult {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()

	if !ok {
		return model.ToolResult{Name: name, Success: false, Content: fmt.Sprintf("unknown tool: %s", name)}
	}

	content, err := fn(ctx, args)
	if err != nil {
		return model.ToolResult{Name: name, Success: false, Content: err.Error()}
	}
	return model.ToolResult{Name: name, Success: true, Content: content}
}
