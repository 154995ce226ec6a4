package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"attache/model"
)

// Source supplies tool definitions alongside execution. Both Registry and
// remote executors (MCP servers, plugin processes) fit this shape.
type Source interface {
	Executor
	Definitions() []mcptypes.Tool
}

// Mux routes namespaced tool names ("weather.current") to the Source
// registered under the namespace. Un-namespaced names fall through to the
// default namespace "". Each Source's definitions are re-exported with
// the namespace prefixed, so the model always sees routable names.
type Mux struct {
	mu      sync.RWMutex
	sources map[string]Source
	order   []string
}

func NewMux() *Mux {
	return &Mux{sources: map[string]Source{}}
}

// Mount attaches a source under a namespace. Namespace "" is the default
// for un-prefixed tool names.
func (m *Mux) Mount(namespace string, src Source) error {
	if src == nil {
		return fmt.Errorf("nil source for namespace %q", namespace)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sources[namespace]; exists {
		return fmt.Errorf("namespace already mounted: %q", namespace)
	}
	m.sources[namespace] = src
	m.order = append(m.order, namespace)
	return nil
}

// Definitions aggregates every mounted source's tools, names prefixed
// with their namespace, in mount order.
func (m *Mux) Definitions() []mcptypes.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []mcptypes.Tool
	for _, ns := range m.order {
		for _, def := range m.sources[ns].Definitions() {
			if ns != "" {
				def.Name = ns + "." + def.Name
			}
			all = append(all, def)
		}
	}
	return all
}

// Execute implements Executor by splitting the namespace off the tool
// name and delegating to the mounted source.
func (m *Mux) Execute(ctx context.Context, name string, args map[string]any) model.ToolResult {
	ns, local := splitToolName(name)

	m.mu.RLock()
	src, ok := m.sources[ns]
	m.mu.RUnlock()

	if !ok {
		return model.ToolResult{Name: name, Success: false, Content: fmt.Sprintf("no tool source for %q", name)}
	}

	r := src.Execute(ctx, local, args)
	r.Name = name
	return r
}

func splitToolName(name string) (string, string) {
	idx := strings.Index(name, ".")
	if idx == -1 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}
