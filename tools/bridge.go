// Package tools closes the loop between "the model asked to use a
// capability" and "the model sees the result".
//
// The Bridge executes tool calls through an Executor, folds the results
// into tool-role messages in request order, and bounds how many follow-up
// rounds a model may chain. The Registry is a local Executor for in-process
// tools; the Mux routes namespaced tool names across several Executors.
package tools

import (
	"context"
	"sync"

	"attache/model"
)

// DefaultMaxDepth bounds tool follow-up rounds per logical send when the
// caller does not configure one.
const DefaultMaxDepth = 2

// Executor runs one named tool. Implementations report failure through
// the result, not an error: a failed tool execution is conversation
// content the model reacts to, never a fatal orchestration error.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) model.ToolResult
}

// Bridge executes the tool calls from a model turn and prepares the
// transcript for the follow-up completion.
type Bridge struct {
	exec     Executor
	maxDepth int
}

// NewBridge creates a bridge over the given executor. maxDepth <= 0
// selects DefaultMaxDepth.
func NewBridge(exec Executor, maxDepth int) *Bridge {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Bridge{exec: exec, maxDepth: maxDepth}
}

// MaxDepth returns the configured follow-up depth limit.
func (b *Bridge) MaxDepth() int {
	return b.maxDepth
}

// ExecuteAll runs every call and returns one result per call, in the
// order the calls were requested. Independent calls run concurrently;
// the ordering guarantee is on the returned slice, which keeps the
// transcript deterministic regardless of which execution finishes first.
func (b *Bridge) ExecuteAll(ctx context.Context, calls []model.ToolCall) []model.ToolResult {
	if len(calls) == 0 {
		return nil
	}

	results := make([]model.ToolResult, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call model.ToolCall) {
			defer wg.Done()
			r := b.exec.Execute(ctx, call.Name, call.Arguments)
			r.ID = call.ID
			r.Name = call.Name
			results[i] = r
		}(i, call)
	}

	wg.Wait()
	return results
}

// FoldResults converts ordered results into tool-role messages for the
// transcript.
func FoldResults(results []model.ToolResult) []model.Message {
	messages := make([]model.Message, len(results))
	for i, r := range results {
		messages[i] = r.Message()
	}
	return messages
}

// ResolveInline handles the degenerate textual convention: tool blocks
// embedded in a completed message are parsed, executed, and their result
// text substituted in place. No second model round-trip happens here.
// Returns the rewritten content and the number of calls executed.
func (b *Bridge) ResolveInline(ctx context.Context, content string) (string, int) {
	blocks := ParseBlocks(content)
	if len(blocks) == 0 {
		return content, 0
	}

	calls := make([]model.ToolCall, len(blocks))
	for i, blk := range blocks {
		calls[i] = blk.Call
	}

	results := b.ExecuteAll(ctx, calls)
	return Substitute(content, blocks, results), len(calls)
}
