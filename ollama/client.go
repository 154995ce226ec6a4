// Package ollama wraps the official Ollama API client with streaming
// accumulation and a curated tool-capability table for local models.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"attache/model"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1:latest"
)

type Client struct {
	client  *api.Client
	model   string
	baseURL string
}

// StreamCallback receives each content chunk as it arrives.
type StreamCallback func(chunk string) error

// ChatResult is the assembled outcome of one streamed exchange.
type ChatResult struct {
	Content          string
	ToolCalls        []api.ToolCall
	PromptTokens     int
	CompletionTokens int
}

func NewClient(baseURL, modelName string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(parsed, http.DefaultClient),
		model:   modelName,
		baseURL: baseURL,
	}, nil
}

// Chat streams a chat request, invoking callback for each content chunk,
// and returns the accumulated result. Token counts come from the final
// (done) response's eval metrics. callback may be nil.
func (c *Client) Chat(ctx context.Context, messages []api.Message, tools []api.Tool, callback StreamCallback) (*ChatResult, error) {
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
		Stream:   func(b bool) *bool { return &b }(true),
	}

	result := &ChatResult{}
	var content strings.Builder

	respFunc := func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			content.WriteString(resp.Message.Content)
			if callback != nil {
				if err := callback(resp.Message.Content); err != nil {
					return err
				}
			}
		}
		if len(resp.Message.ToolCalls) > 0 {
			result.ToolCalls = append(result.ToolCalls, resp.Message.ToolCalls...)
		}
		if resp.Done {
			result.PromptTokens = resp.PromptEvalCount
			result.CompletionTokens = resp.EvalCount
		}
		return nil
	}

	if err := c.client.Chat(ctx, req, respFunc); err != nil {
		return nil, err
	}

	result.Content = content.String()
	return result, nil
}

// ListModels returns the models installed on the Ollama server, with
// tool support derived from the capability table below.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = model.ModelInfo{
			Name:          m.Name,
			InternalName:  m.Name,
			Size:          m.Size,
			Provider:      "ollama",
			SupportsTools: ModelSupportsToolCalling(m.Name),
		}
	}
	return models, nil
}

func (c *Client) SetModel(modelName string) {
	c.model = modelName
}

func (c *Client) GetModel() string {
	return c.model
}

// Ping checks the server is reachable with a short-deadline list call.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}

// Which local model families support Ollama's native tool-calling API.
// Curated from Ollama documentation and community testing.
var toolCallingModels = map[string]bool{
	"qwen":      true,
	"llama3.1":  true,
	"llama3.2":  true,
	"llama3.3":  true,
	"mistral":   true,
	"command-r": true,
	"nemotron":  true,
	"granite3":  true,

	"llama3-gradient": false,
	"llama3":          false, // original llama3, not 3.1/3.2/3.3
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false,
}

// Prefixes are checked most-specific first so "llama3.2" never matches
// the generic "llama3" entry.
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "nemotron", "granite3",
	"codellama",
	"llama3",
	"deepseek", "phi", "gemma",
}

// SupportsToolCalling reports whether the client's current model supports
// the native tool-calling API. Unknown models default to false.
func (c *Client) SupportsToolCalling() bool {
	return ModelSupportsToolCalling(c.model)
}

// ModelSupportsToolCalling checks a model name against the capability
// table without needing a Client.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			if supported, exists := toolCallingModels[prefix]; exists {
				return supported
			}
		}
	}
	return false
}
