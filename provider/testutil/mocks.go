package testutil

import (
	"context"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"attache/model"
)

// MockProvider implements model.Provider for testing. Each behavior is
// a function field with a sensible default, so a test overrides only
// what it needs. Calls to SendStreaming are recorded for assertions on
// fallback order and follow-up routing.
type MockProvider struct {
	// Identity and eligibility
	ProviderName  string
	HasCredential bool

	// Configurable responses
	SendFunc       func(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error)
	ListModelsFunc func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc       func(ctx context.Context) error

	mu           sync.Mutex
	currentModel string
	calls        []SendCall
}

// SendCall records one SendStreaming invocation.
type SendCall struct {
	Messages     []model.Message
	SystemPrompt string
	Tools        []mcptypes.Tool
	Streaming    bool
}

// NewMockProvider creates a mock provider with default implementations:
// credentialed, one fixed model, echoes a canned response.
func NewMockProvider(name, modelName string) *MockProvider {
	mock := &MockProvider{
		ProviderName:  name,
		HasCredential: true,
		currentModel:  modelName,
	}
	mock.SendFunc = mock.defaultSend
	mock.ListModelsFunc = mock.defaultListModels
	mock.PingFunc = func(ctx context.Context) error { return nil }
	return mock
}

func (m *MockProvider) defaultSend(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
	content := "Mock response"
	if callback != nil {
		if err := callback(content); err != nil {
			return nil, err
		}
	}
	return &model.ResponseEnvelope{
		Message:      model.NewAssistantMessage(content),
		ProviderName: m.ProviderName,
		ModelName:    m.GetModel(),
	}, nil
}

func (m *MockProvider) defaultListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return []model.ModelInfo{
		{Name: "mock-model-1", InternalName: "mock-model-1", Provider: m.ProviderName, Size: 1000},
		{Name: "mock-model-2", InternalName: "mock-model-2", Provider: m.ProviderName, Size: 2000},
	}, nil
}

func (m *MockProvider) Name() string {
	return m.ProviderName
}

func (m *MockProvider) Capabilities() model.Capabilities {
	return model.Capabilities{Streaming: true, ToolCalls: true}
}

func (m *MockProvider) HasValidCredential() bool {
	return m.HasCredential
}

func (m *MockProvider) Send(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool) (*model.ResponseEnvelope, error) {
	m.record(messages, systemPrompt, tools, false)
	return m.SendFunc(ctx, messages, systemPrompt, tools, nil)
}

func (m *MockProvider) SendStreaming(ctx context.Context, messages []model.Message, systemPrompt string, tools []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
	m.record(messages, systemPrompt, tools, true)
	return m.SendFunc(ctx, messages, systemPrompt, tools, callback)
}

func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return m.ListModelsFunc(ctx)
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModel
}

func (m *MockProvider) GetDisplayName() string {
	return m.GetModel()
}

func (m *MockProvider) SetModel(id string) bool {
	if id == "" {
		return false
	}
	m.mu.Lock()
	m.currentModel = id
	m.mu.Unlock()
	return true
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

func (m *MockProvider) record(messages []model.Message, systemPrompt string, tools []mcptypes.Tool, streaming bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SendCall{
		Messages:     messages,
		SystemPrompt: systemPrompt,
		Tools:        tools,
		Streaming:    streaming,
	})
}

// Calls returns a snapshot of recorded send invocations.
func (m *MockProvider) Calls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many sends this provider received.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
