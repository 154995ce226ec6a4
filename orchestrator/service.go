// Package orchestrator is the facade over providers, budget, tools and
// storage. It owns the fallback chain, per-conversation serialization,
// and the tool round-trip loop.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"attache/budget"
	"attache/config"
	"attache/model"
	"attache/provider"
	"attache/storage"
	"attache/tools"
)

const (
	defaultRequestTimeout = 120 * time.Second
	defaultContextLength  = 8192
)

// Options configures a Service. Store and Bridge are optional: without
// a Store nothing is persisted, without a Bridge structured tool calls
// are returned to the caller unexecuted. Tools are the definitions
// offered on every SendMessage turn; callers of SendMessagesWithTools
// pass their own set instead.
type Options struct {
	Store               *storage.Store
	Bridge              *tools.Bridge
	Tools               []mcptypes.Tool
	RequestTimeout      time.Duration
	ContextLength       int
	DefaultSystemPrompt string
}

// Service turns a logical request into a provider exchange: trim to the
// target model's budget, walk the fallback chain, run the tool loop,
// persist the turn.
type Service struct {
	registry            *provider.Registry
	store               *storage.Store
	bridge              *tools.Bridge
	toolDefs            []mcptypes.Tool
	requestTimeout      time.Duration
	contextLength       int
	defaultSystemPrompt string
	locks               *conversationLocks
}

// NewService creates a Service over an initialized registry.
func NewService(registry *provider.Registry, opts Options) *Service {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	contextLength := opts.ContextLength
	if contextLength <= 0 {
		contextLength = defaultContextLength
	}

	return &Service{
		registry:            registry,
		store:               opts.Store,
		bridge:              opts.Bridge,
		toolDefs:            opts.Tools,
		requestTimeout:      timeout,
		contextLength:       contextLength,
		defaultSystemPrompt: opts.DefaultSystemPrompt,
		locks:               newConversationLocks(),
	}
}

// SendMessage sends one user message in a conversation, creating the
// conversation when conversationID is empty. History is loaded from the
// store; the user message and the answer are persisted on success. When
// the service carries a bridge and default tool definitions, the turn
// runs the full tool loop.
func (s *Service) SendMessage(ctx context.Context, text, systemPrompt, conversationID string) (*model.ResponseEnvelope, error) {
	userMsg := model.NewUserMessage(text)

	if s.store == nil {
		return s.sendTurn(ctx, []model.Message{userMsg}, s.resolveSystemPrompt(systemPrompt, ""))
	}

	if conversationID == "" {
		conv, err := s.store.CreateConversation(
			storage.GenerateConversationName(text),
			s.registry.ActiveName(),
			s.activeModelName(),
			systemPrompt,
		)
		if err != nil {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
		conversationID = conv.ID
	}

	unlock := s.locks.acquire(conversationID)
	defer unlock()

	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}

	messages := append(conv.Messages, userMsg)
	prompt := s.resolveSystemPrompt(systemPrompt, conv.SystemPrompt)

	envelope, err := s.sendTurn(ctx, messages, prompt)
	if err != nil {
		return nil, err
	}

	if err := s.store.AppendMessage(conversationID, userMsg); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}
	if err := s.store.AppendMessage(conversationID, envelope.Message); err != nil {
		return nil, fmt.Errorf("persisting assistant message: %w", err)
	}

	envelope.ConversationID = conversationID
	return envelope, nil
}

// SendMessages sends a caller-assembled message list. With a non-empty
// conversationID the send serializes against other sends on that
// conversation and the trailing user message plus the answer are
// persisted; history still comes from the caller, not the store.
func (s *Service) SendMessages(ctx context.Context, messages []model.Message, systemPrompt, conversationID string) (*model.ResponseEnvelope, error) {
	return s.sendConversation(ctx, messages, systemPrompt, conversationID, nil)
}

// SendMessagesStreaming is SendMessages with incremental chunk
// delivery. The concatenation of callback payloads equals the final
// message content.
func (s *Service) SendMessagesStreaming(ctx context.Context, messages []model.Message, callback model.StreamCallback, systemPrompt, conversationID string) (*model.ResponseEnvelope, error) {
	return s.sendConversation(ctx, messages, systemPrompt, conversationID, callback)
}

func (s *Service) sendConversation(ctx context.Context, messages []model.Message, systemPrompt, conversationID string, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
	if conversationID != "" {
		unlock := s.locks.acquire(conversationID)
		defer unlock()
	}

	envelope, err := s.sendWithFallback(ctx, messages, s.resolveSystemPrompt(systemPrompt, ""), nil, callback)
	if err != nil {
		return nil, err
	}

	if conversationID != "" && s.store != nil {
		if n := len(messages); n > 0 && messages[n-1].Role == model.RoleUser {
			if err := s.store.AppendMessage(conversationID, messages[n-1]); err != nil {
				return nil, fmt.Errorf("persisting user message: %w", err)
			}
		}
		if err := s.store.AppendMessage(conversationID, envelope.Message); err != nil {
			return nil, fmt.Errorf("persisting assistant message: %w", err)
		}
		envelope.ConversationID = conversationID
	}

	return envelope, nil
}

// sendTurn is the send path for one conversation turn: the tool loop
// when the service carries a bridge and default tool definitions, a
// plain fallback send otherwise.
func (s *Service) sendTurn(ctx context.Context, messages []model.Message, prompt string) (*model.ResponseEnvelope, error) {
	if s.bridge != nil && len(s.toolDefs) > 0 {
		return s.runToolLoop(ctx, messages, prompt, s.toolDefs)
	}
	return s.sendWithFallback(ctx, messages, prompt, nil, nil)
}

// SendMessagesWithTools runs the full tool loop: send with tool
// definitions, execute requested calls through the bridge, fold results
// into the transcript in request order, and follow up with the same
// provider until it answers without tool calls or the depth limit
// trips.
func (s *Service) SendMessagesWithTools(ctx context.Context, messages []model.Message, toolDefs []mcptypes.Tool, systemPrompt string) (*model.ResponseEnvelope, error) {
	return s.runToolLoop(ctx, messages, s.resolveSystemPrompt(systemPrompt, ""), toolDefs)
}

func (s *Service) runToolLoop(ctx context.Context, messages []model.Message, prompt string, toolDefs []mcptypes.Tool) (*model.ResponseEnvelope, error) {
	envelope, p, err := s.attemptChain(ctx, messages, prompt, toolDefs, nil)
	if err != nil {
		return nil, err
	}

	if s.bridge == nil {
		return envelope, nil
	}

	transcript := append([]model.Message(nil), messages...)

	for depth := 0; len(envelope.ToolCalls) > 0; depth++ {
		if depth >= s.bridge.MaxDepth() {
			return nil, &model.ToolLoopExceededError{
				Depth:      s.bridge.MaxDepth(),
				Transcript: transcript,
			}
		}

		if config.Debug && config.DebugLog != nil {
			config.DebugLog.Printf("executing %d tool calls (round %d) via %s", len(envelope.ToolCalls), depth+1, envelope.ProviderName)
		}

		results := s.bridge.ExecuteAll(ctx, envelope.ToolCalls)

		if envelope.Message.Content != "" {
			transcript = append(transcript, envelope.Message)
		}
		transcript = append(transcript, tools.FoldResults(results)...)

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Follow-up goes to the provider that asked for the tools, not
		// a fresh fallback pass.
		followUp, err := s.attemptProvider(ctx, p, transcript, prompt, toolDefs, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		envelope = followUp
	}

	// Vendors without structured tool calls embed fenced tool blocks in
	// the text; resolve them in place without another model round-trip.
	if resolved, n := s.bridge.ResolveInline(ctx, envelope.Message.Content); n > 0 {
		envelope.Message.Content = resolved
	}

	return envelope, nil
}

// sendWithFallback walks the chain and discards the provider binding.
func (s *Service) sendWithFallback(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
	envelope, _, err := s.attemptChain(ctx, messages, systemPrompt, toolDefs, callback)
	return envelope, err
}

// attemptChain tries providers strictly in chain order: active first,
// then registration order. Credential-less providers are skipped
// without counting as a try. The first success wins; the envelope's
// attribution names the provider that actually answered. Fallback is
// sequential, never parallel.
func (s *Service) attemptChain(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, model.Provider, error) {
	chain := s.registry.Chain()

	var failures []model.ProviderFailure
	var skipped []model.ProviderFailure
	delivered := false

	wrapped := callback
	if callback != nil {
		wrapped = func(chunk string) error {
			delivered = true
			return callback(chunk)
		}
	}

	for _, p := range chain {
		if !p.HasValidCredential() {
			skipped = append(skipped, model.ProviderFailure{Provider: p.Name(), Err: model.ErrCredentialMissing})
			if config.Debug && config.DebugLog != nil {
				config.DebugLog.Printf("skipping %s: no credential", p.Name())
			}
			continue
		}

		envelope, err := s.attemptProvider(ctx, p, messages, systemPrompt, toolDefs, wrapped)
		if err == nil {
			return envelope, p, nil
		}

		// Caller cancellation aborts the chain; it is not a provider
		// failure and must not trigger fallback.
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		if config.Debug && config.DebugLog != nil {
			config.DebugLog.Printf("provider %s failed: %v", p.Name(), err)
		}
		failures = append(failures, model.ProviderFailure{Provider: p.Name(), Err: err})

		// Chunks already reached the caller; a second provider would
		// replay the answer from the start and break the streaming
		// contract, so stop here.
		if delivered {
			return nil, nil, &model.AllProvidersFailedError{Failures: failures}
		}
	}

	if len(failures) == 0 {
		failures = skipped
	}
	return nil, nil, &model.AllProvidersFailedError{Failures: failures}
}

// attemptProvider runs one provider attempt under its own timeout. A
// timeout surfaces as a transient ProviderError, which the chain treats
// like any other provider failure.
func (s *Service) attemptProvider(ctx context.Context, p model.Provider, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
	limit := s.contextLimitFor(p)
	trimmed, violated := budget.Trim(messages, limit, true)
	if violated && config.Debug && config.DebugLog != nil {
		config.DebugLog.Printf("budget violation on %s: limit %d cannot fit latest user message", p.Name(), limit)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	envelope, err := p.SendStreaming(attemptCtx, trimmed, systemPrompt, toolDefs, callback)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, model.NewProviderError(p.Name(), model.ErrorTransient, fmt.Errorf("attempt timed out after %s", s.requestTimeout))
		}
		return nil, err
	}

	envelope.BudgetExceeded = violated
	return envelope, nil
}

// contextLimitFor resolves the provider's current model context window
// from the cached catalog, falling back to the configured default.
func (s *Service) contextLimitFor(p model.Provider) int {
	for _, m := range s.registry.ModelsFor(p.Name()) {
		if m.InternalName == p.GetModel() && m.ContextLength > 0 {
			return m.ContextLength
		}
	}
	return s.contextLength
}

func (s *Service) resolveSystemPrompt(explicit, conversational string) string {
	if explicit != "" {
		return explicit
	}
	if conversational != "" {
		return conversational
	}
	return s.defaultSystemPrompt
}

func (s *Service) activeModelName() string {
	if p, ok := s.registry.Active(); ok {
		return p.GetModel()
	}
	return ""
}

// RefreshModels re-fetches the model catalog of every credentialed
// provider.
func (s *Service) RefreshModels(ctx context.Context) {
	s.registry.RefreshModels(ctx)
}

// RefreshModelsForProvider re-fetches one provider's catalog; false
// when the provider is unknown or the fetch failed.
func (s *Service) RefreshModelsForProvider(ctx context.Context, name string) bool {
	return s.registry.RefreshModelsForProvider(ctx, name) == nil
}

// SetActiveProvider switches the preferred provider; false for unknown
// names. In-flight sends keep the chain snapshot they started with.
func (s *Service) SetActiveProvider(name string) bool {
	return s.registry.SetActive(name) == nil
}

// GetProvider returns a registered provider by name.
func (s *Service) GetProvider(name string) (model.Provider, bool) {
	return s.registry.Get(name)
}
