package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"attache/model"
	"attache/provider"
	"attache/provider/testutil"
	"attache/storage"
	"attache/tools"
)

func failingSend(name string) func(context.Context, []model.Message, string, []mcptypes.Tool, model.StreamCallback) (*model.ResponseEnvelope, error) {
	return func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		return nil, model.NewProviderError(name, model.ErrorTransient, errors.New("boom"))
	}
}

func newService(t *testing.T, opts Options, providers ...*testutil.MockProvider) (*Service, *provider.Registry) {
	t.Helper()
	registry := provider.NewRegistry()
	for _, p := range providers {
		if err := registry.Register(p); err != nil {
			t.Fatal(err)
		}
	}
	return NewService(registry, opts), registry
}

func TestFallbackOrdering(t *testing.T) {
	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = failingSend("a")
	b := testutil.NewMockProvider("b", "m")
	b.SendFunc = failingSend("b")
	c := testutil.NewMockProvider("c", "m")

	svc, _ := newService(t, Options{}, a, b, c)

	envelope, err := svc.SendMessages(context.Background(), testutil.SingleUserMessage("hi"), "", "")
	if err != nil {
		t.Fatalf("SendMessages: %v", err)
	}

	if envelope.ProviderName != "c" {
		t.Errorf("attribution = %q, want c", envelope.ProviderName)
	}
	for _, p := range []*testutil.MockProvider{a, b, c} {
		if got := p.CallCount(); got != 1 {
			t.Errorf("provider %s invoked %d times, want 1", p.Name(), got)
		}
	}
}

func TestFallbackSkipsCredentialless(t *testing.T) {
	a := testutil.NewMockProvider("a", "m")
	a.HasCredential = false
	b := testutil.NewMockProvider("b", "m")

	svc, _ := newService(t, Options{}, a, b)

	envelope, err := svc.SendMessages(context.Background(), testutil.SingleUserMessage("hi"), "", "")
	if err != nil {
		t.Fatalf("SendMessages: %v", err)
	}
	if envelope.ProviderName != "b" {
		t.Errorf("attribution = %q, want b", envelope.ProviderName)
	}
	if a.CallCount() != 0 {
		t.Errorf("credential-less provider was invoked %d times", a.CallCount())
	}
}

func TestAllProvidersFailed(t *testing.T) {
	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = failingSend("a")
	b := testutil.NewMockProvider("b", "m")
	b.SendFunc = failingSend("b")

	svc, _ := newService(t, Options{}, a, b)

	_, err := svc.SendMessages(context.Background(), testutil.SingleUserMessage("hi"), "", "")

	var allFailed *model.AllProvidersFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("error = %v, want AllProvidersFailedError", err)
	}
	if len(allFailed.Failures) != 2 {
		t.Fatalf("%d failures recorded, want 2", len(allFailed.Failures))
	}
	if allFailed.Failures[0].Provider != "a" || allFailed.Failures[1].Provider != "b" {
		t.Errorf("failure order = %s, %s", allFailed.Failures[0].Provider, allFailed.Failures[1].Provider)
	}
}

func TestNoEligibleProviders(t *testing.T) {
	a := testutil.NewMockProvider("a", "m")
	a.HasCredential = false

	svc, _ := newService(t, Options{}, a)

	_, err := svc.SendMessages(context.Background(), testutil.SingleUserMessage("hi"), "", "")

	var allFailed *model.AllProvidersFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("error = %v, want AllProvidersFailedError", err)
	}
	if len(allFailed.Failures) != 1 || !errors.Is(allFailed.Failures[0].Err, model.ErrCredentialMissing) {
		t.Errorf("failures = %+v", allFailed.Failures)
	}
}

func TestActiveProviderTriedFirst(t *testing.T) {
	a := testutil.NewMockProvider("a", "m")
	b := testutil.NewMockProvider("b", "m")

	svc, registry := newService(t, Options{}, a, b)
	if err := registry.SetActive("b"); err != nil {
		t.Fatal(err)
	}

	envelope, err := svc.SendMessages(context.Background(), testutil.SingleUserMessage("hi"), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if envelope.ProviderName != "b" {
		t.Errorf("attribution = %q, want the active provider b", envelope.ProviderName)
	}
	if a.CallCount() != 0 {
		t.Errorf("non-active provider invoked before active one")
	}
}

func TestCancellationDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		if callback != nil {
			callback("partial")
		}
		cancel()
		return nil, ctx.Err()
	}
	b := testutil.NewMockProvider("b", "m")

	svc, _ := newService(t, Options{}, a, b)

	_, err := svc.SendMessagesStreaming(ctx, testutil.SingleUserMessage("hi"), func(string) error { return nil }, "", "")
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if b.CallCount() != 0 {
		t.Errorf("provider b invoked after caller cancellation")
	}
}

func TestTimeoutFallsBack(t *testing.T) {
	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	b := testutil.NewMockProvider("b", "m")

	svc, _ := newService(t, Options{RequestTimeout: 30 * time.Millisecond}, a, b)

	envelope, err := svc.SendMessages(context.Background(), testutil.SingleUserMessage("hi"), "", "")
	if err != nil {
		t.Fatalf("SendMessages: %v", err)
	}
	if envelope.ProviderName != "b" {
		t.Errorf("attribution = %q, want b after a timed out", envelope.ProviderName)
	}
}

func TestStreamingConcatenationEqualsFinal(t *testing.T) {
	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		chunks := []string{"The ", "answer ", "is ", "42."}
		var b strings.Builder
		for _, c := range chunks {
			b.WriteString(c)
			if callback != nil {
				if err := callback(c); err != nil {
					return nil, err
				}
			}
		}
		return &model.ResponseEnvelope{
			Message:      model.NewAssistantMessage(b.String()),
			ProviderName: "a",
		}, nil
	}

	svc, _ := newService(t, Options{}, a)

	var streamed strings.Builder
	envelope, err := svc.SendMessagesStreaming(context.Background(), testutil.SingleUserMessage("hi"), func(chunk string) error {
		streamed.WriteString(chunk)
		return nil
	}, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if streamed.String() != envelope.Message.Content {
		t.Errorf("streamed %q != final %q", streamed.String(), envelope.Message.Content)
	}
}

func TestNoFallbackAfterChunksDelivered(t *testing.T) {
	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		if callback != nil {
			callback("partial ")
		}
		return nil, model.NewProviderError("a", model.ErrorTransient, errors.New("stream died"))
	}
	b := testutil.NewMockProvider("b", "m")

	svc, _ := newService(t, Options{}, a, b)

	_, err := svc.SendMessagesStreaming(context.Background(), testutil.SingleUserMessage("hi"), func(string) error { return nil }, "", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if b.CallCount() != 0 {
		t.Error("fell back after chunks were already delivered")
	}
}

func TestBudgetExceededFlag(t *testing.T) {
	a := testutil.NewMockProvider("a", "m")
	svc, _ := newService(t, Options{ContextLength: 5}, a)

	envelope, err := svc.SendMessages(context.Background(), testutil.SingleUserMessage(strings.Repeat("x", 400)), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !envelope.BudgetExceeded {
		t.Error("BudgetExceeded not reported for an oversized latest user message")
	}
}

func toolBridge(t *testing.T, fns map[string]tools.Func) *tools.Bridge {
	t.Helper()
	reg := tools.NewRegistry()
	for name, fn := range fns {
		if err := reg.Register(mcptypes.Tool{Name: name}, fn); err != nil {
			t.Fatal(err)
		}
	}
	return tools.NewBridge(reg, 0)
}

func TestToolCallRoundTrip(t *testing.T) {
	var transcripts [][]model.Message
	calls := 0

	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		calls++
		transcripts = append(transcripts, messages)
		if calls == 1 {
			return &model.ResponseEnvelope{
				Message:      model.NewAssistantMessage(""),
				ProviderName: "a",
				ToolCalls: []model.ToolCall{
					{ID: "t1", Name: "get_weather", Arguments: map[string]any{"city": "Oslo"}},
					{ID: "t2", Name: "search", Arguments: map[string]any{"q": "news"}},
				},
			}, nil
		}
		return &model.ResponseEnvelope{
			Message:      model.NewAssistantMessage("It is sunny."),
			ProviderName: "a",
		}, nil
	}

	bridge := toolBridge(t, map[string]tools.Func{
		// get_weather finishes after search: folded order must still be
		// request order.
		"get_weather": func(ctx context.Context, args map[string]any) (string, error) {
			time.Sleep(30 * time.Millisecond)
			return "sunny", nil
		},
		"search": func(ctx context.Context, args map[string]any) (string, error) {
			return "headlines", nil
		},
	})

	svc, _ := newService(t, Options{Bridge: bridge}, a)

	envelope, err := svc.SendMessagesWithTools(context.Background(), testutil.SingleUserMessage("weather?"), testutil.TestTools(), "")
	if err != nil {
		t.Fatalf("SendMessagesWithTools: %v", err)
	}
	if envelope.Message.Content != "It is sunny." {
		t.Errorf("final content = %q", envelope.Message.Content)
	}
	if calls != 2 {
		t.Fatalf("provider invoked %d times, want 2", calls)
	}

	followUp := transcripts[1]
	var toolMsgs []model.Message
	for _, msg := range followUp {
		if msg.Role == model.RoleTool {
			toolMsgs = append(toolMsgs, msg)
		}
	}
	if len(toolMsgs) != 2 {
		t.Fatalf("follow-up carried %d tool messages, want 2", len(toolMsgs))
	}
	if toolMsgs[0].ToolName != "get_weather" || toolMsgs[1].ToolName != "search" {
		t.Errorf("tool fold order = %s, %s; want request order", toolMsgs[0].ToolName, toolMsgs[1].ToolName)
	}
	if toolMsgs[0].Content != "sunny" {
		t.Errorf("tool result content = %q", toolMsgs[0].Content)
	}
}

func TestSendMessageRunsDefaultToolLoop(t *testing.T) {
	calls := 0
	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		calls++
		if calls == 1 {
			return &model.ResponseEnvelope{
				Message:      model.NewAssistantMessage(""),
				ProviderName: "a",
				ToolCalls:    []model.ToolCall{{ID: "t1", Name: "ping"}},
			}, nil
		}
		return &model.ResponseEnvelope{Message: model.NewAssistantMessage("pong received"), ProviderName: "a"}, nil
	}

	executed := false
	bridge := toolBridge(t, map[string]tools.Func{
		"ping": func(ctx context.Context, args map[string]any) (string, error) {
			executed = true
			return "pong", nil
		},
	})

	svc, _ := newService(t, Options{Bridge: bridge, Tools: testutil.TestTools()}, a)

	envelope, err := svc.SendMessage(context.Background(), "use the tool", "", "")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !executed {
		t.Error("default tool definitions did not reach the bridge")
	}
	if envelope.Message.Content != "pong received" {
		t.Errorf("final content = %q", envelope.Message.Content)
	}
	if got := a.Calls(); len(got) != 2 || len(got[0].Tools) == 0 {
		t.Errorf("provider saw %d sends, tools on first = %d", len(got), len(got[0].Tools))
	}
}

func TestToolFollowUpStaysOnSameProvider(t *testing.T) {
	calls := 0
	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = failingSend("a")

	b := testutil.NewMockProvider("b", "m")
	b.SendFunc = func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		calls++
		if calls == 1 {
			return &model.ResponseEnvelope{
				Message:      model.NewAssistantMessage(""),
				ProviderName: "b",
				ToolCalls:    []model.ToolCall{{ID: "t1", Name: "ping", Arguments: nil}},
			}, nil
		}
		return &model.ResponseEnvelope{Message: model.NewAssistantMessage("done"), ProviderName: "b"}, nil
	}

	bridge := toolBridge(t, map[string]tools.Func{
		"ping": func(ctx context.Context, args map[string]any) (string, error) { return "pong", nil },
	})

	svc, _ := newService(t, Options{Bridge: bridge}, a, b)

	if _, err := svc.SendMessagesWithTools(context.Background(), testutil.SingleUserMessage("go"), nil, ""); err != nil {
		t.Fatal(err)
	}

	if got := a.CallCount(); got != 1 {
		t.Errorf("provider a invoked %d times, want exactly the initial fallback try", got)
	}
	if calls != 2 {
		t.Errorf("provider b invoked %d times, want initial + follow-up", calls)
	}
}

func TestToolLoopExceeded(t *testing.T) {
	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		return &model.ResponseEnvelope{
			Message:      model.NewAssistantMessage(""),
			ProviderName: "a",
			ToolCalls:    []model.ToolCall{{ID: "t", Name: "ping"}},
		}, nil
	}

	bridge := toolBridge(t, map[string]tools.Func{
		"ping": func(ctx context.Context, args map[string]any) (string, error) { return "pong", nil },
	})

	svc, _ := newService(t, Options{Bridge: bridge}, a)

	_, err := svc.SendMessagesWithTools(context.Background(), testutil.SingleUserMessage("go"), nil, "")

	var loopErr *model.ToolLoopExceededError
	if !errors.As(err, &loopErr) {
		t.Fatalf("error = %v, want ToolLoopExceededError", err)
	}
	if loopErr.Depth != tools.DefaultMaxDepth {
		t.Errorf("Depth = %d, want %d", loopErr.Depth, tools.DefaultMaxDepth)
	}
	if len(loopErr.Transcript) == 0 {
		t.Error("partial transcript missing")
	}
	var toolCount int
	for _, msg := range loopErr.Transcript {
		if msg.Role == model.RoleTool {
			toolCount++
		}
	}
	if toolCount != tools.DefaultMaxDepth {
		t.Errorf("transcript holds %d tool folds, want %d", toolCount, tools.DefaultMaxDepth)
	}
}

func TestInlineToolBlocksResolved(t *testing.T) {
	content := "Let me check.\n```tool\n{\"name\": \"clock\"}\n```\nDone."

	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		return &model.ResponseEnvelope{
			Message:      model.NewAssistantMessage(content),
			ProviderName: "a",
		}, nil
	}

	bridge := toolBridge(t, map[string]tools.Func{
		"clock": func(ctx context.Context, args map[string]any) (string, error) { return "12:00", nil },
	})

	svc, _ := newService(t, Options{Bridge: bridge}, a)

	envelope, err := svc.SendMessagesWithTools(context.Background(), testutil.SingleUserMessage("time?"), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	want := "Let me check.\n12:00Done."
	if envelope.Message.Content != want {
		t.Errorf("resolved content = %q, want %q", envelope.Message.Content, want)
	}
}

func TestSameConversationSerialized(t *testing.T) {
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32

	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return &model.ResponseEnvelope{Message: model.NewAssistantMessage("ok"), ProviderName: "a"}, nil
	}

	svc, _ := newService(t, Options{}, a)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc.SendMessages(context.Background(), testutil.SingleUserMessage(fmt.Sprintf("msg %d", i)), "", "conv-1")
		}(i)
	}
	wg.Wait()

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent sends on one conversation = %d, want 1", got)
	}
}

func TestDifferentConversationsRunConcurrently(t *testing.T) {
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32

	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = func(ctx context.Context, messages []model.Message, systemPrompt string, toolDefs []mcptypes.Tool, callback model.StreamCallback) (*model.ResponseEnvelope, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		return &model.ResponseEnvelope{Message: model.NewAssistantMessage("ok"), ProviderName: "a"}, nil
	}

	svc, _ := newService(t, Options{}, a)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc.SendMessages(context.Background(), testutil.SingleUserMessage("hi"), "", fmt.Sprintf("conv-%d", i))
		}(i)
	}
	wg.Wait()

	if got := maxInFlight.Load(); got < 2 {
		t.Errorf("max concurrent sends across conversations = %d, want >= 2", got)
	}
}

func TestSendMessagePersistsTurn(t *testing.T) {
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	a := testutil.NewMockProvider("a", "m")
	svc, _ := newService(t, Options{Store: store}, a)

	envelope, err := svc.SendMessage(context.Background(), "Hello there", "", "")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if envelope.ConversationID == "" {
		t.Fatal("envelope carries no conversation id")
	}

	conv, err := store.GetConversation(envelope.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("persisted %d messages, want user + assistant", len(conv.Messages))
	}
	if conv.Messages[0].Role != model.RoleUser || conv.Messages[1].Role != model.RoleAssistant {
		t.Errorf("persisted roles = %s, %s", conv.Messages[0].Role, conv.Messages[1].Role)
	}
	if conv.Name != "Hello there" {
		t.Errorf("conversation name = %q", conv.Name)
	}

	// Second turn reuses the conversation and sees the history
	if _, err := svc.SendMessage(context.Background(), "Follow up", "", envelope.ConversationID); err != nil {
		t.Fatal(err)
	}
	conv, _ = store.GetConversation(envelope.ConversationID)
	if len(conv.Messages) != 4 {
		t.Errorf("after second turn: %d messages, want 4", len(conv.Messages))
	}

	calls := a.Calls()
	if len(calls) != 2 {
		t.Fatalf("provider saw %d sends", len(calls))
	}
	if len(calls[1].Messages) != 3 {
		t.Errorf("second send carried %d messages, want history + new user message", len(calls[1].Messages))
	}
}

func TestFailedSendPersistsNothing(t *testing.T) {
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	a := testutil.NewMockProvider("a", "m")
	a.SendFunc = failingSend("a")
	svc, _ := newService(t, Options{Store: store}, a)

	envelope, err := svc.SendMessage(context.Background(), "doomed", "", "")
	if err == nil {
		t.Fatal("expected failure")
	}
	_ = envelope

	list, _ := store.ListConversations()
	for _, meta := range list {
		if meta.MessageCount != 0 {
			t.Errorf("failed send persisted %d messages", meta.MessageCount)
		}
	}
}

func TestSetActiveProvider(t *testing.T) {
	a := testutil.NewMockProvider("a", "m")
	b := testutil.NewMockProvider("b", "m")
	svc, _ := newService(t, Options{}, a, b)

	if !svc.SetActiveProvider("b") {
		t.Error("SetActiveProvider(b) should succeed")
	}
	if svc.SetActiveProvider("missing") {
		t.Error("SetActiveProvider(missing) should fail")
	}

	if _, ok := svc.GetProvider("a"); !ok {
		t.Error("GetProvider(a) should find the provider")
	}
}
