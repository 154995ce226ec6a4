package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"attache/config"
	"attache/model"
	"attache/orchestrator"
	"attache/provider"
	"attache/storage"
	"attache/tools"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	registry, err := provider.InitializeProviders(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize providers: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.DataDir())
	if err != nil {
		fmt.Printf("Failed to open conversation store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	toolReg := tools.NewRegistry()
	registerBuiltinTools(toolReg)
	bridge := tools.NewBridge(toolReg, cfg.MaxToolDepth)

	svc := orchestrator.NewService(registry, orchestrator.Options{
		Store:               store,
		Bridge:              bridge,
		Tools:               toolReg.Definitions(),
		RequestTimeout:      cfg.RequestTimeout,
		ContextLength:       cfg.ContextLength,
		DefaultSystemPrompt: cfg.DefaultSystemPrompt,
	})

	// Model catalogs load in the background; sends work before this
	// finishes, they just use the default context length until then.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc.RefreshModels(ctx)
	}()

	fmt.Printf("attache %s (%s). Active provider: %s. Type /help for commands.\n",
		Version, License, registry.ActiveName())

	repl(svc, registry, store)
}

func registerBuiltinTools(reg *tools.Registry) {
	reg.Register(tools.CurrentTimeTool(), tools.CurrentTimeFunc)
}

func repl(svc *orchestrator.Service, registry *provider.Registry, store *storage.Store) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	conversationID := ""

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(svc, registry, store, line, &conversationID); quit {
				return
			}
			continue
		}

		envelope, err := svc.SendMessage(context.Background(), line, "", conversationID)
		if err != nil {
			printSendError(err)
			continue
		}
		conversationID = envelope.ConversationID

		fmt.Println(envelope.Message.Content)
		if envelope.BudgetExceeded {
			fmt.Println("(note: history exceeds the model's context window; the reply may be missing context)")
		}
	}
}

func runCommand(svc *orchestrator.Service, registry *provider.Registry, store *storage.Store, line string, conversationID *string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(`/providers        list registered providers
/use <name>       switch the active provider
/models           list cached models for the active provider
/refresh          re-fetch model catalogs
/new              start a new conversation
/list             list stored conversations
/open <id>        continue a stored conversation
/quit             exit`)

	case "/providers":
		active := registry.ActiveName()
		for _, name := range registry.Names() {
			marker := " "
			if name == active {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}

	case "/use":
		if !svc.SetActiveProvider(arg) {
			fmt.Printf("unknown provider: %s\n", arg)
		}

	case "/models":
		for _, m := range registry.ModelsFor(registry.ActiveName()) {
			fmt.Printf("%s (ctx %d)\n", m.Name, m.ContextLength)
		}

	case "/refresh":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		svc.RefreshModels(ctx)
		cancel()

	case "/new":
		*conversationID = ""
		fmt.Println("new conversation")

	case "/list":
		list, err := store.ListConversations()
		if err != nil {
			fmt.Printf("list failed: %v\n", err)
			break
		}
		for _, meta := range list {
			fmt.Printf("%s  %s (%d messages)\n", meta.ID, meta.Name, meta.MessageCount)
		}

	case "/open":
		if _, err := store.GetConversation(arg); err != nil {
			fmt.Printf("open failed: %v\n", err)
			break
		}
		*conversationID = arg

	default:
		fmt.Printf("unknown command: %s\n", cmd)
	}

	return false
}

func printSendError(err error) {
	var allFailed *model.AllProvidersFailedError
	if errors.As(err, &allFailed) {
		fmt.Println("all providers failed:")
		for _, f := range allFailed.Failures {
			fmt.Printf("  %s: %v\n", f.Provider, f.Err)
		}
		return
	}

	var loopErr *model.ToolLoopExceededError
	if errors.As(err, &loopErr) {
		fmt.Printf("tool loop exceeded depth %d\n", loopErr.Depth)
		return
	}

	fmt.Printf("send failed: %v\n", err)
}
