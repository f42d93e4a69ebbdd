// Command execution for CLI commands.
//
// Information Hiding:
// - Component wiring hidden behind BuildStack
// - Chat loop dispatch and output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/richinex/tempo/agent"
	"github.com/richinex/tempo/config"
	"github.com/richinex/tempo/llm"
	"github.com/richinex/tempo/playback"
	"github.com/richinex/tempo/storage"
	"github.com/richinex/tempo/tools"
)

// Stack bundles the wired application components. Both the chat loop and
// the HTTP server build on the same stack.
type Stack struct {
	Settings config.Settings
	Service  llm.Service
	Registry *tools.Registry
	Store    *storage.Store
	Playback playback.Service
	Orch     *agent.Orchestrator
}

// BuildStack wires the full application from environment settings.
func BuildStack() (*Stack, error) {
	settings, err := config.New()
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKey()
	if err != nil {
		return nil, err
	}

	service := llm.NewOpenAIService(apiKey, settings.LLM.Model, settings.LLM.Timeout, settings.LLM.MaxRetries)

	registry, err := tools.WithDefaults(settings.Tools.MaxAlternatives)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	primary := storage.NewRedisBackend(settings.Store.RedisAddr, settings.Store.RedisPassword, settings.Store.RedisDB)
	fallback := storage.NewFileBackend(settings.Store.FallbackDir)
	store := storage.NewStore(primary, fallback, settings.Store.SessionTTL)

	orch := agent.NewOrchestrator(service, registry, store, agent.Config{
		Model:           settings.LLM.Model,
		Instructions:    settings.LLM.Instructions,
		Temperature:     settings.LLM.Temperature,
		MaxOutputTokens: settings.LLM.MaxTokens,
		ReasoningEffort: settings.LLM.ReasoningEffort,
		MaxToolDepth:    settings.Orch.MaxToolDepth,
		UseTools:        true,
	})

	return &Stack{
		Settings: settings,
		Service:  service,
		Registry: registry,
		Store:    store,
		Playback: playback.NewSpotifyService(),
		Orch:     orch,
	}, nil
}

// RunCommand executes a single command and prints the response.
func RunCommand(ctx context.Context, stack *Stack, sessionID, input string) error {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := stack.Orch.Execute(ctx, sessionID, input, stack.env(sessionID), nil)
	if err != nil {
		return fmt.Errorf("command failed: %w", err)
	}

	fmt.Printf("%s\n", result.Text)
	return nil
}

// Chat starts an interactive session. Responses stream to stdout as they
// arrive; slash commands manage the session:
//
//	/history - show stored turns
//	/clear   - wipe history and continuity pointer
//	/reset   - drop only the continuity pointer
//	/quit    - exit
func Chat(ctx context.Context, stack *Stack, sessionID string) error {
	if sessionID == "" {
		sessionID = uuid.NewString()
		fmt.Printf("Session: %s\n", sessionID)
	}
	fmt.Println("Type a command, or /history, /clear, /reset, /quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := stack.slashCommand(ctx, sessionID, input); quit {
				return nil
			}
			continue
		}

		if err := stack.streamToStdout(ctx, sessionID, input); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

// slashCommand dispatches one interactive command. Returns true on /quit.
func (s *Stack) slashCommand(ctx context.Context, sessionID, input string) bool {
	switch input {
	case "/quit", "/exit":
		return true
	case "/history":
		session := s.Store.Load(ctx, sessionID)
		if len(session.ConversationHistory) == 0 {
			fmt.Println("No history yet.")
			return false
		}
		for i, turn := range session.ConversationHistory {
			fmt.Printf("%d. you: %s\n   assistant: %s\n", i+1, turn.Input, turn.Output)
		}
	case "/clear":
		session := s.Store.Load(ctx, sessionID)
		session.Clear()
		s.Store.Save(ctx, sessionID, session)
		fmt.Println("Session cleared.")
	case "/reset":
		session := s.Store.Load(ctx, sessionID)
		session.ResetContinuity()
		s.Store.Save(ctx, sessionID, session)
		fmt.Println("Continuity pointer reset; history kept.")
	default:
		fmt.Printf("Unknown command %q.\n", input)
	}
	return false
}

// streamToStdout runs one command and prints chunks as they arrive.
func (s *Stack) streamToStdout(ctx context.Context, sessionID, input string) error {
	chunks := make(chan string, 16)
	done := make(chan int)
	go func() {
		streamed := 0
		for chunk := range chunks {
			fmt.Print(chunk)
			streamed += len(chunk)
		}
		done <- streamed
	}()

	result, err := s.Orch.ExecuteStream(ctx, sessionID, input, s.env(sessionID), nil, chunks)
	close(chunks)
	streamed := <-done
	if err != nil {
		return err
	}

	// A turn that ended in tool output may produce no deltas; fall back
	// to the reconstructed response.
	if streamed == 0 {
		fmt.Print(result.Text)
	}
	fmt.Println()
	if result.Usage != nil {
		log.Debug().
			Int64("inputTokens", result.Usage.InputTokens).
			Int64("outputTokens", result.Usage.OutputTokens).
			Msg("turn usage")
	}
	return nil
}

// env builds the tool execution context for a CLI session. The Spotify
// token comes from the environment; interactive use has no per-request
// credential channel.
func (s *Stack) env(sessionID string) *tools.ExecutionContext {
	return &tools.ExecutionContext{
		SessionKey:   sessionID,
		SpotifyToken: os.Getenv("SPOTIFY_ACCESS_TOKEN"),
		Playback:     s.Playback,
	}
}
