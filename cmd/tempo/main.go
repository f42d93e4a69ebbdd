// Package main provides the tempo CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/richinex/tempo/cli"
	"github.com/richinex/tempo/server"
)

var (
	// Global flags
	sessionID string
	verbose   bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "tempo",
		Short: "Natural-language Spotify control",
		Long: `Tempo turns natural-language commands into Spotify actions through an LLM.

Commands run against a persistent per-session conversation: the model keeps
context across turns, calls tools to play music or suggest alternatives, and
stores history in Redis with a file fallback.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "Session id (default: random)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(clearCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [command]",
		Short: "Execute a single command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := cli.BuildStack()
			if err != nil {
				return err
			}
			return cli.RunCommand(cmd.Context(), stack, sessionID, strings.Join(args, " "))
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := cli.BuildStack()
			if err != nil {
				return err
			}
			return cli.Chat(cmd.Context(), stack, sessionID)
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := cli.BuildStack()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = stack.Settings.Server.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.NewServer(stack.Orch, stack.Store, stack.Playback)
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: SERVER_ADDR)")
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print a session's conversation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			stack, err := cli.BuildStack()
			if err != nil {
				return err
			}
			session := stack.Store.Load(cmd.Context(), sessionID)
			if len(session.ConversationHistory) == 0 {
				fmt.Println("No history.")
				return nil
			}
			for i, turn := range session.ConversationHistory {
				fmt.Printf("%d. [%s] you: %s\n   assistant: %s\n",
					i+1, turn.Timestamp.Format("2006-01-02 15:04"), turn.Input, turn.Output)
			}
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Wipe a session's history and continuity pointer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			stack, err := cli.BuildStack()
			if err != nil {
				return err
			}
			session := stack.Store.Load(cmd.Context(), sessionID)
			session.Clear()
			stack.Store.Save(cmd.Context(), sessionID, session)
			fmt.Println("Session cleared.")
			return nil
		},
	}
}
