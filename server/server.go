// Package server exposes the assistant over HTTP.
//
// Endpoints:
//
//	POST /api/command                     - run one command (JSON request/response)
//	POST /api/command/stream              - run one command (SSE streaming)
//	GET  /api/sessions/{id}/history       - conversation history
//	POST /api/sessions/{id}/clear         - wipe history and continuity pointer
//	POST /api/sessions/{id}/reset-pointer - drop only the continuity pointer
//	GET  /health                          - liveness and store connectivity
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - command.go: command endpoints (sync + SSE)
//   - session.go: session management and health endpoints
//   - response.go: JSON response helpers
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/richinex/tempo/agent"
	"github.com/richinex/tempo/playback"
	"github.com/richinex/tempo/storage"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to keep slow clients from
	// pinning connections.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// IdleTimeout is the maximum keep-alive wait between requests.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP surface over the orchestrator and session store.
type Server struct {
	mux *http.ServeMux

	command *CommandHandler
	session *SessionHandler
}

// NewServer creates a server with all routes registered.
func NewServer(orch *agent.Orchestrator, store *storage.Store, pb playback.Service) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		command: NewCommandHandler(orch, pb),
		session: NewSessionHandler(store),
	}

	s.command.RegisterRoutes(mux)
	s.session.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler. Credential enforcement
// is per-route: only the command endpoints require it.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware, loggingMiddleware)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully. WriteTimeout is deliberately unset: SSE
// responses stay open for the full command duration.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
