package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/richinex/tempo/agent"
	"github.com/richinex/tempo/llm"
	"github.com/richinex/tempo/playback"
	"github.com/richinex/tempo/tools"
)

// spotifyTokenHeader carries the caller's Spotify access token. The
// command routes reject requests without it; validity is only discovered
// when a tool uses the token.
const spotifyTokenHeader = "X-Spotify-Token"

// CommandHandler handles the command endpoints.
//
// Endpoints:
//   - POST /api/command        - Synchronous command (JSON request/response)
//   - POST /api/command/stream - Streaming command (SSE)
type CommandHandler struct {
	orch     *agent.Orchestrator
	playback playback.Service
}

// NewCommandHandler creates a command handler.
func NewCommandHandler(orch *agent.Orchestrator, pb playback.Service) *CommandHandler {
	return &CommandHandler{orch: orch, playback: pb}
}

// RegisterRoutes registers command routes on the given mux. Both routes
// sit behind the credential gate.
func (h *CommandHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/command", requireCredential(http.HandlerFunc(h.handleCommand)))
	mux.Handle("POST /api/command/stream", requireCredential(http.HandlerFunc(h.handleStream)))
}

// CommandRequest is the body of both command endpoints.
type CommandRequest struct {
	Command   string `json:"command"`
	SessionID string `json:"sessionId,omitempty"`

	// Optional per-command overrides. They affect this command only.
	Model           string   `json:"model,omitempty"`
	Instructions    string   `json:"instructions,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxTokens       *int64   `json:"maxTokens,omitempty"`
	ReasoningEffort string   `json:"reasoningEffort,omitempty"`
	UseTools        *bool    `json:"useTools,omitempty"`
}

// CommandResponse is the synchronous endpoint's reply.
type CommandResponse struct {
	Success         bool            `json:"success"`
	Response        string          `json:"response"`
	Model           string          `json:"model,omitempty"`
	Usage           *llm.TokenUsage `json:"usage,omitempty"`
	SessionID       string          `json:"sessionId"`
	HadFunctionCall bool            `json:"hadFunctionCall"`
}

// env builds the per-request tool execution context from the credentials
// the middleware put on the context.
func (h *CommandHandler) env(r *http.Request, sessionID string) *tools.ExecutionContext {
	return &tools.ExecutionContext{
		SessionKey:   sessionID,
		SpotifyToken: spotifyToken(r.Context()),
		Playback:     h.playback,
	}
}

func (h *CommandHandler) parseRequest(r *http.Request) (CommandRequest, error) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Command == "" {
		return req, errors.New("command is required")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	return req, nil
}

func commandOptions(req CommandRequest) *agent.Options {
	if req.Model == "" && req.Instructions == "" && req.Temperature == nil &&
		req.MaxTokens == nil && req.ReasoningEffort == "" && req.UseTools == nil {
		return nil
	}
	return &agent.Options{
		Model:           req.Model,
		Instructions:    req.Instructions,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
		ReasoningEffort: req.ReasoningEffort,
		UseTools:        req.UseTools,
	}
}

// handleCommand runs one command to completion and replies with JSON.
func (h *CommandHandler) handleCommand(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.orch.Execute(r.Context(), req.SessionID, req.Command, h.env(r, req.SessionID), commandOptions(req))
	if err != nil {
		status, code := upstreamStatus(err)
		log.Error().Err(err).Str("session", req.SessionID).Msg("command failed")
		writeError(w, status, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CommandResponse{
		Success:         true,
		Response:        result.Text,
		Model:           result.Model,
		Usage:           result.Usage,
		SessionID:       req.SessionID,
		HadFunctionCall: result.HadFunctionCall,
	})
}

// upstreamStatus maps a command failure to an HTTP status and error code.
func upstreamStatus(err error) (int, string) {
	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError, "INTERNAL"
	}
	switch apiErr.Category {
	case llm.CategoryRateLimit:
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case llm.CategoryAuth:
		return http.StatusBadGateway, "UPSTREAM_AUTH"
	default:
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	}
}

// SSEChunkData is the data for "chunk" events.
type SSEChunkData struct {
	Text string `json:"text"`
}

// SSEDoneData is the data for "done" events. It carries the full
// reconstructed response so clients need not reassemble chunks.
type SSEDoneData struct {
	Response        string          `json:"response"`
	Model           string          `json:"model,omitempty"`
	Usage           *llm.TokenUsage `json:"usage,omitempty"`
	SessionID       string          `json:"sessionId"`
	HadFunctionCall bool            `json:"hadFunctionCall"`
}

// SSEErrorData is the data for "error" events.
type SSEErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleStream runs one command with SSE output.
//
// Event types:
//   - chunk: partial text {"text": "..."}
//   - done:  final response {"response": "...", "sessionId": "..."}
//   - error: command failed {"code": "...", "message": "..."}
func (h *CommandHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	req, err := h.parseRequest(r)
	if err != nil {
		writeSSEError(w, flusher, "INVALID_REQUEST", err.Error())
		return
	}

	ctx := r.Context()
	log.Info().Str("session", req.SessionID).Msg("SSE stream started")

	chunks := make(chan string, 16)
	type streamResult struct {
		result agent.Result
		err    error
	}
	resultCh := make(chan streamResult, 1)
	go func() {
		result, err := h.orch.ExecuteStream(ctx, req.SessionID, req.Command, h.env(r, req.SessionID), commandOptions(req), chunks)
		close(chunks)
		resultCh <- streamResult{result: result, err: err}
	}()

	for chunk := range chunks {
		select {
		case <-ctx.Done():
			log.Info().Str("session", req.SessionID).Msg("client disconnected")
			// Drain so the orchestrator goroutine can finish.
			for range chunks {
			}
			<-resultCh
			return
		default:
		}
		writeSSEChunk(w, flusher, chunk)
	}

	res := <-resultCh
	if res.err != nil {
		_, code := upstreamStatus(res.err)
		log.Error().Err(res.err).Str("session", req.SessionID).Msg("stream failed")
		writeSSEError(w, flusher, code, res.err.Error())
		return
	}

	writeSSEDone(w, flusher, SSEDoneData{
		Response:        res.result.Text,
		Model:           res.result.Model,
		Usage:           res.result.Usage,
		SessionID:       req.SessionID,
		HadFunctionCall: res.result.HadFunctionCall,
	})
	log.Info().Str("session", req.SessionID).Int("responseLen", len(res.result.Text)).Msg("SSE stream completed")
}

// writeSSEChunk writes a chunk event to the SSE stream.
func writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(SSEChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

// writeSSEDone writes a done event to the SSE stream.
func writeSSEDone(w http.ResponseWriter, flusher http.Flusher, done SSEDoneData) {
	data, _ := json.Marshal(done)
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

// writeSSEError writes an error event to the SSE stream.
func writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(SSEErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
