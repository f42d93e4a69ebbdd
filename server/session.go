package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/richinex/tempo/storage"
)

// SessionHandler handles session management and health endpoints.
type SessionHandler struct {
	store *storage.Store
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(store *storage.Store) *SessionHandler {
	return &SessionHandler{store: store}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions/{id}/history", h.handleHistory)
	mux.HandleFunc("POST /api/sessions/{id}/clear", h.handleClear)
	mux.HandleFunc("POST /api/sessions/{id}/reset-pointer", h.handleResetPointer)
	mux.HandleFunc("GET /health", h.handleHealth)
}

// HistoryResponse is the reply of the history endpoint.
type HistoryResponse struct {
	SessionID      string         `json:"sessionId"`
	LastResponseID string         `json:"lastResponseId,omitempty"`
	History        []storage.Turn `json:"history"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// handleHistory returns the stored conversation for a session, plus its
// continuity pointer and metadata. Unknown sessions come back as an empty
// history, not an error.
func (h *SessionHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session := h.store.Load(r.Context(), id)
	writeJSON(w, http.StatusOK, HistoryResponse{
		SessionID:      id,
		LastResponseID: session.LastResponseID,
		History:        session.ConversationHistory,
		Metadata:       session.Metadata,
	})
}

// handleClear wipes a session's history and continuity pointer.
func (h *SessionHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session := h.store.Load(r.Context(), id)
	session.Clear()
	h.store.Save(r.Context(), id, session)

	log.Info().Str("session", id).Msg("session cleared")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessionId": id})
}

// handleResetPointer drops only the continuity pointer. History stays;
// the next command starts a fresh provider-side conversation.
func (h *SessionHandler) handleResetPointer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session := h.store.Load(r.Context(), id)
	session.ResetContinuity()
	h.store.Save(r.Context(), id, session)

	log.Info().Str("session", id).Msg("continuity pointer reset")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessionId": id})
}

// HealthResponse reports liveness and primary store connectivity.
type HealthResponse struct {
	Status  string `json:"status"`
	Primary string `json:"primaryStore"`
}

// handleHealth is the liveness probe. A degraded primary store is still
// healthy: the fallback keeps the service usable.
func (h *SessionHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	primary := "ok"
	if err := h.store.Ping(r.Context()); err != nil {
		primary = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Primary: primary})
}
