// Package storage provides durable session persistence.
//
// Information Hiding:
// - Backend selection and fallback hidden behind Store
// - Schema validation and corruption recovery encapsulated
// - Save serialization per session key hidden from callers

package storage

import (
	"time"

	"github.com/richinex/tempo/llm"
)

// Turn is one logged exchange within a session.
// Entries are never mutated after insertion, only appended.
type Turn struct {
	ResponseID string    `json:"responseId"`
	Input      string    `json:"input"`
	Output     string    `json:"output"`
	Timestamp  time.Time `json:"timestamp"`
	Model      string    `json:"model,omitempty"`
	// Usage is optional; it is unavailable for streamed turns when the
	// terminal event carries no accounting.
	Usage           *llm.TokenUsage `json:"usage,omitempty"`
	HadFunctionCall bool            `json:"hadFunctionCall,omitempty"`
}

// Session is the unit of conversational continuity for one user.
type Session struct {
	// LastResponseID is the opaque continuity token from the model
	// service; empty when no conversation has started or after a reset.
	LastResponseID      string         `json:"lastResponseId"`
	ConversationHistory []Turn         `json:"conversationHistory"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// NewSession creates an empty, schema-valid session.
func NewSession() *Session {
	return &Session{
		ConversationHistory: []Turn{},
	}
}

// AppendTurn records a completed exchange and advances the continuity
// pointer to the turn's response id.
func (s *Session) AppendTurn(turn Turn) {
	s.ConversationHistory = append(s.ConversationHistory, turn)
	s.LastResponseID = turn.ResponseID
}

// Clear resets the session to the empty state.
func (s *Session) Clear() {
	s.LastResponseID = ""
	s.ConversationHistory = []Turn{}
	s.Metadata = nil
}

// ResetContinuity clears the continuity pointer while keeping history.
// Useful for recovering from continuity errors without losing the log.
func (s *Session) ResetContinuity() {
	s.LastResponseID = ""
}
