// Package tools provides the tool system for the music assistant.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameter schemas hidden in implementations
// - Registry implementation details hidden from consumers
// - Error handling internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/richinex/tempo/playback"
)

// ToolMetadata describes what a tool does and how to call it. Parameters
// is a JSON Schema object; the same document is handed to the model and
// used to validate arguments before execution.
type ToolMetadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// ExecutionContext carries per-request state into tool executions. Every
// tool receives the same context shape regardless of which fields it
// uses; fields a tool does not need are simply ignored.
type ExecutionContext struct {
	// SessionKey identifies the conversation the call belongs to.
	SessionKey string

	// SpotifyToken is the caller's Spotify access token. Empty when the
	// request carried no credentials.
	SpotifyToken string

	// Playback is the playback collaborator for tools that control Spotify.
	Playback playback.Service
}

// ToolResult represents the result of a tool execution.
// Success is determined by whether Error is nil.
type ToolResult struct {
	Output string `json:"output"`
	Error  error  `json:"-"` // Excluded from JSON, use MarshalJSON for custom serialization
}

// MarshalJSON implements custom JSON marshaling for ToolResult. A failed
// execution serializes to a structured error document so the model can
// read what went wrong and recover in conversation.
func (t ToolResult) MarshalJSON() ([]byte, error) {
	if t.Error != nil {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Output  string `json:"output,omitempty"`
			Error   string `json:"error"`
		}{
			Success: false,
			Output:  t.Output,
			Error:   t.Error.Error(),
		})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
	}{
		Success: true,
		Output:  t.Output,
	})
}

// Success returns true if the tool execution succeeded.
func (t ToolResult) Success() bool {
	return t.Error == nil
}

// SuccessResult creates a successful tool result.
func SuccessResult(output string) ToolResult {
	return ToolResult{Output: output}
}

// FailureResult creates a failed tool result.
func FailureResult(err error) ToolResult {
	return ToolResult{Error: err}
}

// FailureResultf creates a failed tool result with a formatted error message.
func FailureResultf(format string, args ...interface{}) ToolResult {
	return ToolResult{Error: fmt.Errorf(format, args...)}
}

// Tool is the interface that all tools must implement.
//
// Information Hiding: Tool implementations hide their internal execution
// logic, data structures, and error handling strategies behind this interface.
type Tool interface {
	// Metadata returns tool metadata (name, description, parameter schema).
	Metadata() ToolMetadata

	// Execute runs the tool with validated arguments. Execution failures
	// are reported through the ToolResult, never as a Go error - the
	// model sees them as serialized error results and keeps going.
	Execute(ctx context.Context, args json.RawMessage, env *ExecutionContext) ToolResult
}
