// Package agent orchestrates conversations between the model, the tool
// registry, and the session store.
//
// Information Hiding:
// - Recursive tool-call loop hidden behind Execute/ExecuteStream
// - Continuation input construction hidden in the function executor
// - Session persistence timing hidden from callers
package agent

import (
	"github.com/richinex/tempo/llm"
)

// DefaultMaxToolDepth bounds how many model round trips one command may
// trigger through tool calls.
const DefaultMaxToolDepth = 10

// Config holds the orchestrator's model defaults. Zero values fall back
// to the documented defaults at construction time.
type Config struct {
	Model           string
	Instructions    string
	Temperature     float64
	MaxOutputTokens int64
	ReasoningEffort string
	MaxToolDepth    int
	UseTools        bool
}

// Options carries per-command overrides. A nil Options or a zero field
// means "use the orchestrator's configured default". Overrides apply to
// one command only; they never change the configured defaults.
type Options struct {
	Model           string
	Instructions    string
	Temperature     *float64
	MaxOutputTokens *int64
	ReasoningEffort string
	UseTools        *bool
}

// Result is the outcome of one completed command.
type Result struct {
	Text            string          `json:"response"`
	ResponseID      string          `json:"responseId"`
	Model           string          `json:"model"`
	Usage           *llm.TokenUsage `json:"usage,omitempty"`
	HadFunctionCall bool            `json:"hadFunctionCall"`
}
