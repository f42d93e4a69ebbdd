// Package llm provides the remote model service abstraction.
//
// The service follows the Responses API shape: every request may reference
// the previous response by id for server-side conversation continuity, and
// every response exposes typed output items (messages, tool calls).
package llm

import "encoding/json"

// InputType discriminates items in a request's input sequence.
type InputType int

const (
	InputMessage InputType = iota
	InputFunctionCall
	InputFunctionCallOutput
)

// InputItem is one element of a request's ordered input.
// Exactly one group of fields is meaningful depending on Type.
type InputItem struct {
	Type InputType

	// Message fields
	Role string
	Text string

	// Function call / output fields
	CallID    string
	Name      string
	Arguments string
	Output    string
}

// UserMessage creates a user message input item.
func UserMessage(text string) InputItem {
	return InputItem{Type: InputMessage, Role: "user", Text: text}
}

// AssistantMessage creates an assistant message input item.
func AssistantMessage(text string) InputItem {
	return InputItem{Type: InputMessage, Role: "assistant", Text: text}
}

// FunctionCallItem re-expresses a model-issued tool call as input,
// so a continuation request carries the call the results answer.
func FunctionCallItem(call ToolCall) InputItem {
	return InputItem{
		Type:      InputFunctionCall,
		CallID:    call.ID,
		Name:      call.Name,
		Arguments: string(call.Arguments),
	}
}

// FunctionCallOutput creates a tool result input item keyed by the
// originating call's correlation id.
func FunctionCallOutput(callID, output string) InputItem {
	return InputItem{Type: InputFunctionCallOutput, CallID: callID, Output: output}
}

// ToolDefinition describes a callable function exposed to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request holds the parameters for one response creation call.
type Request struct {
	Model              string
	Input              []InputItem
	Instructions       string
	Tools              []ToolDefinition
	PreviousResponseID string
	// Store asks the service to retain the response server-side so a
	// later request can reference its id. Must be true on any call whose
	// id might anchor a continuation.
	Store           bool
	Temperature     float64
	MaxOutputTokens int64
	// ReasoningEffort is passed through for reasoning-capable models;
	// empty means the provider default.
	ReasoningEffort string
}

// ToolCall is a model-issued request to execute a named function.
// ID is the call correlation id, echoed back verbatim with the result;
// it is not in the same namespace as response ids.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// OutputType discriminates a response's output items.
type OutputType int

const (
	OutputMessage OutputType = iota
	OutputFunctionCall
	OutputOther
)

// OutputItem is one typed element of a response's output array.
type OutputItem struct {
	Type OutputType
	Text string    // for OutputMessage
	Call *ToolCall // for OutputFunctionCall
}

// TokenUsage holds token accounting for a response.
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
}

// Response is the structured result of one response creation call.
type Response struct {
	ID         string
	Model      string
	Output     []OutputItem
	OutputText string
	// Usage may be nil; streaming terminal events do not always carry it.
	Usage *TokenUsage
}

// ToolCalls returns the response's tool calls in discovery order.
func (r Response) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, item := range r.Output {
		if item.Type == OutputFunctionCall && item.Call != nil {
			calls = append(calls, *item.Call)
		}
	}
	return calls
}
