// Function call execution and continuation input construction.

package agent

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/richinex/tempo/llm"
	"github.com/richinex/tempo/tools"
)

// executeCalls runs every function call from a model response in the
// order the model emitted them and returns one output item per call,
// correlated by call id. A failed tool becomes a serialized error result,
// never an execution error: the model reads the failure and carries on.
func executeCalls(ctx context.Context, registry *tools.Registry, calls []llm.ToolCall, env *tools.ExecutionContext) []llm.InputItem {
	outputs := make([]llm.InputItem, 0, len(calls))
	for _, call := range calls {
		result := registry.Execute(ctx, call.Name, call.Arguments, env)

		payload, err := json.Marshal(result)
		if err != nil {
			// MarshalJSON on ToolResult cannot realistically fail; guard anyway.
			payload = []byte(`{"success":false,"error":"result serialization failed"}`)
		}

		if result.Success() {
			log.Debug().Str("tool", call.Name).Str("call", call.ID).Msg("tool call succeeded")
		} else {
			log.Warn().Str("tool", call.Name).Str("call", call.ID).Err(result.Error).Msg("tool call failed")
		}
		outputs = append(outputs, llm.FunctionCallOutput(call.ID, string(payload)))
	}
	return outputs
}

// buildContinuation turns a response's tool calls into the follow-up
// request. Returns nil when the response carries no calls, which ends the
// tool loop.
func buildContinuation(ctx context.Context, registry *tools.Registry, base llm.Request, resp llm.Response, env *tools.ExecutionContext) *llm.Request {
	calls := resp.ToolCalls()
	if len(calls) == 0 {
		return nil
	}

	next := base
	next.Input = executeCalls(ctx, registry, calls, env)
	next.PreviousResponseID = resp.ID
	next.Store = true
	return &next
}
