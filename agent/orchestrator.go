package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/richinex/tempo/llm"
	"github.com/richinex/tempo/storage"
	"github.com/richinex/tempo/tools"
)

// Orchestrator drives one command through the model, resolving tool calls
// recursively and committing the finished turn to the session store.
type Orchestrator struct {
	service  llm.Service
	registry *tools.Registry
	store    *storage.Store
	config   Config
}

// dispatchFunc issues one model request. The streaming and non-streaming
// paths differ only in how they dispatch; the tool loop is shared.
type dispatchFunc func(ctx context.Context, req llm.Request) (llm.Response, error)

// NewOrchestrator creates an orchestrator. Zero config fields fall back
// to defaults.
func NewOrchestrator(service llm.Service, registry *tools.Registry, store *storage.Store, config Config) *Orchestrator {
	if config.MaxToolDepth <= 0 {
		config.MaxToolDepth = DefaultMaxToolDepth
	}
	if config.Model == "" {
		config.Model = service.Model()
	}
	return &Orchestrator{
		service:  service,
		registry: registry,
		store:    store,
		config:   config,
	}
}

// Execute runs one command to completion and returns the final response.
// The session is committed only after the whole tool loop succeeds; any
// model failure leaves the stored session untouched.
func (o *Orchestrator) Execute(ctx context.Context, sessionKey, input string, env *tools.ExecutionContext, opts *Options) (Result, error) {
	return o.run(ctx, sessionKey, input, env, opts, o.service.CreateResponse)
}

// ExecuteStream runs one command with streaming output. Text deltas are
// forwarded to chunks as they arrive; the returned Result is rebuilt from
// the stream's terminal event. A broken stream commits nothing. The
// channel is not closed; that is the caller's job.
func (o *Orchestrator) ExecuteStream(ctx context.Context, sessionKey, input string, env *tools.ExecutionContext, opts *Options, chunks chan<- string) (Result, error) {
	dispatch := func(ctx context.Context, req llm.Request) (llm.Response, error) {
		return o.service.StreamResponse(ctx, req, chunks)
	}
	return o.run(ctx, sessionKey, input, env, opts, dispatch)
}

// run is the shared command loop: load session, send the request, resolve
// tool calls up to the depth ceiling, then commit the turn.
func (o *Orchestrator) run(ctx context.Context, sessionKey, input string, env *tools.ExecutionContext, opts *Options, dispatch dispatchFunc) (Result, error) {
	session := o.store.Load(ctx, sessionKey)

	req := o.buildRequest(input, session.LastResponseID, opts)
	resp, err := dispatch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("model request: %w", err)
	}

	hadFunctionCall := false
	depth := 0
	for {
		if len(resp.ToolCalls()) == 0 {
			break
		}
		hadFunctionCall = true

		if depth >= o.config.MaxToolDepth {
			// The model keeps asking for tools past the ceiling. Take the
			// current response as final rather than looping forever; the
			// pending calls are never executed.
			log.Warn().
				Str("session", sessionKey).
				Int("depth", depth).
				Msg("tool depth ceiling reached, finalizing current response")
			break
		}
		depth++

		next := buildContinuation(ctx, o.registry, req, resp, env)
		resp, err = dispatch(ctx, *next)
		if err != nil {
			return Result{}, fmt.Errorf("model request after tool calls: %w", err)
		}
	}

	result := Result{
		Text:            resp.OutputText,
		ResponseID:      resp.ID,
		Model:           resp.Model,
		Usage:           resp.Usage,
		HadFunctionCall: hadFunctionCall,
	}
	o.commit(ctx, sessionKey, session, input, result)
	return result, nil
}

// buildRequest assembles the first request of a command, applying
// per-command overrides over the configured defaults.
func (o *Orchestrator) buildRequest(input, previousResponseID string, opts *Options) llm.Request {
	req := llm.Request{
		Model:              o.config.Model,
		Input:              []llm.InputItem{llm.UserMessage(input)},
		Instructions:       o.config.Instructions,
		PreviousResponseID: previousResponseID,
		Store:              true,
		Temperature:        o.config.Temperature,
		MaxOutputTokens:    o.config.MaxOutputTokens,
		ReasoningEffort:    o.config.ReasoningEffort,
	}
	useTools := o.config.UseTools
	if opts != nil {
		if opts.Model != "" {
			req.Model = opts.Model
		}
		if opts.Instructions != "" {
			req.Instructions = opts.Instructions
		}
		if opts.Temperature != nil {
			req.Temperature = *opts.Temperature
		}
		if opts.MaxOutputTokens != nil {
			req.MaxOutputTokens = *opts.MaxOutputTokens
		}
		if opts.ReasoningEffort != "" {
			req.ReasoningEffort = opts.ReasoningEffort
		}
		if opts.UseTools != nil {
			useTools = *opts.UseTools
		}
	}
	if useTools {
		req.Tools = o.registry.Definitions()
	}
	return req
}

// commit appends the finished turn and saves the session. Runs only after
// the command fully succeeded.
func (o *Orchestrator) commit(ctx context.Context, sessionKey string, session *storage.Session, input string, result Result) {
	session.AppendTurn(storage.Turn{
		ResponseID:      result.ResponseID,
		Input:           input,
		Output:          result.Text,
		Timestamp:       time.Now().UTC(),
		Model:           result.Model,
		Usage:           result.Usage,
		HadFunctionCall: result.HadFunctionCall,
	})
	o.store.Save(ctx, sessionKey, session)
}
