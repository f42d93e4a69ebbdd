// OpenAI Responses API implementation using the openai-go library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format conversion for the Responses API
// - Streaming event reconstruction
// - Retry/backoff for transient failures

package llm

import (
	"context"
	"errors"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIService implements the Service interface against the OpenAI
// Responses API.
type OpenAIService struct {
	client     openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
}

// NewOpenAIService creates a new OpenAI-backed service.
func NewOpenAIService(apiKey, model string, timeout time.Duration, maxRetries int) *OpenAIService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &OpenAIService{
		// SDK-level retries disabled; retry policy lives here so the
		// category rules (no retry on auth/bad-request) hold.
		client:     openai.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0)),
		model:      model,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

// Name returns the service name.
func (s *OpenAIService) Name() string {
	return "openai"
}

// Model returns the default model.
func (s *OpenAIService) Model() string {
	return s.model
}

// CreateResponse sends one response creation request.
// Transient failures (rate limit, network) are retried with backoff up to
// the configured count; auth and bad-request failures surface immediately.
func (s *OpenAIService) CreateResponse(ctx context.Context, req Request) (Response, error) {
	params := s.buildParams(req)

	var lastErr *APIError
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Response{}, Classify(ctx.Err())
			case <-time.After(backoffDelay(attempt)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		resp, err := s.client.Responses.New(callCtx, params)
		cancel()
		if err == nil {
			return convertResponse(resp), nil
		}

		lastErr = Classify(err)
		if !lastErr.Category.Retryable() {
			return Response{}, lastErr
		}
	}

	return Response{}, lastErr
}

// StreamResponse opens an incremental event feed. Text deltas are forwarded
// to chunks; the authoritative final response comes from the terminal
// completed event. A feed that closes without a terminal event is a
// transport failure - the caller must not treat partial output as final.
// Streams are not retried here: replaying after partial output would
// duplicate what the caller already forwarded.
func (s *OpenAIService) StreamResponse(ctx context.Context, req Request, chunks chan<- string) (Response, error) {
	params := s.buildParams(req)

	stream := s.client.Responses.NewStreaming(ctx, params)
	defer stream.Close()

	var final *responses.Response
	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case responses.ResponseTextDeltaEvent:
			if ev.Delta == "" {
				continue
			}
			select {
			case chunks <- ev.Delta:
			case <-ctx.Done():
				return Response{}, Classify(ctx.Err())
			}
		case responses.ResponseCompletedEvent:
			resp := ev.Response
			final = &resp
		}
	}

	if err := stream.Err(); err != nil {
		return Response{}, Classify(err)
	}
	if final == nil {
		return Response{}, &APIError{
			Category: CategoryTransport,
			Err:      errors.New("stream ended before completion event"),
		}
	}

	return convertResponse(final), nil
}

// buildParams converts a domain Request to SDK parameters.
func (s *OpenAIService) buildParams(req Request) responses.ResponseNewParams {
	model := req.Model
	if model == "" {
		model = s.model
	}

	params := responses.ResponseNewParams{
		Model:       shared.ResponsesModel(model),
		Input:       responses.ResponseNewParamsInputUnion{OfInputItemList: convertInputItems(req.Input)},
		Temperature: openai.Float(req.Temperature),
	}
	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	if req.PreviousResponseID != "" {
		params.PreviousResponseID = openai.String(req.PreviousResponseID)
	}
	if req.Store {
		params.Store = openai.Bool(true)
	}
	if req.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(req.MaxOutputTokens)
	}
	if req.ReasoningEffort != "" {
		params.Reasoning = shared.ReasoningParam{
			Effort: shared.ReasoningEffort(req.ReasoningEffort),
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	return params
}

// convertInputItems converts domain input items to SDK input items.
func convertInputItems(items []InputItem) responses.ResponseInputParam {
	result := make(responses.ResponseInputParam, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case InputMessage:
			result = append(result, responses.ResponseInputItemUnionParam{
				OfMessage: &responses.EasyInputMessageParam{
					Role: responses.EasyInputMessageRole(item.Role),
					Content: responses.EasyInputMessageContentUnionParam{
						OfString: openai.String(item.Text),
					},
				},
			})
		case InputFunctionCall:
			result = append(result, responses.ResponseInputItemParamOfFunctionCall(
				item.Arguments, item.CallID, item.Name))
		case InputFunctionCallOutput:
			result = append(result, responses.ResponseInputItemParamOfFunctionCallOutput(
				item.CallID, item.Output))
		}
	}
	return result
}

// convertTools converts tool definitions to SDK function tools.
func convertTools(defs []ToolDefinition) []responses.ToolUnionParam {
	result := make([]responses.ToolUnionParam, len(defs))
	for i, def := range defs {
		tool := responses.ToolParamOfFunction(def.Name, def.Parameters, false)
		if tool.OfFunction != nil && def.Description != "" {
			tool.OfFunction.Description = openai.String(def.Description)
		}
		result[i] = tool
	}
	return result
}

// convertResponse converts an SDK response to the domain Response.
func convertResponse(resp *responses.Response) Response {
	result := Response{
		ID:         resp.ID,
		Model:      string(resp.Model),
		OutputText: resp.OutputText(),
	}

	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			msg := item.AsMessage()
			result.Output = append(result.Output, OutputItem{
				Type: OutputMessage,
				Text: messageText(msg),
			})
		case "function_call":
			call := item.AsFunctionCall()
			result.Output = append(result.Output, OutputItem{
				Type: OutputFunctionCall,
				Call: &ToolCall{
					ID:        call.CallID,
					Name:      call.Name,
					Arguments: []byte(call.Arguments),
				},
			})
		default:
			// Reasoning traces and future item kinds carry no calls;
			// keep the slot so positions stay meaningful.
			result.Output = append(result.Output, OutputItem{Type: OutputOther})
		}
	}

	if resp.Usage.TotalTokens > 0 {
		result.Usage = &TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	return result
}

// messageText concatenates the text parts of an output message.
func messageText(msg responses.ResponseOutputMessage) string {
	text := ""
	for _, part := range msg.Content {
		if part.Type == "output_text" {
			text += part.Text
		}
	}
	return text
}

// backoffDelay returns the exponential backoff for the given attempt.
func backoffDelay(attempt int) time.Duration {
	const (
		baseDelay = 250 * time.Millisecond
		maxDelay  = 5 * time.Second
	)

	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// Verify OpenAIService implements Service
var _ Service = (*OpenAIService)(nil)
