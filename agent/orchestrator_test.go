package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/richinex/tempo/llm"
	"github.com/richinex/tempo/storage"
	"github.com/richinex/tempo/tools"
)

// scriptedService replays a fixed sequence of responses and records every
// request it receives. When the script runs out, the last response
// repeats, which lets a test simulate a model that never stops calling
// tools.
type scriptedService struct {
	responses []llm.Response
	errs      []error
	chunks    [][]string

	requests []llm.Request
}

func (s *scriptedService) Name() string  { return "scripted" }
func (s *scriptedService) Model() string { return "test-model" }

func (s *scriptedService) CreateResponse(ctx context.Context, req llm.Request) (llm.Response, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return llm.Response{}, s.errs[i]
	}
	if i >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	return s.responses[i], nil
}

func (s *scriptedService) StreamResponse(ctx context.Context, req llm.Request, out chan<- string) (llm.Response, error) {
	i := len(s.requests)
	if i < len(s.chunks) {
		for _, c := range s.chunks[i] {
			out <- c
		}
	}
	return s.CreateResponse(ctx, req)
}

func textResponse(id, text string) llm.Response {
	return llm.Response{
		ID:         id,
		Model:      "test-model",
		OutputText: text,
		Output:     []llm.OutputItem{{Type: llm.OutputMessage, Text: text}},
		Usage:      &llm.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func callResponse(id string, calls ...llm.ToolCall) llm.Response {
	items := make([]llm.OutputItem, len(calls))
	for i := range calls {
		items[i] = llm.OutputItem{Type: llm.OutputFunctionCall, Call: &calls[i]}
	}
	return llm.Response{ID: id, Model: "test-model", Output: items}
}

func newTestOrchestrator(t *testing.T, service llm.Service) (*Orchestrator, *storage.Store) {
	t.Helper()
	registry, err := tools.WithDefaults(5)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	dir := t.TempDir()
	store := storage.NewStore(storage.NewFileBackend(dir), storage.NewFileBackend(dir+"/fallback"), time.Hour)
	orch := NewOrchestrator(service, registry, store, Config{
		Model:        "test-model",
		UseTools:     true,
		MaxToolDepth: 3,
	})
	return orch, store
}

func TestExecutePlainResponse(t *testing.T) {
	service := &scriptedService{responses: []llm.Response{textResponse("resp_1", "Hello!")}}
	orch, store := newTestOrchestrator(t, service)
	ctx := context.Background()

	result, err := orch.Execute(ctx, "user-1", "hi", nil, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Text != "Hello!" {
		t.Errorf("text = %q", result.Text)
	}
	if result.HadFunctionCall {
		t.Error("hadFunctionCall = true for a plain response")
	}
	if result.ResponseID != "resp_1" {
		t.Errorf("responseId = %q", result.ResponseID)
	}

	session := store.Load(ctx, "user-1")
	if session.LastResponseID != "resp_1" {
		t.Errorf("session lastResponseId = %q, want resp_1", session.LastResponseID)
	}
	if len(session.ConversationHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(session.ConversationHistory))
	}
	if session.ConversationHistory[0].HadFunctionCall {
		t.Error("stored turn claims a function call")
	}
}

func TestExecuteContinuityPointerThreaded(t *testing.T) {
	service := &scriptedService{responses: []llm.Response{
		textResponse("resp_1", "first"),
		textResponse("resp_2", "second"),
	}}
	orch, _ := newTestOrchestrator(t, service)
	ctx := context.Background()

	if _, err := orch.Execute(ctx, "user-1", "one", nil, nil); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if _, err := orch.Execute(ctx, "user-1", "two", nil, nil); err != nil {
		t.Fatalf("second execute: %v", err)
	}

	if got := service.requests[0].PreviousResponseID; got != "" {
		t.Errorf("first request previousResponseId = %q, want empty", got)
	}
	if got := service.requests[1].PreviousResponseID; got != "resp_1" {
		t.Errorf("second request previousResponseId = %q, want resp_1", got)
	}
	if !service.requests[0].Store {
		t.Error("requests must ask the provider to store responses")
	}
}

func TestExecuteToolLoopOrderAndCorrelation(t *testing.T) {
	call1 := llm.ToolCall{ID: "call_a", Name: "provide_alternatives", Arguments: json.RawMessage(
		`{"rejected":{"name":"X","type":"song"},"alternatives":[{"name":"Y","type":"song"}]}`)}
	call2 := llm.ToolCall{ID: "call_b", Name: "play_song", Arguments: json.RawMessage(
		`{"artist":"Kraftwerk","track":"The Model"}`)}

	service := &scriptedService{responses: []llm.Response{
		callResponse("resp_1", call1, call2),
		textResponse("resp_2", "done"),
	}}
	orch, _ := newTestOrchestrator(t, service)

	result, err := orch.Execute(context.Background(), "user-1", "suggest and play", nil, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.HadFunctionCall {
		t.Error("hadFunctionCall = false after a tool loop")
	}
	if result.Text != "done" {
		t.Errorf("text = %q, want done", result.Text)
	}

	if len(service.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(service.requests))
	}
	followup := service.requests[1]
	if followup.PreviousResponseID != "resp_1" {
		t.Errorf("continuation previousResponseId = %q, want resp_1", followup.PreviousResponseID)
	}
	if len(followup.Input) != 2 {
		t.Fatalf("continuation input items = %d, want 2", len(followup.Input))
	}
	for i, wantID := range []string{"call_a", "call_b"} {
		item := followup.Input[i]
		if item.Type != llm.InputFunctionCallOutput {
			t.Errorf("input[%d] type = %v", i, item.Type)
		}
		if item.CallID != wantID {
			t.Errorf("input[%d] callId = %q, want %q (order must follow the model)", i, item.CallID, wantID)
		}
	}
}

func TestExecuteFailedToolSerialized(t *testing.T) {
	// play_song without credentials must produce a failed-but-serialized
	// result the model can recover from.
	call := llm.ToolCall{ID: "call_a", Name: "play_song", Arguments: json.RawMessage(
		`{"artist":"Kraftwerk","track":"The Model"}`)}
	service := &scriptedService{responses: []llm.Response{
		callResponse("resp_1", call),
		textResponse("resp_2", "please sign in"),
	}}
	orch, _ := newTestOrchestrator(t, service)

	result, err := orch.Execute(context.Background(), "user-1", "play it", nil, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Text != "please sign in" {
		t.Errorf("text = %q", result.Text)
	}

	output := service.requests[1].Input[0].Output
	var decoded struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("tool output is not JSON: %v", err)
	}
	if decoded.Success {
		t.Error("failed tool serialized as success")
	}
	if !strings.Contains(decoded.Error, "authentication required") {
		t.Errorf("error = %q, want authentication required", decoded.Error)
	}
}

func TestExecuteDepthCeiling(t *testing.T) {
	call := llm.ToolCall{ID: "call_x", Name: "provide_alternatives", Arguments: json.RawMessage(
		`{"rejected":{"name":"X","type":"song"},"alternatives":[{"name":"Y","type":"song"}]}`)}
	// Script never produces a plain response; the last entry repeats.
	service := &scriptedService{responses: []llm.Response{callResponse("resp_loop", call)}}
	orch, store := newTestOrchestrator(t, service)
	ctx := context.Background()

	result, err := orch.Execute(ctx, "user-1", "loop forever", nil, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// Initial request plus MaxToolDepth continuations, then the loop stops.
	if len(service.requests) != 4 {
		t.Errorf("requests = %d, want 4 (1 + depth ceiling of 3)", len(service.requests))
	}
	if !result.HadFunctionCall {
		t.Error("hadFunctionCall = false")
	}
	// The turn still commits: ceiling is a finalization, not a failure.
	if store.Load(ctx, "user-1").LastResponseID != "resp_loop" {
		t.Error("turn not committed after depth ceiling")
	}
}

func TestExecuteModelErrorCommitsNothing(t *testing.T) {
	service := &scriptedService{errs: []error{errors.New("upstream down")}}
	orch, store := newTestOrchestrator(t, service)
	ctx := context.Background()

	if _, err := orch.Execute(ctx, "user-1", "hi", nil, nil); err == nil {
		t.Fatal("expected error")
	}

	session := store.Load(ctx, "user-1")
	if len(session.ConversationHistory) != 0 || session.LastResponseID != "" {
		t.Errorf("session mutated on failure: %+v", session)
	}
}

func TestExecuteMidLoopErrorCommitsNothing(t *testing.T) {
	call := llm.ToolCall{ID: "call_a", Name: "provide_alternatives", Arguments: json.RawMessage(
		`{"rejected":{"name":"X","type":"song"},"alternatives":[{"name":"Y","type":"song"}]}`)}
	service := &scriptedService{
		responses: []llm.Response{callResponse("resp_1", call)},
		errs:      []error{nil, errors.New("upstream down")},
	}
	orch, store := newTestOrchestrator(t, service)
	ctx := context.Background()

	if _, err := orch.Execute(ctx, "user-1", "hi", nil, nil); err == nil {
		t.Fatal("expected error")
	}
	if len(store.Load(ctx, "user-1").ConversationHistory) != 0 {
		t.Error("partial turn committed after mid-loop failure")
	}
}

func TestExecuteStreamParity(t *testing.T) {
	call := llm.ToolCall{ID: "call_a", Name: "provide_alternatives", Arguments: json.RawMessage(
		`{"rejected":{"name":"X","type":"song"},"alternatives":[{"name":"Y","type":"song"}]}`)}
	service := &scriptedService{
		responses: []llm.Response{
			callResponse("resp_1", call),
			textResponse("resp_2", "here you go"),
		},
		chunks: [][]string{nil, {"here ", "you ", "go"}},
	}
	orch, store := newTestOrchestrator(t, service)
	ctx := context.Background()

	chunks := make(chan string, 16)
	result, err := orch.ExecuteStream(ctx, "user-1", "stream it", nil, nil, chunks)
	if err != nil {
		t.Fatalf("execute stream: %v", err)
	}
	close(chunks)

	var streamed strings.Builder
	for c := range chunks {
		streamed.WriteString(c)
	}
	if streamed.String() != "here you go" {
		t.Errorf("streamed = %q", streamed.String())
	}
	if result.Text != "here you go" {
		t.Errorf("result text = %q, want reconstruction from terminal event", result.Text)
	}
	if !result.HadFunctionCall {
		t.Error("hadFunctionCall = false")
	}
	if store.Load(ctx, "user-1").LastResponseID != "resp_2" {
		t.Error("streamed turn not committed")
	}
}

func TestStreamedAndBufferedCommitEqualState(t *testing.T) {
	// Identical script through both paths must commit the same turn.
	script := []llm.Response{textResponse("resp_1", "same answer")}
	buffered := &scriptedService{responses: script}
	streamed := &scriptedService{responses: script, chunks: [][]string{{"same ", "answer"}}}

	orchB, storeB := newTestOrchestrator(t, buffered)
	orchS, storeS := newTestOrchestrator(t, streamed)
	ctx := context.Background()

	resB, err := orchB.Execute(ctx, "user-1", "hello", nil, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	chunks := make(chan string, 16)
	resS, err := orchS.ExecuteStream(ctx, "user-1", "hello", nil, nil, chunks)
	if err != nil {
		t.Fatalf("execute stream: %v", err)
	}

	if resB.Text != resS.Text || resB.ResponseID != resS.ResponseID {
		t.Errorf("results diverge: buffered %+v, streamed %+v", resB, resS)
	}

	sessB := storeB.Load(ctx, "user-1")
	sessS := storeS.Load(ctx, "user-1")
	if sessB.LastResponseID != sessS.LastResponseID {
		t.Errorf("lastResponseId: buffered %q, streamed %q", sessB.LastResponseID, sessS.LastResponseID)
	}
	if len(sessB.ConversationHistory) != 1 || len(sessS.ConversationHistory) != 1 {
		t.Fatalf("history lengths: buffered %d, streamed %d", len(sessB.ConversationHistory), len(sessS.ConversationHistory))
	}
	turnB, turnS := sessB.ConversationHistory[0], sessS.ConversationHistory[0]
	if turnB.Output != turnS.Output || turnB.ResponseID != turnS.ResponseID ||
		turnB.Input != turnS.Input || turnB.HadFunctionCall != turnS.HadFunctionCall {
		t.Errorf("turns diverge:\nbuffered %+v\nstreamed %+v", turnB, turnS)
	}
}

func TestExecuteStreamBreakCommitsNothing(t *testing.T) {
	service := &scriptedService{errs: []error{errors.New("stream ended before completion event")}}
	orch, store := newTestOrchestrator(t, service)
	ctx := context.Background()

	chunks := make(chan string, 16)
	if _, err := orch.ExecuteStream(ctx, "user-1", "hi", nil, nil, chunks); err == nil {
		t.Fatal("expected error")
	}
	if len(store.Load(ctx, "user-1").ConversationHistory) != 0 {
		t.Error("turn committed after stream breakage")
	}
}

func TestExecuteOptionsOverride(t *testing.T) {
	service := &scriptedService{responses: []llm.Response{textResponse("resp_1", "ok")}}
	orch, _ := newTestOrchestrator(t, service)

	temp := 0.2
	opts := &Options{Model: "other-model", Temperature: &temp}
	if _, err := orch.Execute(context.Background(), "user-1", "hi", nil, opts); err != nil {
		t.Fatalf("execute: %v", err)
	}

	req := service.requests[0]
	if req.Model != "other-model" {
		t.Errorf("model = %q, want override", req.Model)
	}
	if req.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", req.Temperature)
	}
}
