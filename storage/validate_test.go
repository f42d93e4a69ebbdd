package storage

import (
	"encoding/json"
	"testing"
	"time"
)

func TestValidateSessionRoundTrip(t *testing.T) {
	original := NewSession()
	original.AppendTurn(Turn{
		ResponseID: "resp_123",
		Input:      "play something",
		Output:     "Playing something.",
		Timestamp:  time.Now().UTC().Truncate(time.Second),
		Model:      "gpt-4o",
	})
	original.Metadata = map[string]any{"source": "cli"}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	session, violations := ValidateSession(data)
	if len(violations) > 0 {
		t.Fatalf("unexpected violations: %+v", violations)
	}
	if session.LastResponseID != "resp_123" {
		t.Errorf("lastResponseId = %q, want resp_123", session.LastResponseID)
	}
	if len(session.ConversationHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(session.ConversationHistory))
	}
	if session.ConversationHistory[0].Output != "Playing something." {
		t.Errorf("turn output = %q", session.ConversationHistory[0].Output)
	}
}

func TestValidateSessionWrongTypes(t *testing.T) {
	tests := []struct {
		name string
		data string
		path string
	}{
		{
			name: "numeric lastResponseId",
			data: `{"lastResponseId": 42, "conversationHistory": []}`,
			path: "lastResponseId",
		},
		{
			name: "history not an array",
			data: `{"lastResponseId": "x", "conversationHistory": "oops"}`,
			path: "conversationHistory",
		},
		{
			name: "metadata not an object",
			data: `{"lastResponseId": "x", "conversationHistory": [], "metadata": [1]}`,
			path: "metadata",
		},
		{
			name: "turn responseId not a string",
			data: `{"conversationHistory": [{"responseId": 7, "input": "a", "output": "b"}]}`,
			path: "conversationHistory[0].responseId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, violations := ValidateSession([]byte(tt.data))
			if session != nil {
				t.Error("expected nil session for invalid record")
			}
			if len(violations) == 0 {
				t.Fatal("expected violations")
			}
			found := false
			for _, v := range violations {
				if v.Path == tt.path {
					found = true
				}
			}
			if !found {
				t.Errorf("no violation at %q, got %+v", tt.path, violations)
			}
		})
	}
}

func TestValidateSessionNotJSON(t *testing.T) {
	session, violations := ValidateSession([]byte("not json at all"))
	if session != nil {
		t.Error("expected nil session")
	}
	if len(violations) != 1 || violations[0].Path != "$" {
		t.Errorf("violations = %+v", violations)
	}
}

func TestValidateSessionNullPointer(t *testing.T) {
	// Continuity pointer may be null (no conversation started).
	session, violations := ValidateSession([]byte(`{"lastResponseId": null, "conversationHistory": []}`))
	if len(violations) > 0 {
		t.Fatalf("unexpected violations: %+v", violations)
	}
	if session.LastResponseID != "" {
		t.Errorf("lastResponseId = %q, want empty", session.LastResponseID)
	}
}
