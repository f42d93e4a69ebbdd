package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func altArgs(count int) json.RawMessage {
	alts := make([]map[string]string, 0, count)
	for i := 0; i < count; i++ {
		alts = append(alts, map[string]string{
			"name": fmt.Sprintf("Song %d", i+1),
			"type": "song",
		})
	}
	payload := map[string]any{
		"rejected":     map[string]string{"name": "Rejected Song", "type": "song"},
		"alternatives": alts,
	}
	data, _ := json.Marshal(payload)
	return data
}

func TestAlternativesCardinality(t *testing.T) {
	tool := NewAlternativesTool(5)
	ctx := context.Background()

	tests := []struct {
		name      string
		offered   int
		wantOK    bool
		wantCount int
	}{
		{name: "empty list rejected", offered: 0, wantOK: false},
		{name: "single alternative", offered: 1, wantOK: true, wantCount: 1},
		{name: "full list", offered: 5, wantOK: true, wantCount: 5},
		{name: "oversized list truncated", offered: 7, wantOK: true, wantCount: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tool.Execute(ctx, altArgs(tt.offered), nil)
			if result.Success() != tt.wantOK {
				t.Fatalf("success = %v, want %v (err: %v)", result.Success(), tt.wantOK, result.Error)
			}
			if !tt.wantOK {
				return
			}
			got := strings.Count(result.Output, "Song ")
			// Output names the rejected song once, plus one line per kept
			// alternative.
			if got != tt.wantCount+1 {
				t.Errorf("output mentions %d songs, want %d:\n%s", got, tt.wantCount+1, result.Output)
			}
			if tt.offered > tt.wantCount && strings.Contains(result.Output, fmt.Sprintf("Song %d", tt.wantCount+1)) {
				t.Errorf("truncated alternative leaked into output:\n%s", result.Output)
			}
		})
	}
}

func TestAlternativesSchemaRejectsEmptyList(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(NewAlternativesTool(5)); err != nil {
		t.Fatalf("register: %v", err)
	}

	violations, err := registry.Validate("provide_alternatives", altArgs(0))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(violations) == 0 {
		t.Fatal("expected schema violation for empty alternatives list")
	}
}

func TestAlternativesFailedResultSerializes(t *testing.T) {
	tool := NewAlternativesTool(5)
	result := tool.Execute(context.Background(), json.RawMessage(`{"rejected":{"name":"x","type":"song"},"alternatives":[]}`), nil)
	if result.Success() {
		t.Fatal("expected failure")
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Success {
		t.Error("serialized result claims success")
	}
	if decoded.Error == "" {
		t.Error("serialized result has no error message")
	}
}
