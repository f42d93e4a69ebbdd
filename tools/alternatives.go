package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultMaxAlternatives caps how many suggestions a single call may carry.
const DefaultMaxAlternatives = 5

// rejectedItem names the item the user turned down.
type rejectedItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// alternativeItem is one suggested replacement.
type alternativeItem struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

type alternativesArgs struct {
	Rejected     rejectedItem      `json:"rejected"`
	Alternatives []alternativeItem `json:"alternatives"`
}

// AlternativesTool presents replacement suggestions when the user rejects
// a song, artist, album or playlist. It is a structuring tool: the model
// supplies the candidates, the tool enforces cardinality and echoes them
// back in a stable format.
type AlternativesTool struct {
	max int
}

// NewAlternativesTool creates the provide_alternatives tool. max bounds
// how many suggestions survive a single call; zero or negative falls back
// to DefaultMaxAlternatives.
func NewAlternativesTool(max int) *AlternativesTool {
	if max <= 0 {
		max = DefaultMaxAlternatives
	}
	return &AlternativesTool{max: max}
}

// Metadata returns the tool metadata.
func (t *AlternativesTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "provide_alternatives",
		Description: "Suggest alternative songs, artists, albums or playlists after the user rejects a recommendation. Supply between 1 and 5 alternatives.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"rejected": map[string]any{
					"type":        "object",
					"description": "The item the user turned down.",
					"properties": map[string]any{
						"name": map[string]any{"type": "string"},
						"type": map[string]any{
							"type": "string",
							"enum": []any{"song", "artist", "album", "playlist"},
						},
					},
					"required": []any{"name", "type"},
				},
				"alternatives": map[string]any{
					"type":        "array",
					"description": "Replacement suggestions, best first.",
					"minItems":    1,
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name": map[string]any{"type": "string"},
							"type": map[string]any{
								"type": "string",
								"enum": []any{"song", "artist", "album", "playlist"},
							},
							"reason": map[string]any{"type": "string"},
						},
						"required": []any{"name", "type"},
					},
				},
			},
			"required": []any{"rejected", "alternatives"},
		},
	}
}

// Execute enforces the suggestion cardinality and formats the accepted
// alternatives. Oversized lists are truncated to the first max entries.
func (t *AlternativesTool) Execute(ctx context.Context, args json.RawMessage, env *ExecutionContext) ToolResult {
	var parsed alternativesArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return FailureResultf("parse arguments: %v", err)
	}
	if len(parsed.Alternatives) == 0 {
		return FailureResultf("at least one alternative is required")
	}
	if len(parsed.Alternatives) > t.max {
		log.Warn().
			Str("tool", "provide_alternatives").
			Int("offered", len(parsed.Alternatives)).
			Int("kept", t.max).
			Msg("alternative list truncated")
		parsed.Alternatives = parsed.Alternatives[:t.max]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Alternatives to %s %q:\n", parsed.Rejected.Type, parsed.Rejected.Name)
	for i, alt := range parsed.Alternatives {
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, alt.Name, alt.Type)
		if alt.Reason != "" {
			fmt.Fprintf(&b, " - %s", alt.Reason)
		}
		b.WriteByte('\n')
	}
	return SuccessResult(b.String())
}

// Verify AlternativesTool implements Tool
var _ Tool = (*AlternativesTool)(nil)
