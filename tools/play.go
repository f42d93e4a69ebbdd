package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type playSongArgs struct {
	Artist string `json:"artist"`
	Track  string `json:"track"`
	Album  string `json:"album,omitempty"`
}

// PlaySongTool starts playback of a specific track through the playback
// collaborator on the execution context. It requires per-request Spotify
// credentials; without them the call fails recoverably so the model can
// ask the user to sign in.
type PlaySongTool struct{}

// NewPlaySongTool creates the play_song tool.
func NewPlaySongTool() *PlaySongTool {
	return &PlaySongTool{}
}

// Metadata returns the tool metadata.
func (t *PlaySongTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "play_song",
		Description: "Play a specific song on the user's Spotify device. Requires the user to be signed in to Spotify.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"artist": map[string]any{
					"type":        "string",
					"description": "Artist name as the user said it.",
				},
				"track": map[string]any{
					"type":        "string",
					"description": "Track title.",
				},
				"album": map[string]any{
					"type":        "string",
					"description": "Album title, when the user specified one.",
				},
			},
			"required": []any{"artist", "track"},
		},
	}
}

// Execute resolves the request to a track and starts playback. Missing
// credentials and playback failures both come back as failed results, not
// errors - the conversation continues either way.
func (t *PlaySongTool) Execute(ctx context.Context, args json.RawMessage, env *ExecutionContext) ToolResult {
	var parsed playSongArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return FailureResultf("parse arguments: %v", err)
	}

	if env == nil || env.SpotifyToken == "" {
		return FailureResultf("authentication required: connect a Spotify account to control playback")
	}
	if env.Playback == nil {
		return FailureResultf("playback service unavailable")
	}

	result, err := env.Playback.SearchAndPlay(ctx, env.SpotifyToken, parsed.Artist, parsed.Track, parsed.Album)
	if err != nil {
		return FailureResultf("playback failed: %v", err)
	}

	output, err := json.Marshal(result)
	if err != nil {
		return FailureResultf("serialize playback result: %v", err)
	}
	if !result.Played {
		// Not an error: the model should relay the near misses.
		return SuccessResult(string(output))
	}
	return SuccessResult(fmt.Sprintf("Now playing %q by %s. %s", result.Track.Name, result.Track.Artist, string(output)))
}

// Verify PlaySongTool implements Tool
var _ Tool = (*PlaySongTool)(nil)
