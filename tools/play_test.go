package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/richinex/tempo/playback"
)

// fakePlayback records the last call and returns a scripted result.
type fakePlayback struct {
	lastToken string
	lastTrack string
	result    playback.PlayResult
	err       error
}

func (f *fakePlayback) SearchAndPlay(ctx context.Context, accessToken, artist, track, album string) (playback.PlayResult, error) {
	f.lastToken = accessToken
	f.lastTrack = track
	return f.result, f.err
}

func TestPlaySongRequiresCredentials(t *testing.T) {
	tool := NewPlaySongTool()
	args := json.RawMessage(`{"artist":"Kraftwerk","track":"The Model"}`)

	tests := []struct {
		name string
		env  *ExecutionContext
	}{
		{name: "nil context", env: nil},
		{name: "empty token", env: &ExecutionContext{Playback: &fakePlayback{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tool.Execute(context.Background(), args, tt.env)
			if result.Success() {
				t.Fatal("expected failure without credentials")
			}
			if !strings.Contains(result.Error.Error(), "authentication required") {
				t.Errorf("error = %q, want authentication required", result.Error)
			}
		})
	}
}

func TestPlaySongPlays(t *testing.T) {
	fake := &fakePlayback{
		result: playback.PlayResult{
			Played: true,
			Track:  &playback.TrackInfo{Name: "The Model", Artist: "Kraftwerk"},
		},
	}
	tool := NewPlaySongTool()
	env := &ExecutionContext{SpotifyToken: "tok-1", Playback: fake}

	result := tool.Execute(context.Background(), json.RawMessage(`{"artist":"Kraftwerk","track":"The Model"}`), env)
	if !result.Success() {
		t.Fatalf("execute failed: %v", result.Error)
	}
	if fake.lastToken != "tok-1" {
		t.Errorf("token = %q, want tok-1", fake.lastToken)
	}
	if !strings.Contains(result.Output, "The Model") {
		t.Errorf("output = %q, want track name", result.Output)
	}
}

func TestPlaySongPlaybackErrorIsRecoverable(t *testing.T) {
	fake := &fakePlayback{err: errors.New("no active device")}
	tool := NewPlaySongTool()
	env := &ExecutionContext{SpotifyToken: "tok-1", Playback: fake}

	result := tool.Execute(context.Background(), json.RawMessage(`{"artist":"a","track":"t"}`), env)
	if result.Success() {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error.Error(), "no active device") {
		t.Errorf("error = %q, want cause preserved", result.Error)
	}
}
