// Package playback provides the Spotify playback collaborator consumed by
// the play_song tool.
//
// Information Hiding:
// - Spotify Web API client construction and authentication
// - Search/match heuristics for resolving a request to a playable track

package playback

import "context"

// TrackInfo describes one resolved track.
type TrackInfo struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	URI    string `json:"uri,omitempty"`
}

// PlayResult is the outcome of a search-and-play operation.
type PlayResult struct {
	Played bool `json:"played"`
	// Track is the track playback started on, when Played is true.
	Track *TrackInfo `json:"track,omitempty"`
	// Alternatives holds near matches when the exact request was not found.
	Alternatives []TrackInfo `json:"alternatives,omitempty"`
	Message      string      `json:"message,omitempty"`
}

// Service is the playback collaborator interface. The access token is the
// per-request user credential; implementations must not cache it across
// users.
type Service interface {
	// SearchAndPlay resolves artist/track/album to a playable track and
	// starts playback on the user's active device. Album may be empty.
	SearchAndPlay(ctx context.Context, accessToken, artist, track, album string) (PlayResult, error)
}
