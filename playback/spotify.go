package playback

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// maxAlternatives bounds the near-match list returned when the exact
// request cannot be resolved.
const maxAlternatives = 3

// SpotifyService implements Service against the Spotify Web API. It is
// stateless: every call builds a client from the caller's access token.
type SpotifyService struct{}

// NewSpotifyService creates the Spotify-backed playback service.
func NewSpotifyService() *SpotifyService {
	return &SpotifyService{}
}

// SearchAndPlay searches Spotify for the requested track and starts
// playback on the user's active device.
func (s *SpotifyService) SearchAndPlay(ctx context.Context, accessToken, artist, track, album string) (PlayResult, error) {
	client := s.clientFor(ctx, accessToken)

	query := buildQuery(artist, track, album)
	results, err := client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(10))
	if err != nil {
		return PlayResult{}, fmt.Errorf("spotify search: %w", err)
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return PlayResult{
			Played:  false,
			Message: fmt.Sprintf("no results for %q by %q", track, artist),
		}, nil
	}

	tracks := results.Tracks.Tracks
	best := pickBestMatch(tracks, artist, track)
	if best == nil {
		// Nothing matched closely; surface what we found instead.
		return PlayResult{
			Played:       false,
			Alternatives: trackInfos(tracks, maxAlternatives),
			Message:      fmt.Sprintf("no close match for %q by %q", track, artist),
		}, nil
	}

	err = client.PlayOpt(ctx, &spotify.PlayOptions{
		URIs: []spotify.URI{best.URI},
	})
	if err != nil {
		return PlayResult{}, fmt.Errorf("start playback: %w", err)
	}

	info := toTrackInfo(*best)
	log.Info().
		Str("track", info.Name).
		Str("artist", info.Artist).
		Msg("playback started")
	return PlayResult{Played: true, Track: &info}, nil
}

// clientFor wraps the user's bearer token in a Spotify client.
func (s *SpotifyService) clientFor(ctx context.Context, accessToken string) *spotify.Client {
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	httpClient := spotifyauth.New().Client(ctx, token)
	return spotify.New(httpClient)
}

func buildQuery(artist, track, album string) string {
	parts := []string{fmt.Sprintf("track:%s", track), fmt.Sprintf("artist:%s", artist)}
	if album != "" {
		parts = append(parts, fmt.Sprintf("album:%s", album))
	}
	return strings.Join(parts, " ")
}

// pickBestMatch prefers an exact name/artist match, falling back to the
// first result when names only partially agree.
func pickBestMatch(tracks []spotify.FullTrack, artist, track string) *spotify.FullTrack {
	wantTrack := strings.ToLower(track)
	wantArtist := strings.ToLower(artist)

	for i := range tracks {
		if strings.ToLower(tracks[i].Name) != wantTrack {
			continue
		}
		for _, a := range tracks[i].Artists {
			if strings.ToLower(a.Name) == wantArtist {
				return &tracks[i]
			}
		}
	}
	for i := range tracks {
		if strings.Contains(strings.ToLower(tracks[i].Name), wantTrack) {
			return &tracks[i]
		}
	}
	return nil
}

func toTrackInfo(t spotify.FullTrack) TrackInfo {
	info := TrackInfo{
		Name: t.Name,
		URI:  string(t.URI),
	}
	if len(t.Artists) > 0 {
		info.Artist = t.Artists[0].Name
	}
	info.Album = t.Album.Name
	return info
}

func trackInfos(tracks []spotify.FullTrack, limit int) []TrackInfo {
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	infos := make([]TrackInfo, 0, len(tracks))
	for _, t := range tracks {
		infos = append(infos, toTrackInfo(t))
	}
	return infos
}

// Verify SpotifyService implements Service
var _ Service = (*SpotifyService)(nil)
