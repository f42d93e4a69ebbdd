package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type contextKey string

const spotifyTokenKey contextKey = "spotifyToken"

// requireCredential gates a route on the caller's Spotify token. Requests
// without one are rejected up front with 401; a present-but-expired token
// is not checked here — it surfaces later as a recoverable tool failure
// the model can relay in conversation.
func requireCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(spotifyTokenHeader)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "MISSING_CREDENTIAL",
				"Spotify access token required (X-Spotify-Token header)")
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), spotifyTokenKey, token))
		next.ServeHTTP(w, r)
	})
}

// spotifyToken returns the request's Spotify token, or empty.
func spotifyToken(ctx context.Context) string {
	token, _ := ctx.Value(spotifyTokenKey).(string)
	return token
}

// loggingMiddleware logs all HTTP requests with method, path, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// recoveryMiddleware recovers from panics and returns 500 Internal Server Error.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Any("error", err).Str("path", r.URL.Path).Msg("panic recovered")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// chain applies middleware in order: first middleware wraps outermost.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
