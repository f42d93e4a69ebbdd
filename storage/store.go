// Session store with primary/fallback backends and coalesced saves.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store loads and saves sessions across a primary backend and a
// durability fallback. Loads validate the record schema and recover from
// corruption by returning a fresh session; saves are best-effort and
// serialized per session key.
type Store struct {
	primary  Backend
	fallback Backend
	ttl      time.Duration

	mu    sync.Mutex
	saves map[string]*saveState
}

// saveState serializes writes for one session key. While a save is in
// flight, later saves park their payload in pending; the in-flight
// goroutine drains it with exactly one follow-up write.
type saveState struct {
	inflight bool
	pending  []byte
}

// NewStore creates a session store. Primary writes carry ttl; fallback
// writes never expire.
func NewStore(primary, fallback Backend, ttl time.Duration) *Store {
	return &Store{
		primary:  primary,
		fallback: fallback,
		ttl:      ttl,
		saves:    make(map[string]*saveState),
	}
}

// Load fetches the session for a key, trying the primary backend first
// and the fallback on miss or failure. A record that fails schema
// validation is logged per field and replaced with a fresh empty session.
// Load never fails: corrupted or missing state must not crash the caller.
func (s *Store) Load(ctx context.Context, key string) *Session {
	data, err := s.primary.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("session", key).Msg("primary load failed, trying fallback")
		}
		data, err = s.fallback.Get(ctx, key)
	}
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("session", key).Msg("fallback load failed, starting fresh")
		}
		return NewSession()
	}

	session, violations := ValidateSession(data)
	if len(violations) > 0 {
		for _, v := range violations {
			log.Warn().
				Str("session", key).
				Str("field", v.Path).
				Str("reason", v.Message).
				Msg("stored session violates schema")
		}
		log.Warn().Str("session", key).Msg("discarding corrupted session")
		return NewSession()
	}
	return session
}

// Save persists a session to both backends. Failures are logged and
// swallowed: the user-visible response is already computed by the time a
// save runs, so persistence is best-effort. Saves for the same key are
// coalesced - if one is already in flight, the latest payload replaces
// any parked one and is written in a single follow-up.
func (s *Store) Save(ctx context.Context, key string, session *Session) {
	data, err := json.Marshal(session)
	if err != nil {
		log.Error().Err(err).Str("session", key).Msg("session serialization failed")
		return
	}

	s.mu.Lock()
	state, ok := s.saves[key]
	if !ok {
		state = &saveState{}
		s.saves[key] = state
	}
	if state.inflight {
		state.pending = data
		s.mu.Unlock()
		return
	}
	state.inflight = true
	s.mu.Unlock()

	// Writes outlive request cancellation; the response is already out.
	writeCtx := context.WithoutCancel(ctx)
	for {
		s.write(writeCtx, key, data)

		s.mu.Lock()
		if state.pending == nil {
			state.inflight = false
			delete(s.saves, key)
			s.mu.Unlock()
			return
		}
		data = state.pending
		state.pending = nil
		s.mu.Unlock()
	}
}

// write pushes one payload to both backends.
func (s *Store) write(ctx context.Context, key string, data []byte) {
	if err := s.primary.Set(ctx, key, data, s.ttl); err != nil {
		log.Warn().Err(err).Str("session", key).Msg("primary save failed")
	}
	if err := s.fallback.Set(ctx, key, data, 0); err != nil {
		log.Warn().Err(err).Str("session", key).Msg("fallback save failed")
	}
}

// Ping reports whether the primary backend is reachable, when it
// supports connectivity checks.
func (s *Store) Ping(ctx context.Context) error {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := s.primary.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
