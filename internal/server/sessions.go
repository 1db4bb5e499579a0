package server

import (
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/ginjaninja78/fbdi-workflow/internal/screens"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Session is one browser-like workflow session held by the console.
type Session struct {
	ID        string
	Dir       string
	CreatedAt time.Time
	*screens.Set
}

func (s *Session) close() {
	s.Set.Close()
	if s.Dir != "" {
		os.RemoveAll(s.Dir)
	}
}

// SessionRepository keeps sessions in memory. Sessions expire after ttl
// without access; expired sessions are closed and their uploads removed.
type SessionRepository struct {
	cache *cache.Cache
}

// NewSessionRepository creates a repository purging expired sessions every
// ttl/4.
func NewSessionRepository(ttl time.Duration) *SessionRepository {
	cleanup := ttl / 4
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(_ string, v any) {
		if s, ok := v.(*Session); ok {
			s.close()
		}
	})
	return &SessionRepository{cache: c}
}

// NewID returns a fresh session id.
func (r *SessionRepository) NewID() string {
	return uuid.NewString()
}

// Save stores the session and restarts its expiry.
func (r *SessionRepository) Save(s *Session) {
	r.cache.Set(s.ID, s, cache.DefaultExpiration)
}

// Get returns the session and refreshes its expiry.
func (r *SessionRepository) Get(id string) (*Session, error) {
	x, found := r.cache.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	s := x.(*Session)
	r.cache.Set(id, s, cache.DefaultExpiration)
	return s, nil
}

// Delete closes and removes the session.
func (r *SessionRepository) Delete(id string) error {
	if _, found := r.cache.Get(id); !found {
		return ErrSessionNotFound
	}
	r.cache.Delete(id)
	return nil
}

// Count returns the number of live sessions.
func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}

// Close closes every session.
func (r *SessionRepository) Close() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
