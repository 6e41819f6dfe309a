// Package memory provides an in-process session store for single-instance
// deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
)

var _ auth.SessionStore = (*SessionStore)(nil)

// SessionStore keeps sessions in a map. Expired sessions are hidden on read
// and evicted by a background sweep.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]auth.Session
	now      func() time.Time
}

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]auth.Session),
		now:      time.Now,
	}
}

// Save stores or replaces a session.
func (s *SessionStore) Save(_ context.Context, sess auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
	return nil
}

// Get returns the live session for token.
func (s *SessionStore) Get(_ context.Context, token string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok || sess.Expired(s.now()) {
		return nil, auth.ErrSessionNotFound
	}
	return &sess, nil
}

// Delete removes the session for token, if any.
func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// sweep removes expired sessions.
func (s *SessionStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
		}
	}
}

// StartCleanup launches a goroutine that sweeps expired sessions every
// interval. It stops when ctx is cancelled.
func (s *SessionStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}
