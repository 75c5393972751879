package web

import (
	"sync"
	"time"

	"github.com/Sternrassler/user-console/pkg/listing"
	"github.com/google/uuid"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "console_session"

type session struct {
	controller *listing.Controller
	lastSeen   time.Time
}

// Sessions holds one listing controller per browser session.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session
	factory  func(id string) *listing.Controller
	now      func() time.Time
}

// NewSessions creates an empty registry. factory builds the controller for
// a new session id.
func NewSessions(factory func(id string) *listing.Controller) *Sessions {
	return &Sessions{
		sessions: make(map[string]*session),
		factory:  factory,
		now:      time.Now,
	}
}

// Get returns the controller for id, or false when the session is unknown.
func (s *Sessions) Get(id string) (*listing.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess.controller, true
}

// Create starts a session with a fresh controller.
func (s *Sessions) Create() (string, *listing.Controller) {
	id := uuid.NewString()
	ctrl := s.factory(id)

	s.mu.Lock()
	s.sessions[id] = &session{controller: ctrl, lastSeen: s.now()}
	n := len(s.sessions)
	s.mu.Unlock()

	activeSessions.Set(float64(n))
	return id, ctrl
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Prune drops sessions idle for longer than maxIdle and returns how many
// were removed.
func (s *Sessions) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	activeSessions.Set(float64(n))
	return removed
}
