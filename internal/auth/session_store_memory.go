package auth

import (
	"context"
	"sync"
)

// NewInMemorySessionStore returns a SessionStore backed by an in-memory map.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]Session)}
}

// InMemorySessionStore implements SessionStore for tests and the memory video store profile.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.RefreshToken] = session
	return nil
}

func (s *InMemorySessionStore) Find(_ context.Context, refreshToken string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[refreshToken]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[refreshToken]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, refreshToken)
	return nil
}

func (s *InMemorySessionStore) DeleteForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

// Len reports how many sessions are held.
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
