package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memorySession struct {
	accountPhone string
	expiresAt    time.Time
}

type memoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]memorySession
}

// NewMemoryStore constructs an in-memory session store for tests.
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{ttl: ttl, sessions: make(map[string]memorySession)}
}

func (s *memoryStore) Create(_ context.Context, accountPhone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.sessions[token] = memorySession{accountPhone: accountPhone, expiresAt: time.Now().Add(s.ttl)}
	return token, nil
}

func (s *memoryStore) Lookup(_ context.Context, token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok || time.Now().After(sess.expiresAt) {
		return "", ErrSessionNotFound
	}
	return sess.accountPhone, nil
}

func (s *memoryStore) Invalidate(_ context.Context, accountPhone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if sess.accountPhone == accountPhone {
			delete(s.sessions, token)
		}
	}
	return nil
}
