package memory

import (
	"context"
	"sync"

	"github.com/haleybot/haley/pkg/domain"
)

// SessionStore implements ports.SessionStore in memory. Sessions are copied
// on save and load so callers cannot mutate stored state through a shared
// pointer.
type SessionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Session
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{data: make(map[string]*domain.Session)}
}

func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	cp := copySession(sess)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sess.Key()] = cp
	return nil
}

func (s *SessionStore) Load(ctx context.Context, key string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.data[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySession(sess), nil
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *SessionStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func copySession(src *domain.Session) *domain.Session {
	cp := *src
	cp.Fields = make(map[string]any, len(src.Fields))
	for k, v := range src.Fields {
		cp.Fields[k] = v
	}
	return &cp
}
