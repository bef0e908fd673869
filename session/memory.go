package session

import (
	"context"
	"sync"
	"time"
)

// Store is what the auth middleware needs from a session backend.
type Store interface {
	Create(ctx context.Context, id, userID, role string) error
	Get(ctx context.Context, id string) (*AppSession, error)
	Delete(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

var (
	_ Store = (*AppSessionStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// MemoryStore keeps sessions in process. Used when no redis is configured
// and in tests.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]AppSession
}

func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{ttl: ttl, now: now, sessions: map[string]AppSession{}}
}

func (s *MemoryStore) Create(_ context.Context, id, userID, role string) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = AppSession{
		UserID:    userID,
		Role:      role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*AppSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	as, ok := s.sessions[id]
	if !ok {
		return nil, ErrNoSession
	}
	if s.now().Unix() >= as.ExpiresAt {
		delete(s.sessions, id)
		return nil, ErrNoSession
	}
	return &as, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, as := range s.sessions {
		if as.UserID == userID {
			delete(s.sessions, id)
		}
	}
	return nil
}
