package memory

import (
	"context"
	"sync"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/auth"
	"github.com/google/uuid"
)

// SessionStore is the in-memory canonical-session store.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*auth.Session
	now      nowFn
}

type SessionStoreOption func(*SessionStore)

func WithSessionStoreNow(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		sessions: map[uuid.UUID]*auth.Session{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ auth.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Create(ctx context.Context, id uuid.UUID, user etwin.ShortUser) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess := &auth.Session{ID: id, User: user, CreatedAt: now, AccessedAt: now}
	s.sessions[id] = sess
	cp := *sess
	return &cp, nil
}

func (s *SessionStore) GetAndTouch(ctx context.Context, id uuid.UUID) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	sess.AccessedAt = s.now()
	cp := *sess
	return &cp, nil
}

func (s *SessionStore) Revoke(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
