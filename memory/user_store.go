package memory

import (
	"context"
	"sync"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrUsernameTaken is returned when a new or updated username collides
// with an existing user.
var ErrUsernameTaken = errors.New("username already taken", errors.CategoryConflict).
	WithTextCode("username_taken").
	WithCode(errors.CodeConflict)

// UserStore is the in-memory canonical-user store. The first created user
// becomes an administrator.
type UserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*etwin.UserWithPassword
	order []uuid.UUID
	now   nowFn
}

type UserStoreOption func(*UserStore)

func WithUserStoreNow(now func() time.Time) UserStoreOption {
	return func(s *UserStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewUserStore(opts ...UserStoreOption) *UserStore {
	s := &UserStore{
		users: map[uuid.UUID]*etwin.UserWithPassword{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ etwin.UserStore = (*UserStore)(nil)

func (s *UserStore) GetShortUser(ctx context.Context, ref etwin.UserRef) (*etwin.ShortUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[ref.ID]
	if !ok {
		return nil, nil
	}
	short := u.Short()
	return &short, nil
}

func (s *UserStore) GetUser(ctx context.Context, ref etwin.UserRef) (*etwin.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[ref.ID]
	if !ok {
		return nil, nil
	}
	user := u.User
	return &user, nil
}

func (s *UserStore) GetUserWithPassword(ctx context.Context, ref etwin.UserRef) (*etwin.UserWithPassword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[ref.ID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*etwin.UserWithPassword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		u := s.users[id]
		if u.Username == username && u.Username != "" {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *UserStore) CreateUser(ctx context.Context, opts etwin.CreateUserOptions) (*etwin.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.Username != "" {
		for _, id := range s.order {
			if s.users[id].Username == opts.Username {
				return nil, ErrUsernameTaken
			}
		}
	}

	u := &etwin.UserWithPassword{
		User: etwin.User{
			ID:              opts.ID,
			DisplayName:     opts.DisplayName,
			Username:        opts.Username,
			IsAdministrator: len(s.order) == 0,
			CreatedAt:       s.now(),
		},
		PasswordHash: opts.PasswordHash,
	}
	s.users[opts.ID] = u
	s.order = append(s.order, opts.ID)
	user := u.User
	return &user, nil
}

func (s *UserStore) UpdateUser(ctx context.Context, opts etwin.UpdateStoreUserOptions) (*etwin.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[opts.Ref.ID]
	if !ok {
		return nil, nil
	}
	if opts.Username != nil && *opts.Username != u.Username {
		for _, id := range s.order {
			if id != u.ID && s.users[id].Username == *opts.Username {
				return nil, ErrUsernameTaken
			}
		}
		u.Username = *opts.Username
	}
	if opts.DisplayName != nil {
		u.DisplayName = *opts.DisplayName
	}
	if opts.PasswordHash != nil {
		u.PasswordHash = *opts.PasswordHash
	}
	now := s.now()
	u.UpdatedAt = &now

	user := u.User
	return &user, nil
}
