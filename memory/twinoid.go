package memory

import (
	"context"
	"sync"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/twinoid"
)

// TwinoidStore is the in-memory Twinoid archive.
type TwinoidStore struct {
	mu    sync.RWMutex
	users map[twinoid.UserRef]*twinoid.ArchivedUser
	now   nowFn
}

func NewTwinoidStore() *TwinoidStore {
	return &TwinoidStore{
		users: map[twinoid.UserRef]*twinoid.ArchivedUser{},
		now:   time.Now,
	}
}

var _ twinoid.Store = (*TwinoidStore)(nil)

func (s *TwinoidStore) GetShortUser(ctx context.Context, ref twinoid.UserRef) (*twinoid.ShortUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[ref]
	if !ok {
		return nil, nil
	}
	short := u.ShortUser
	return &short, nil
}

func (s *TwinoidStore) TouchShortUser(ctx context.Context, short twinoid.ShortUser) (*twinoid.ArchivedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	archived := &twinoid.ArchivedUser{ShortUser: short, ArchivedAt: s.now()}
	s.users[short.Ref()] = archived
	cp := *archived
	return &cp, nil
}

// TwinoidClient emulates the Twinoid API for tests. Register token/user
// pairs with RegisterToken.
type TwinoidClient struct {
	mu     sync.Mutex
	tokens map[twinoid.AccessToken]twinoid.User
}

func NewTwinoidClient() *TwinoidClient {
	return &TwinoidClient{tokens: map[twinoid.AccessToken]twinoid.User{}}
}

var _ twinoid.Client = (*TwinoidClient)(nil)

// RegisterToken maps an access token to its owner.
func (c *TwinoidClient) RegisterToken(token twinoid.AccessToken, user twinoid.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[token] = user
}

// RevokeToken invalidates an access token.
func (c *TwinoidClient) RevokeToken(token twinoid.AccessToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, token)
}

func (c *TwinoidClient) GetMe(ctx context.Context, token twinoid.AccessToken) (*twinoid.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	user, ok := c.tokens[token]
	if !ok {
		return nil, etwin.ErrRemoteAuthFailed
	}
	cp := user
	return &cp, nil
}
