package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/token"
	"github.com/eternaltwin/etwin/twinoid"
)

// TokenService is the in-memory remote-token store. Each remote user holds
// at most one live session or token pair; touching a new key for a user
// displaces the previous one.
type TokenService struct {
	mu sync.Mutex

	dinoparcByKey  map[dinoparcSessionKey]*token.DinoparcSession
	dinoparcByUser map[dinoparc.UserRef]dinoparcSessionKey

	hammerfestByKey  map[hammerfestSessionKey]*token.HammerfestSession
	hammerfestByUser map[hammerfest.UserRef]hammerfestSessionKey

	twinoidByToken map[twinoid.AccessToken]*token.TwinoidOauth
	twinoidByUser  map[twinoid.UserRef]twinoid.AccessToken

	now nowFn
}

type TokenServiceOption func(*TokenService)

func WithTokenServiceNow(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewTokenService(opts ...TokenServiceOption) *TokenService {
	s := &TokenService{
		dinoparcByKey:    map[dinoparcSessionKey]*token.DinoparcSession{},
		dinoparcByUser:   map[dinoparc.UserRef]dinoparcSessionKey{},
		hammerfestByKey:  map[hammerfestSessionKey]*token.HammerfestSession{},
		hammerfestByUser: map[hammerfest.UserRef]hammerfestSessionKey{},
		twinoidByToken:   map[twinoid.AccessToken]*token.TwinoidOauth{},
		twinoidByUser:    map[twinoid.UserRef]twinoid.AccessToken{},
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ token.Service = (*TokenService)(nil)

func (s *TokenService) TouchDinoparc(ctx context.Context, server dinoparc.Server, key dinoparc.SessionKey, userID dinoparc.UserId) (*token.DinoparcSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	user := dinoparc.UserRef{Server: server, ID: userID}
	mapKey := dinoparcSessionKey{server: server, key: key}

	if sess, ok := s.dinoparcByKey[mapKey]; ok && sess.User == user {
		sess.AccessedAt = now
		cp := *sess
		return &cp, nil
	}
	// A key can rebind to another account, and an account can move to a
	// fresh key. Either way the stale binding is dropped.
	if sess, ok := s.dinoparcByKey[mapKey]; ok {
		delete(s.dinoparcByUser, sess.User)
	}
	if prev, ok := s.dinoparcByUser[user]; ok {
		delete(s.dinoparcByKey, prev)
	}
	sess := &token.DinoparcSession{Key: key, User: user, CreatedAt: now, AccessedAt: now}
	s.dinoparcByKey[mapKey] = sess
	s.dinoparcByUser[user] = mapKey
	cp := *sess
	return &cp, nil
}

func (s *TokenService) RevokeDinoparc(ctx context.Context, server dinoparc.Server, key dinoparc.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mapKey := dinoparcSessionKey{server: server, key: key}
	if sess, ok := s.dinoparcByKey[mapKey]; ok {
		delete(s.dinoparcByUser, sess.User)
		delete(s.dinoparcByKey, mapKey)
	}
	return nil
}

func (s *TokenService) GetDinoparc(ctx context.Context, ref dinoparc.UserRef) (*token.DinoparcSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mapKey, ok := s.dinoparcByUser[ref]
	if !ok {
		return nil, nil
	}
	cp := *s.dinoparcByKey[mapKey]
	return &cp, nil
}

func (s *TokenService) TouchHammerfest(ctx context.Context, server hammerfest.Server, key hammerfest.SessionKey, userID hammerfest.UserId) (*token.HammerfestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	user := hammerfest.UserRef{Server: server, ID: userID}
	mapKey := hammerfestSessionKey{server: server, key: key}

	if sess, ok := s.hammerfestByKey[mapKey]; ok && sess.User == user {
		sess.AccessedAt = now
		cp := *sess
		return &cp, nil
	}
	if sess, ok := s.hammerfestByKey[mapKey]; ok {
		delete(s.hammerfestByUser, sess.User)
	}
	if prev, ok := s.hammerfestByUser[user]; ok {
		delete(s.hammerfestByKey, prev)
	}
	sess := &token.HammerfestSession{Key: key, User: user, CreatedAt: now, AccessedAt: now}
	s.hammerfestByKey[mapKey] = sess
	s.hammerfestByUser[user] = mapKey
	cp := *sess
	return &cp, nil
}

func (s *TokenService) RevokeHammerfest(ctx context.Context, server hammerfest.Server, key hammerfest.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mapKey := hammerfestSessionKey{server: server, key: key}
	if sess, ok := s.hammerfestByKey[mapKey]; ok {
		delete(s.hammerfestByUser, sess.User)
		delete(s.hammerfestByKey, mapKey)
	}
	return nil
}

func (s *TokenService) GetHammerfest(ctx context.Context, ref hammerfest.UserRef) (*token.HammerfestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mapKey, ok := s.hammerfestByUser[ref]
	if !ok {
		return nil, nil
	}
	cp := *s.hammerfestByKey[mapKey]
	return &cp, nil
}

func (s *TokenService) TouchTwinoidOauth(ctx context.Context, opts token.TouchTwinoidOauthOptions) (*token.TwinoidOauth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := twinoid.UserRef{ID: opts.TwinoidUserID}
	if oauth, ok := s.twinoidByToken[opts.AccessToken]; ok && oauth.User != user {
		delete(s.twinoidByUser, oauth.User)
	}
	if prev, ok := s.twinoidByUser[user]; ok && prev != opts.AccessToken {
		delete(s.twinoidByToken, prev)
	}
	oauth := &token.TwinoidOauth{
		AccessToken:    opts.AccessToken,
		RefreshToken:   opts.RefreshToken,
		ExpirationTime: opts.ExpirationTime,
		User:           user,
	}
	s.twinoidByToken[opts.AccessToken] = oauth
	s.twinoidByUser[user] = opts.AccessToken
	cp := *oauth
	return &cp, nil
}

func (s *TokenService) RevokeTwinoidAccessToken(ctx context.Context, accessToken twinoid.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if oauth, ok := s.twinoidByToken[accessToken]; ok {
		delete(s.twinoidByUser, oauth.User)
		delete(s.twinoidByToken, accessToken)
	}
	return nil
}

func (s *TokenService) GetTwinoidOauth(ctx context.Context, ref twinoid.UserRef) (*token.TwinoidOauth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accessToken, ok := s.twinoidByUser[ref]
	if !ok {
		return nil, nil
	}
	cp := *s.twinoidByToken[accessToken]
	return &cp, nil
}
