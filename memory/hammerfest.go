package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/hammerfest"
)

// HammerfestStore is the in-memory Hammerfest archive.
type HammerfestStore struct {
	mu          sync.RWMutex
	users       map[hammerfest.UserRef]*hammerfest.ArchivedUser
	profiles    map[hammerfest.UserRef]*hammerfest.ProfileResponse
	inventories map[hammerfest.UserRef]*hammerfest.InventoryResponse
	shops       map[hammerfest.UserRef]*hammerfest.ShopResponse
	godchildren map[hammerfest.UserRef]*hammerfest.GodchildrenResponse
	now         nowFn
}

func NewHammerfestStore() *HammerfestStore {
	return &HammerfestStore{
		users:       map[hammerfest.UserRef]*hammerfest.ArchivedUser{},
		profiles:    map[hammerfest.UserRef]*hammerfest.ProfileResponse{},
		inventories: map[hammerfest.UserRef]*hammerfest.InventoryResponse{},
		shops:       map[hammerfest.UserRef]*hammerfest.ShopResponse{},
		godchildren: map[hammerfest.UserRef]*hammerfest.GodchildrenResponse{},
		now:         time.Now,
	}
}

var _ hammerfest.Store = (*HammerfestStore)(nil)

func (s *HammerfestStore) GetShortUser(ctx context.Context, ref hammerfest.UserRef) (*hammerfest.ShortUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[ref]
	if !ok {
		return nil, nil
	}
	short := u.ShortUser
	return &short, nil
}

func (s *HammerfestStore) TouchShortUser(ctx context.Context, short hammerfest.ShortUser) (*hammerfest.ArchivedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	archived := &hammerfest.ArchivedUser{ShortUser: short, ArchivedAt: s.now()}
	s.users[short.Ref()] = archived
	cp := *archived
	return &cp, nil
}

func (s *HammerfestStore) TouchProfile(ctx context.Context, resp *hammerfest.ProfileResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchShortLocked(resp.Profile.User)
	s.profiles[resp.Profile.User.Ref()] = resp
	return nil
}

func (s *HammerfestStore) TouchInventory(ctx context.Context, resp *hammerfest.InventoryResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchShortLocked(resp.Session.User)
	s.inventories[resp.Session.User.Ref()] = resp
	return nil
}

func (s *HammerfestStore) TouchShop(ctx context.Context, resp *hammerfest.ShopResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchShortLocked(resp.Session.User)
	s.shops[resp.Session.User.Ref()] = resp
	return nil
}

func (s *HammerfestStore) TouchGodchildren(ctx context.Context, resp *hammerfest.GodchildrenResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchShortLocked(resp.Session.User)
	for _, g := range resp.Godchildren {
		s.touchShortLocked(g.User)
	}
	s.godchildren[resp.Session.User.Ref()] = resp
	return nil
}

func (s *HammerfestStore) touchShortLocked(short hammerfest.ShortUser) {
	s.users[short.Ref()] = &hammerfest.ArchivedUser{ShortUser: short, ArchivedAt: s.now()}
}

// GetProfile exposes the last archived profile snapshot.
func (s *HammerfestStore) GetProfile(ref hammerfest.UserRef) *hammerfest.ProfileResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[ref]
}

// GetInventory exposes the last archived inventory snapshot.
func (s *HammerfestStore) GetInventory(ref hammerfest.UserRef) *hammerfest.InventoryResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inventories[ref]
}

// GetShop exposes the last archived shop snapshot.
func (s *HammerfestStore) GetShop(ref hammerfest.UserRef) *hammerfest.ShopResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shops[ref]
}

// GetGodchildren exposes the last archived godchildren snapshot.
func (s *HammerfestStore) GetGodchildren(ref hammerfest.UserRef) *hammerfest.GodchildrenResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.godchildren[ref]
}

type hammerfestAccount struct {
	short       hammerfest.ShortUser
	password    string
	bestScore   uint32
	bestLevel   uint32
	hasCarrot   bool
	ladder      uint8
	items       map[string]uint32
	shop        hammerfest.Shop
	godchildren []hammerfest.Godchild
}

type hammerfestSessionKey struct {
	server hammerfest.Server
	key    hammerfest.SessionKey
}

// HammerfestClient emulates the three Hammerfest servers for tests.
type HammerfestClient struct {
	mu       sync.Mutex
	accounts map[hammerfest.UserRef]*hammerfestAccount
	sessions map[hammerfestSessionKey]hammerfest.UserRef
	nextKey  int
}

func NewHammerfestClient() *HammerfestClient {
	return &HammerfestClient{
		accounts: map[hammerfest.UserRef]*hammerfestAccount{},
		sessions: map[hammerfestSessionKey]hammerfest.UserRef{},
	}
}

var _ hammerfest.Client = (*HammerfestClient)(nil)

// CreateUser registers an emulated Hammerfest account.
func (c *HammerfestClient) CreateUser(server hammerfest.Server, id hammerfest.UserId, username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	short := hammerfest.ShortUser{Server: server, ID: id, Username: username}
	c.accounts[short.Ref()] = &hammerfestAccount{
		short: short, password: password,
		items: map[string]uint32{},
	}
}

// SetBestScore records the score shown on the profile page.
func (c *HammerfestClient) SetBestScore(ref hammerfest.UserRef, score uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accounts[ref]; ok {
		acc.bestScore = score
	}
}

// SetItems replaces the item counts of an emulated account.
func (c *HammerfestClient) SetItems(ref hammerfest.UserRef, items map[string]uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accounts[ref]; ok {
		acc.items = items
	}
}

// SetShop replaces the token shop state of an emulated account.
func (c *HammerfestClient) SetShop(ref hammerfest.UserRef, shop hammerfest.Shop) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accounts[ref]; ok {
		acc.shop = shop
	}
}

// SetGodchildren replaces the godchildren listing of an emulated account.
func (c *HammerfestClient) SetGodchildren(ref hammerfest.UserRef, godchildren []hammerfest.Godchild) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accounts[ref]; ok {
		acc.godchildren = godchildren
	}
}

// RegisterSession installs a session key for an existing account so
// session-key authentication can be tested without credentials.
func (c *HammerfestClient) RegisterSession(ref hammerfest.UserRef, key hammerfest.SessionKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[hammerfestSessionKey{server: ref.Server, key: key}] = ref
}

func (c *HammerfestClient) CreateSession(ctx context.Context, creds hammerfest.Credentials) (*hammerfest.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, acc := range c.accounts {
		if acc.short.Server != creds.Server || acc.short.Username != creds.Username {
			continue
		}
		if acc.password != creds.Password {
			return nil, etwin.ErrRemoteAuthFailed
		}
		c.nextKey++
		key := hammerfest.SessionKey(fmt.Sprintf("%026d", c.nextKey))
		c.sessions[hammerfestSessionKey{server: creds.Server, key: key}] = acc.short.Ref()
		return &hammerfest.Session{Key: key, User: acc.short}, nil
	}
	return nil, etwin.ErrRemoteAuthFailed
}

func (c *HammerfestClient) TestSession(ctx context.Context, server hammerfest.Server, key hammerfest.SessionKey) (*hammerfest.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.sessions[hammerfestSessionKey{server: server, key: key}]
	if !ok {
		return nil, nil
	}
	acc, ok := c.accounts[ref]
	if !ok {
		return nil, nil
	}
	return &hammerfest.Session{Key: key, User: acc.short}, nil
}

func (c *HammerfestClient) GetProfileByID(ctx context.Context, session *hammerfest.Session, opts hammerfest.GetProfileByIdOptions) (*hammerfest.ProfileResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.accounts[hammerfest.UserRef{Server: opts.Server, ID: opts.UserID}]
	if !ok {
		return nil, nil
	}
	items := make([]string, 0, len(acc.items))
	for item := range acc.items {
		items = append(items, item)
	}
	return &hammerfest.ProfileResponse{
		Session: session,
		Profile: hammerfest.Profile{
			User:      acc.short,
			BestScore: acc.bestScore,
			BestLevel: acc.bestLevel,
			HasCarrot: acc.hasCarrot,
			Ladder:    acc.ladder,
			Items:     items,
		},
	}, nil
}

func (c *HammerfestClient) GetOwnItems(ctx context.Context, session *hammerfest.Session) (*hammerfest.InventoryResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, err := c.sessionAccountLocked(session)
	if err != nil {
		return nil, err
	}
	items := map[string]uint32{}
	for k, v := range acc.items {
		items[k] = v
	}
	return &hammerfest.InventoryResponse{Session: *session, Items: items}, nil
}

func (c *HammerfestClient) GetOwnShop(ctx context.Context, session *hammerfest.Session) (*hammerfest.ShopResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, err := c.sessionAccountLocked(session)
	if err != nil {
		return nil, err
	}
	return &hammerfest.ShopResponse{Session: *session, Shop: acc.shop}, nil
}

func (c *HammerfestClient) GetOwnGodchildren(ctx context.Context, session *hammerfest.Session) (*hammerfest.GodchildrenResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, err := c.sessionAccountLocked(session)
	if err != nil {
		return nil, err
	}
	godchildren := append([]hammerfest.Godchild(nil), acc.godchildren...)
	return &hammerfest.GodchildrenResponse{Session: *session, Godchildren: godchildren}, nil
}

func (c *HammerfestClient) sessionAccountLocked(session *hammerfest.Session) (*hammerfestAccount, error) {
	if session == nil {
		return nil, etwin.ErrRemoteAuthFailed
	}
	ref, ok := c.sessions[hammerfestSessionKey{server: session.User.Server, key: session.Key}]
	if !ok {
		return nil, etwin.ErrRemoteAuthFailed
	}
	acc, ok := c.accounts[ref]
	if !ok {
		return nil, etwin.ErrRemoteAuthFailed
	}
	return acc, nil
}
