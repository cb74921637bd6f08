package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/goliatone/go-errors"
)

// sidebarDinozCap is the maximum number of dinoz the sidebar lists.
// Accounts beyond the cap need the exchange page for a full listing.
const sidebarDinozCap = 150

// DinoparcStore is the in-memory Dinoparc archive.
type DinoparcStore struct {
	mu          sync.RWMutex
	users       map[dinoparc.UserRef]*dinoparc.ArchivedUser
	inventories map[dinoparc.UserRef]*dinoparc.InventoryResponse
	collections map[dinoparc.UserRef]*dinoparc.CollectionResponse
	dinoz       map[dinoparc.Server]map[dinoparc.DinozId]*dinoparc.DinozResponse
	exchanges   []*dinoparc.ExchangeWithResponse
	now         nowFn
}

func NewDinoparcStore() *DinoparcStore {
	return &DinoparcStore{
		users:       map[dinoparc.UserRef]*dinoparc.ArchivedUser{},
		inventories: map[dinoparc.UserRef]*dinoparc.InventoryResponse{},
		collections: map[dinoparc.UserRef]*dinoparc.CollectionResponse{},
		dinoz:       map[dinoparc.Server]map[dinoparc.DinozId]*dinoparc.DinozResponse{},
		now:         time.Now,
	}
}

var _ dinoparc.Store = (*DinoparcStore)(nil)

func (s *DinoparcStore) GetShortUser(ctx context.Context, ref dinoparc.UserRef) (*dinoparc.ShortUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[ref]
	if !ok {
		return nil, nil
	}
	short := u.ShortUser
	return &short, nil
}

func (s *DinoparcStore) TouchShortUser(ctx context.Context, short dinoparc.ShortUser) (*dinoparc.ArchivedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	archived := &dinoparc.ArchivedUser{ShortUser: short, ArchivedAt: s.now()}
	s.users[short.Ref()] = archived
	cp := *archived
	return &cp, nil
}

func (s *DinoparcStore) TouchInventory(ctx context.Context, resp *dinoparc.InventoryResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchSessionUserLocked(resp.SessionUser)
	s.inventories[resp.SessionUser.User.Ref()] = resp
	return nil
}

func (s *DinoparcStore) TouchCollection(ctx context.Context, resp *dinoparc.CollectionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchSessionUserLocked(resp.SessionUser)
	s.collections[resp.SessionUser.User.Ref()] = resp
	return nil
}

func (s *DinoparcStore) TouchDinoz(ctx context.Context, resp *dinoparc.DinozResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchSessionUserLocked(resp.SessionUser)
	byID, ok := s.dinoz[resp.Dinoz.Server]
	if !ok {
		byID = map[dinoparc.DinozId]*dinoparc.DinozResponse{}
		s.dinoz[resp.Dinoz.Server] = byID
	}
	byID[resp.Dinoz.ID] = resp
	return nil
}

func (s *DinoparcStore) TouchExchangeWith(ctx context.Context, resp *dinoparc.ExchangeWithResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchSessionUserLocked(resp.SessionUser)
	s.exchanges = append(s.exchanges, resp)
	return nil
}

func (s *DinoparcStore) touchSessionUserLocked(su dinoparc.SessionUser) {
	s.users[su.User.Ref()] = &dinoparc.ArchivedUser{ShortUser: su.User, ArchivedAt: s.now()}
}

// GetInventory exposes the last archived inventory snapshot.
func (s *DinoparcStore) GetInventory(ref dinoparc.UserRef) *dinoparc.InventoryResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inventories[ref]
}

// GetCollection exposes the last archived collection snapshot.
func (s *DinoparcStore) GetCollection(ref dinoparc.UserRef) *dinoparc.CollectionResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collections[ref]
}

// GetDinoz exposes the last archived snapshot of one dinoz.
func (s *DinoparcStore) GetDinoz(server dinoparc.Server, id dinoparc.DinozId) *dinoparc.DinozResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID, ok := s.dinoz[server]
	if !ok {
		return nil
	}
	return byID[id]
}

// ExchangeCount reports how many exchange snapshots were archived.
func (s *DinoparcStore) ExchangeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.exchanges)
}

type dinoparcAccount struct {
	short      dinoparc.ShortUser
	password   string
	coins      uint32
	dinoz      []dinoparc.Dinoz
	inventory  map[string]uint32
	collection dinoparc.Collection
}

type dinoparcSessionKey struct {
	server dinoparc.Server
	key    dinoparc.SessionKey
}

// DinoparcClient emulates the three Dinoparc servers for tests. Register
// accounts with CreateUser, then authenticate through the Client contract.
type DinoparcClient struct {
	mu       sync.Mutex
	accounts map[dinoparc.UserRef]*dinoparcAccount
	sessions map[dinoparcSessionKey]dinoparc.UserRef
	nextKey  int
}

func NewDinoparcClient() *DinoparcClient {
	return &DinoparcClient{
		accounts: map[dinoparc.UserRef]*dinoparcAccount{},
		sessions: map[dinoparcSessionKey]dinoparc.UserRef{},
	}
}

var _ dinoparc.Client = (*DinoparcClient)(nil)

// CreateUser registers an emulated Dinoparc account.
func (c *DinoparcClient) CreateUser(server dinoparc.Server, id dinoparc.UserId, username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	short := dinoparc.ShortUser{Server: server, ID: id, Username: username}
	c.accounts[short.Ref()] = &dinoparcAccount{
		short:     short,
		password:  password,
		inventory: map[string]uint32{},
	}
}

// SetDinoz replaces the dinoz roster of an emulated account.
func (c *DinoparcClient) SetDinoz(ref dinoparc.UserRef, dinoz []dinoparc.Dinoz) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accounts[ref]; ok {
		acc.dinoz = dinoz
	}
}

// SetInventory replaces the item inventory of an emulated account.
func (c *DinoparcClient) SetInventory(ref dinoparc.UserRef, inventory map[string]uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accounts[ref]; ok {
		acc.inventory = inventory
	}
}

// SetCollection replaces the reward collection of an emulated account.
func (c *DinoparcClient) SetCollection(ref dinoparc.UserRef, collection dinoparc.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accounts[ref]; ok {
		acc.collection = collection
	}
}

func (c *DinoparcClient) CreateSession(ctx context.Context, creds dinoparc.Credentials) (*dinoparc.Session, error) {
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
		key := dinoparc.SessionKey(fmt.Sprintf("dparc-session-%d", c.nextKey))
		c.sessions[dinoparcSessionKey{server: creds.Server, key: key}] = acc.short.Ref()
		return &dinoparc.Session{Key: key, User: acc.short}, nil
	}
	return nil, etwin.ErrRemoteAuthFailed
}

func (c *DinoparcClient) TestSession(ctx context.Context, server dinoparc.Server, key dinoparc.SessionKey) (*dinoparc.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.sessions[dinoparcSessionKey{server: server, key: key}]
	if !ok {
		return nil, nil
	}
	acc, ok := c.accounts[ref]
	if !ok {
		return nil, nil
	}
	return &dinoparc.Session{Key: key, User: acc.short}, nil
}

func (c *DinoparcClient) GetDinoz(ctx context.Context, session *dinoparc.Session, id dinoparc.DinozId) (*dinoparc.DinozResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, err := c.sessionAccountLocked(session)
	if err != nil {
		return nil, err
	}
	for _, d := range acc.dinoz {
		if d.ID == id {
			dz := d
			return &dinoparc.DinozResponse{SessionUser: c.sessionUserLocked(acc), Dinoz: dz}, nil
		}
	}
	return nil, errors.New("dinoz not found", errors.CategoryNotFound).
		WithTextCode("dinoparc_dinoz_not_found").
		WithCode(errors.CodeNotFound)
}

func (c *DinoparcClient) GetInventory(ctx context.Context, session *dinoparc.Session) (*dinoparc.InventoryResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, err := c.sessionAccountLocked(session)
	if err != nil {
		return nil, err
	}
	inventory := map[string]uint32{}
	for k, v := range acc.inventory {
		inventory[k] = v
	}
	return &dinoparc.InventoryResponse{SessionUser: c.sessionUserLocked(acc), Inventory: inventory}, nil
}

func (c *DinoparcClient) GetCollection(ctx context.Context, session *dinoparc.Session) (*dinoparc.CollectionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, err := c.sessionAccountLocked(session)
	if err != nil {
		return nil, err
	}
	return &dinoparc.CollectionResponse{SessionUser: c.sessionUserLocked(acc), Collection: acc.collection}, nil
}

func (c *DinoparcClient) GetExchangeWith(ctx context.Context, session *dinoparc.Session, other dinoparc.UserId) (*dinoparc.ExchangeWithResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, err := c.sessionAccountLocked(session)
	if err != nil {
		return nil, err
	}
	otherAcc, ok := c.accounts[dinoparc.UserRef{Server: acc.short.Server, ID: other}]
	if !ok {
		return nil, errors.New("exchange partner not found", errors.CategoryNotFound).
			WithTextCode("dinoparc_user_not_found").
			WithCode(errors.CodeNotFound)
	}
	return &dinoparc.ExchangeWithResponse{
		SessionUser: c.sessionUserLocked(acc),
		OwnDinoz:    shortDinozList(acc.dinoz, len(acc.dinoz)),
		OtherUser:   otherAcc.short,
		OtherDinoz:  shortDinozList(otherAcc.dinoz, len(otherAcc.dinoz)),
	}, nil
}

func (c *DinoparcClient) sessionAccountLocked(session *dinoparc.Session) (*dinoparcAccount, error) {
	if session == nil {
		return nil, etwin.ErrRemoteAuthFailed
	}
	ref, ok := c.sessions[dinoparcSessionKey{server: session.User.Server, key: session.Key}]
	if !ok {
		return nil, etwin.ErrRemoteAuthFailed
	}
	acc, ok := c.accounts[ref]
	if !ok {
		return nil, etwin.ErrRemoteAuthFailed
	}
	return acc, nil
}

// sessionUserLocked builds the sidebar state: the dinoz listing is capped
// the way the real sidebar is.
func (c *DinoparcClient) sessionUserLocked(acc *dinoparcAccount) dinoparc.SessionUser {
	n := len(acc.dinoz)
	if n > sidebarDinozCap {
		n = sidebarDinozCap
	}
	return dinoparc.SessionUser{
		User:  acc.short,
		Coins: acc.coins,
		Dinoz: shortDinozList(acc.dinoz, n),
	}
}

func shortDinozList(dinoz []dinoparc.Dinoz, n int) []dinoparc.ShortDinoz {
	out := make([]dinoparc.ShortDinoz, 0, n)
	for _, d := range dinoz[:n] {
		name := d.Name
		out = append(out, dinoparc.ShortDinoz{Server: d.Server, ID: d.ID, Name: name})
	}
	return out
}
