package auth

import (
	"context"
	"fmt"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/archive"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/link"
	"github.com/eternaltwin/etwin/token"
	"github.com/eternaltwin/etwin/twinoid"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ServiceConfig wires the collaborators of the auth service. Every field
// except Logger is required.
type ServiceConfig struct {
	Uuid     etwin.UuidGenerator
	Users    etwin.UserStore
	Links    *link.Service
	Sessions SessionStore
	Tokens   token.Service
	Password etwin.PasswordHasher
	Runner   *archive.Runner

	DinoparcClient   dinoparc.Client
	DinoparcStore    dinoparc.Store
	HammerfestClient hammerfest.Client
	HammerfestStore  hammerfest.Store
	TwinoidClient    twinoid.Client
	TwinoidStore     twinoid.Store

	Logger etwin.Logger
}

// Service authenticates canonical users, either through their own
// credentials or through a remote-service credential with
// auto-registration on first contact.
type Service struct {
	cfg    ServiceConfig
	logger etwin.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Uuid == nil:
		return nil, errors.New("auth service requires a uuid generator", errors.CategoryBadInput)
	case cfg.Users == nil:
		return nil, errors.New("auth service requires a user store", errors.CategoryBadInput)
	case cfg.Links == nil:
		return nil, errors.New("auth service requires the link service", errors.CategoryBadInput)
	case cfg.Sessions == nil:
		return nil, errors.New("auth service requires a session store", errors.CategoryBadInput)
	case cfg.Tokens == nil:
		return nil, errors.New("auth service requires the token service", errors.CategoryBadInput)
	case cfg.Password == nil:
		return nil, errors.New("auth service requires a password hasher", errors.CategoryBadInput)
	case cfg.Runner == nil:
		return nil, errors.New("auth service requires the archival runner", errors.CategoryBadInput)
	case cfg.DinoparcClient == nil || cfg.DinoparcStore == nil:
		return nil, errors.New("auth service requires the dinoparc client and store", errors.CategoryBadInput)
	case cfg.HammerfestClient == nil || cfg.HammerfestStore == nil:
		return nil, errors.New("auth service requires the hammerfest client and store", errors.CategoryBadInput)
	case cfg.TwinoidClient == nil || cfg.TwinoidStore == nil:
		return nil, errors.New("auth service requires the twinoid client and store", errors.CategoryBadInput)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = etwin.DefaultLogger()
	}
	return &Service{cfg: cfg, logger: logger}, nil
}

// RegisterOrLoginWithDinoparc authenticates against a Dinoparc server and
// resolves or auto-registers the canonical user behind the remote account.
func (s *Service) RegisterOrLoginWithDinoparc(ctx context.Context, creds dinoparc.Credentials) (*UserAndSession, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	// Remote credential failure is terminal and surfaced verbatim.
	remote, err := s.cfg.DinoparcClient.CreateSession(ctx, creds)
	if err != nil {
		return nil, err
	}

	if _, err := s.cfg.DinoparcStore.TouchShortUser(ctx, remote.User); err != nil {
		return nil, err
	}

	s.cfg.Runner.Go("dinoparc-archive", func(ctx context.Context) {
		archive.Dinoparc(ctx, s.cfg.DinoparcClient, s.cfg.DinoparcStore, remote, s.logger)
	})

	if _, err := s.cfg.Tokens.TouchDinoparc(ctx, remote.User.Server, remote.Key, remote.User.ID); err != nil {
		return nil, err
	}

	linked, err := s.cfg.Links.GetLinkFromDinoparc(ctx, remote.User.Server, remote.User.ID)
	if err != nil {
		return nil, err
	}

	if linked.Current != nil {
		return s.loginExisting(ctx, linked.Current.User.Ref())
	}

	user, err := s.registerUser(ctx, remote.User.Username)
	if err != nil {
		return nil, err
	}
	if _, err := s.cfg.Links.LinkToDinoparc(ctx, link.LinkToDinoparcOptions{
		UserID:         user.ID,
		Server:         remote.User.Server,
		DinoparcUserID: remote.User.ID,
		LinkedBy:       user.ID,
	}); err != nil {
		return nil, err
	}
	return s.issueSession(ctx, user, true)
}

// RegisterOrLoginWithHammerfest authenticates against a Hammerfest server
// and resolves or auto-registers the canonical user behind the account.
func (s *Service) RegisterOrLoginWithHammerfest(ctx context.Context, creds hammerfest.Credentials) (*UserAndSession, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	remote, err := s.cfg.HammerfestClient.CreateSession(ctx, creds)
	if err != nil {
		return nil, err
	}

	return s.loginWithHammerfestSession(ctx, remote)
}

// RegisterOrLoginWithHammerfestSessionKey validates an existing remote
// session key instead of credentials.
func (s *Service) RegisterOrLoginWithHammerfestSessionKey(ctx context.Context, server hammerfest.Server, key hammerfest.SessionKey) (*UserAndSession, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	remote, err := s.cfg.HammerfestClient.TestSession(ctx, server, key)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, etwin.ErrRemoteAuthFailed
	}
	return s.loginWithHammerfestSession(ctx, remote)
}

func (s *Service) loginWithHammerfestSession(ctx context.Context, remote *hammerfest.Session) (*UserAndSession, error) {
	if _, err := s.cfg.HammerfestStore.TouchShortUser(ctx, remote.User); err != nil {
		return nil, err
	}

	s.cfg.Runner.Go("hammerfest-archive", func(ctx context.Context) {
		archive.Hammerfest(ctx, s.cfg.HammerfestClient, s.cfg.HammerfestStore, remote, s.logger)
	})

	if _, err := s.cfg.Tokens.TouchHammerfest(ctx, remote.User.Server, remote.Key, remote.User.ID); err != nil {
		return nil, err
	}

	linked, err := s.cfg.Links.GetLinkFromHammerfest(ctx, remote.User.Server, remote.User.ID)
	if err != nil {
		return nil, err
	}

	if linked.Current != nil {
		return s.loginExisting(ctx, linked.Current.User.Ref())
	}

	user, err := s.registerUser(ctx, remote.User.Username)
	if err != nil {
		return nil, err
	}
	if _, err := s.cfg.Links.LinkToHammerfest(ctx, link.LinkToHammerfestOptions{
		UserID:           user.ID,
		Server:           remote.User.Server,
		HammerfestUserID: remote.User.ID,
		LinkedBy:         user.ID,
	}); err != nil {
		return nil, err
	}
	return s.issueSession(ctx, user, true)
}

// TwinoidOauthCredentials carries the OAuth token pair exchanged upstream.
type TwinoidOauthCredentials struct {
	AccessToken    twinoid.AccessToken
	RefreshToken   string
	ExpirationTime time.Time
}

// RegisterOrLoginWithTwinoidOauth resolves the owner of an OAuth access
// token and resolves or auto-registers the canonical user behind it.
func (s *Service) RegisterOrLoginWithTwinoidOauth(ctx context.Context, creds TwinoidOauthCredentials) (*UserAndSession, error) {
	me, err := s.cfg.TwinoidClient.GetMe(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.cfg.TwinoidStore.TouchShortUser(ctx, me.Short()); err != nil {
		return nil, err
	}

	if _, err := s.cfg.Tokens.TouchTwinoidOauth(ctx, token.TouchTwinoidOauthOptions{
		AccessToken:    creds.AccessToken,
		RefreshToken:   creds.RefreshToken,
		ExpirationTime: creds.ExpirationTime,
		TwinoidUserID:  me.ID,
	}); err != nil {
		return nil, err
	}

	linked, err := s.cfg.Links.GetLinkFromTwinoid(ctx, me.ID)
	if err != nil {
		return nil, err
	}

	if linked.Current != nil {
		return s.loginExisting(ctx, linked.Current.User.Ref())
	}

	user, err := s.registerUser(ctx, me.DisplayName)
	if err != nil {
		return nil, err
	}
	if _, err := s.cfg.Links.LinkToTwinoid(ctx, link.LinkToTwinoidOptions{
		UserID:        user.ID,
		TwinoidUserID: me.ID,
		LinkedBy:      user.ID,
	}); err != nil {
		return nil, err
	}
	return s.issueSession(ctx, user, true)
}

// Credentials authenticate a canonical user directly.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthenticateWithCredentials logs a canonical user in with its own
// username and password.
func (s *Service) AuthenticateWithCredentials(ctx context.Context, creds Credentials) (*UserAndSession, error) {
	user, err := s.cfg.Users.GetUserByUsername(ctx, creds.Username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, etwin.ErrMismatchedHashAndPassword
	}
	if err := s.cfg.Password.Verify(creds.Password, user.PasswordHash); err != nil {
		return nil, err
	}
	return s.issueSession(ctx, &user.User, false)
}

// AuthenticateSession resolves an existing session id, refreshing its
// access time. It returns (nil, nil) for unknown sessions.
func (s *Service) AuthenticateSession(ctx context.Context, sessionID uuid.UUID) (*UserAndSession, error) {
	session, err := s.cfg.Sessions.GetAndTouch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	user, err := s.cfg.Users.GetUser(ctx, session.User.Ref())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, etwin.StoreInvariant(fmt.Sprintf("expected session user %s to exist", session.User.ID))
	}
	return &UserAndSession{User: user, Session: session}, nil
}

// RevokeSession invalidates a session id.
func (s *Service) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	return s.cfg.Sessions.Revoke(ctx, sessionID)
}

func (s *Service) loginExisting(ctx context.Context, ref etwin.UserRef) (*UserAndSession, error) {
	user, err := s.cfg.Users.GetUser(ctx, ref)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, etwin.StoreInvariant(fmt.Sprintf("expected linked user %s to exist", ref.ID))
	}
	return s.issueSession(ctx, user, false)
}

// registerUser creates a fresh canonical user named after the remote
// account. No username or password is set: the account authenticates
// through its remote link until the user claims it.
func (s *Service) registerUser(ctx context.Context, displayName string) (*etwin.User, error) {
	if etwin.ValidateDisplayName(displayName) != nil {
		displayName = "etwin-player"
	}
	return s.cfg.Users.CreateUser(ctx, etwin.CreateUserOptions{
		ID:          s.cfg.Uuid.Next(),
		DisplayName: displayName,
	})
}

func (s *Service) issueSession(ctx context.Context, user *etwin.User, isNew bool) (*UserAndSession, error) {
	session, err := s.cfg.Sessions.Create(ctx, s.cfg.Uuid.Next(), user.Short())
	if err != nil {
		return nil, err
	}
	return &UserAndSession{User: user, Session: session, IsNewUser: isNew}, nil
}
