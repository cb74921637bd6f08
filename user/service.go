// Package user implements the authorization-checked federation surface:
// linking and unlinking remote accounts on behalf of a canonical user, and
// profile updates.
package user

import (
	"context"

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

const (
	TextCodeInvalidDinoparcRef   = "invalid_dinoparc_ref"
	TextCodeInvalidHammerfestRef = "invalid_hammerfest_ref"
	TextCodeInvalidTwinoidRef    = "invalid_twinoid_ref"
)

// ErrInvalidDinoparcRef is returned for reference linking against a
// Dinoparc account the platform has never archived.
var ErrInvalidDinoparcRef = errors.New("unknown dinoparc user", errors.CategoryNotFound).
	WithTextCode(TextCodeInvalidDinoparcRef).
	WithCode(errors.CodeNotFound)

// ErrInvalidHammerfestRef is returned for reference linking against a
// Hammerfest profile that does not exist.
var ErrInvalidHammerfestRef = errors.New("unknown hammerfest user", errors.CategoryNotFound).
	WithTextCode(TextCodeInvalidHammerfestRef).
	WithCode(errors.CodeNotFound)

// ErrInvalidTwinoidRef is returned for reference linking against a Twinoid
// account the platform has never archived.
var ErrInvalidTwinoidRef = errors.New("unknown twinoid user", errors.CategoryNotFound).
	WithTextCode(TextCodeInvalidTwinoidRef).
	WithCode(errors.CodeNotFound)

// ServiceConfig wires the collaborators of the federation service. Every
// field except Logger is required.
type ServiceConfig struct {
	Users    etwin.UserStore
	Links    *link.Service
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

// Service is the linking surface of the user service. Every method checks
// the caller's AuthContext before touching any state.
type Service struct {
	cfg    ServiceConfig
	logger etwin.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Users == nil:
		return nil, errors.New("user service requires a user store", errors.CategoryBadInput)
	case cfg.Links == nil:
		return nil, errors.New("user service requires the link service", errors.CategoryBadInput)
	case cfg.Tokens == nil:
		return nil, errors.New("user service requires the token service", errors.CategoryBadInput)
	case cfg.Password == nil:
		return nil, errors.New("user service requires a password hasher", errors.CategoryBadInput)
	case cfg.Runner == nil:
		return nil, errors.New("user service requires the archival runner", errors.CategoryBadInput)
	case cfg.DinoparcClient == nil || cfg.DinoparcStore == nil:
		return nil, errors.New("user service requires the dinoparc client and store", errors.CategoryBadInput)
	case cfg.HammerfestClient == nil || cfg.HammerfestStore == nil:
		return nil, errors.New("user service requires the hammerfest client and store", errors.CategoryBadInput)
	case cfg.TwinoidClient == nil || cfg.TwinoidStore == nil:
		return nil, errors.New("user service requires the twinoid client and store", errors.CategoryBadInput)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = etwin.DefaultLogger()
	}
	return &Service{cfg: cfg, logger: logger}, nil
}

// requireSelf authorizes self-service operations: the caller must be the
// target user. Administrators do not bypass this check; proving live
// credentials only makes sense for one's own account.
func requireSelf(acx etwin.AuthContext, userID uuid.UUID) error {
	if acx.IsGuest() {
		return etwin.ErrUnauthorized
	}
	if !acx.Is(userID) && acx.Kind != etwin.AuthKindSystem {
		return etwin.ErrForbidden
	}
	return nil
}

// requireSelfOrAdmin authorizes operations the target user or an
// administrator may perform.
func requireSelfOrAdmin(acx etwin.AuthContext, userID uuid.UUID) error {
	if acx.IsGuest() {
		return etwin.ErrUnauthorized
	}
	if !acx.CanActAs(userID) {
		return etwin.ErrForbidden
	}
	return nil
}

// requireAdmin authorizes administrator-only operations.
func requireAdmin(acx etwin.AuthContext) error {
	if acx.IsGuest() {
		return etwin.ErrUnauthorized
	}
	if !acx.IsAdmin() {
		return etwin.ErrForbidden
	}
	return nil
}

// LinkToDinoparcWithCredentialsOptions links a canonical user to the
// Dinoparc account behind live credentials.
type LinkToDinoparcWithCredentialsOptions struct {
	UserID      uuid.UUID
	Credentials dinoparc.Credentials
}

// LinkToDinoparcWithCredentials authenticates against Dinoparc right now
// and links the resulting account. Self-service only.
func (s *Service) LinkToDinoparcWithCredentials(ctx context.Context, acx etwin.AuthContext, opts LinkToDinoparcWithCredentialsOptions) (*link.VersionedDinoparcLink, error) {
	if err := requireSelf(acx, opts.UserID); err != nil {
		return nil, err
	}
	if err := opts.Credentials.Validate(); err != nil {
		return nil, err
	}

	remote, err := s.cfg.DinoparcClient.CreateSession(ctx, opts.Credentials)
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

	return s.cfg.Links.LinkToDinoparc(ctx, link.LinkToDinoparcOptions{
		UserID:         opts.UserID,
		Server:         remote.User.Server,
		DinoparcUserID: remote.User.ID,
		LinkedBy:       acx.Actor().ID,
	})
}

// LinkToDinoparcWithRefOptions links directly to a remote id, without
// proving live credentials.
type LinkToDinoparcWithRefOptions struct {
	UserID uuid.UUID
	Ref    dinoparc.UserRef
}

// LinkToDinoparcWithRef performs a manual reconciliation link. The remote
// account must already be archived. Administrator only.
func (s *Service) LinkToDinoparcWithRef(ctx context.Context, acx etwin.AuthContext, opts LinkToDinoparcWithRefOptions) (*link.VersionedDinoparcLink, error) {
	if err := requireAdmin(acx); err != nil {
		return nil, err
	}
	if err := opts.Ref.Validate(); err != nil {
		return nil, err
	}

	short, err := s.cfg.DinoparcStore.GetShortUser(ctx, opts.Ref)
	if err != nil {
		return nil, err
	}
	if short == nil {
		return nil, ErrInvalidDinoparcRef
	}

	return s.cfg.Links.LinkToDinoparc(ctx, link.LinkToDinoparcOptions{
		UserID:         opts.UserID,
		Server:         opts.Ref.Server,
		DinoparcUserID: opts.Ref.ID,
		LinkedBy:       acx.Actor().ID,
	})
}

// LinkToHammerfestWithCredentialsOptions links a canonical user to the
// Hammerfest account behind live credentials.
type LinkToHammerfestWithCredentialsOptions struct {
	UserID      uuid.UUID
	Credentials hammerfest.Credentials
}

// LinkToHammerfestWithCredentials authenticates against Hammerfest right
// now and links the resulting account. Self-service only.
func (s *Service) LinkToHammerfestWithCredentials(ctx context.Context, acx etwin.AuthContext, opts LinkToHammerfestWithCredentialsOptions) (*link.VersionedHammerfestLink, error) {
	if err := requireSelf(acx, opts.UserID); err != nil {
		return nil, err
	}
	if err := opts.Credentials.Validate(); err != nil {
		return nil, err
	}

	remote, err := s.cfg.HammerfestClient.CreateSession(ctx, opts.Credentials)
	if err != nil {
		return nil, err
	}
	return s.linkHammerfestSession(ctx, acx, opts.UserID, remote)
}

// LinkToHammerfestWithSessionKeyOptions links through an existing remote
// session token instead of credentials.
type LinkToHammerfestWithSessionKeyOptions struct {
	UserID     uuid.UUID
	Server     hammerfest.Server
	SessionKey hammerfest.SessionKey
}

// LinkToHammerfestWithSessionKey validates an existing remote session and
// links its owner. Self-service only.
func (s *Service) LinkToHammerfestWithSessionKey(ctx context.Context, acx etwin.AuthContext, opts LinkToHammerfestWithSessionKeyOptions) (*link.VersionedHammerfestLink, error) {
	if err := requireSelf(acx, opts.UserID); err != nil {
		return nil, err
	}
	if err := opts.SessionKey.Validate(); err != nil {
		return nil, err
	}

	remote, err := s.cfg.HammerfestClient.TestSession(ctx, opts.Server, opts.SessionKey)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, etwin.ErrRemoteAuthFailed
	}
	return s.linkHammerfestSession(ctx, acx, opts.UserID, remote)
}

func (s *Service) linkHammerfestSession(ctx context.Context, acx etwin.AuthContext, userID uuid.UUID, remote *hammerfest.Session) (*link.VersionedHammerfestLink, error) {
	if _, err := s.cfg.HammerfestStore.TouchShortUser(ctx, remote.User); err != nil {
		return nil, err
	}

	s.cfg.Runner.Go("hammerfest-archive", func(ctx context.Context) {
		archive.Hammerfest(ctx, s.cfg.HammerfestClient, s.cfg.HammerfestStore, remote, s.logger)
	})

	if _, err := s.cfg.Tokens.TouchHammerfest(ctx, remote.User.Server, remote.Key, remote.User.ID); err != nil {
		return nil, err
	}

	return s.cfg.Links.LinkToHammerfest(ctx, link.LinkToHammerfestOptions{
		UserID:           userID,
		Server:           remote.User.Server,
		HammerfestUserID: remote.User.ID,
		LinkedBy:         acx.Actor().ID,
	})
}

// LinkToHammerfestWithRefOptions links directly to a remote id.
type LinkToHammerfestWithRefOptions struct {
	UserID uuid.UUID
	Ref    hammerfest.UserRef
}

// LinkToHammerfestWithRef performs a manual reconciliation link after
// checking the public profile exists. Administrator only.
func (s *Service) LinkToHammerfestWithRef(ctx context.Context, acx etwin.AuthContext, opts LinkToHammerfestWithRefOptions) (*link.VersionedHammerfestLink, error) {
	if err := requireAdmin(acx); err != nil {
		return nil, err
	}
	if err := opts.Ref.Validate(); err != nil {
		return nil, err
	}

	// Anonymous public-profile lookup: no session required.
	profile, err := s.cfg.HammerfestClient.GetProfileByID(ctx, nil, hammerfest.GetProfileByIdOptions{
		Server: opts.Ref.Server,
		UserID: opts.Ref.ID,
	})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrInvalidHammerfestRef
	}
	if _, err := s.cfg.HammerfestStore.TouchShortUser(ctx, profile.Profile.User); err != nil {
		return nil, err
	}

	return s.cfg.Links.LinkToHammerfest(ctx, link.LinkToHammerfestOptions{
		UserID:           opts.UserID,
		Server:           opts.Ref.Server,
		HammerfestUserID: opts.Ref.ID,
		LinkedBy:         acx.Actor().ID,
	})
}

// LinkToTwinoidWithOauthOptions links through a Twinoid OAuth token pair.
type LinkToTwinoidWithOauthOptions struct {
	UserID uuid.UUID
	Oauth  token.TouchTwinoidOauthOptions
}

// LinkToTwinoidWithOauth resolves the owner of an OAuth access token and
// links it. Self-service only.
func (s *Service) LinkToTwinoidWithOauth(ctx context.Context, acx etwin.AuthContext, opts LinkToTwinoidWithOauthOptions) (*link.VersionedTwinoidLink, error) {
	if err := requireSelf(acx, opts.UserID); err != nil {
		return nil, err
	}

	me, err := s.cfg.TwinoidClient.GetMe(ctx, opts.Oauth.AccessToken)
	if err != nil {
		return nil, err
	}
	if _, err := s.cfg.TwinoidStore.TouchShortUser(ctx, me.Short()); err != nil {
		return nil, err
	}

	oauth := opts.Oauth
	oauth.TwinoidUserID = me.ID
	if _, err := s.cfg.Tokens.TouchTwinoidOauth(ctx, oauth); err != nil {
		return nil, err
	}

	return s.cfg.Links.LinkToTwinoid(ctx, link.LinkToTwinoidOptions{
		UserID:        opts.UserID,
		TwinoidUserID: me.ID,
		LinkedBy:      acx.Actor().ID,
	})
}

// LinkToTwinoidWithRefOptions links directly to a remote id.
type LinkToTwinoidWithRefOptions struct {
	UserID uuid.UUID
	Ref    twinoid.UserRef
}

// LinkToTwinoidWithRef performs a manual reconciliation link. The remote
// account must already be archived. Administrator only.
func (s *Service) LinkToTwinoidWithRef(ctx context.Context, acx etwin.AuthContext, opts LinkToTwinoidWithRefOptions) (*link.VersionedTwinoidLink, error) {
	if err := requireAdmin(acx); err != nil {
		return nil, err
	}
	if err := opts.Ref.Validate(); err != nil {
		return nil, err
	}

	short, err := s.cfg.TwinoidStore.GetShortUser(ctx, opts.Ref)
	if err != nil {
		return nil, err
	}
	if short == nil {
		return nil, ErrInvalidTwinoidRef
	}

	return s.cfg.Links.LinkToTwinoid(ctx, link.LinkToTwinoidOptions{
		UserID:        opts.UserID,
		TwinoidUserID: opts.Ref.ID,
		LinkedBy:      acx.Actor().ID,
	})
}

// UnlinkFromDinoparcOptions closes an active Dinoparc link.
type UnlinkFromDinoparcOptions struct {
	UserID uuid.UUID
	Ref    dinoparc.UserRef
}

// UnlinkFromDinoparc closes the link. Target user or administrator.
func (s *Service) UnlinkFromDinoparc(ctx context.Context, acx etwin.AuthContext, opts UnlinkFromDinoparcOptions) (*link.VersionedDinoparcLink, error) {
	if err := requireSelfOrAdmin(acx, opts.UserID); err != nil {
		return nil, err
	}
	return s.cfg.Links.UnlinkFromDinoparc(ctx, link.UnlinkFromDinoparcOptions{
		UserID:         opts.UserID,
		Server:         opts.Ref.Server,
		DinoparcUserID: opts.Ref.ID,
		UnlinkedBy:     acx.Actor().ID,
	})
}

// UnlinkFromHammerfestOptions closes an active Hammerfest link.
type UnlinkFromHammerfestOptions struct {
	UserID uuid.UUID
	Ref    hammerfest.UserRef
}

// UnlinkFromHammerfest closes the link. Target user or administrator.
func (s *Service) UnlinkFromHammerfest(ctx context.Context, acx etwin.AuthContext, opts UnlinkFromHammerfestOptions) (*link.VersionedHammerfestLink, error) {
	if err := requireSelfOrAdmin(acx, opts.UserID); err != nil {
		return nil, err
	}
	return s.cfg.Links.UnlinkFromHammerfest(ctx, link.UnlinkFromHammerfestOptions{
		UserID:           opts.UserID,
		Server:           opts.Ref.Server,
		HammerfestUserID: opts.Ref.ID,
		UnlinkedBy:       acx.Actor().ID,
	})
}

// UnlinkFromTwinoidOptions closes an active Twinoid link.
type UnlinkFromTwinoidOptions struct {
	UserID uuid.UUID
	Ref    twinoid.UserRef
}

// UnlinkFromTwinoid closes the link. Target user or administrator.
func (s *Service) UnlinkFromTwinoid(ctx context.Context, acx etwin.AuthContext, opts UnlinkFromTwinoidOptions) (*link.VersionedTwinoidLink, error) {
	if err := requireSelfOrAdmin(acx, opts.UserID); err != nil {
		return nil, err
	}
	return s.cfg.Links.UnlinkFromTwinoid(ctx, link.UnlinkFromTwinoidOptions{
		UserID:        opts.UserID,
		TwinoidUserID: opts.Ref.ID,
		UnlinkedBy:    acx.Actor().ID,
	})
}

// UserView is a full user record together with its resolved link state.
type UserView struct {
	User  etwin.User          `json:"user"`
	Links link.VersionedLinks `json:"links"`
}

// UpdateUserOptions applies a profile patch to a canonical user.
type UpdateUserOptions struct {
	UserID uuid.UUID
	Patch  etwin.UpdateUserPatch
}

// UpdateUser applies display name, username and password changes, then
// re-resolves the user's full link state. Target user or administrator.
func (s *Service) UpdateUser(ctx context.Context, acx etwin.AuthContext, opts UpdateUserOptions) (*UserView, error) {
	if err := requireSelfOrAdmin(acx, opts.UserID); err != nil {
		return nil, err
	}

	storeOpts := etwin.UpdateStoreUserOptions{
		Ref:   etwin.UserRef{ID: opts.UserID},
		Actor: acx.Actor(),
	}
	if opts.Patch.DisplayName != nil {
		if err := etwin.ValidateDisplayName(*opts.Patch.DisplayName); err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "invalid display name")
		}
		storeOpts.DisplayName = opts.Patch.DisplayName
	}
	if opts.Patch.Username != nil {
		if err := etwin.ValidateUsername(*opts.Patch.Username); err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "invalid username")
		}
		storeOpts.Username = opts.Patch.Username
	}
	if opts.Patch.Password != nil {
		hash, err := s.cfg.Password.Hash(*opts.Patch.Password)
		if err != nil {
			return nil, err
		}
		storeOpts.PasswordHash = &hash
	}

	user, err := s.cfg.Users.UpdateUser(ctx, storeOpts)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, etwin.ErrUserNotFound
	}

	links, err := s.cfg.Links.GetVersionedLinks(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &UserView{User: *user, Links: *links}, nil
}

// GetUserView resolves a user together with its full link state.
func (s *Service) GetUserView(ctx context.Context, userID uuid.UUID) (*UserView, error) {
	user, err := s.cfg.Users.GetUser(ctx, etwin.UserRef{ID: userID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, etwin.ErrUserNotFound
	}
	links, err := s.cfg.Links.GetVersionedLinks(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &UserView{User: *user, Links: *links}, nil
}
