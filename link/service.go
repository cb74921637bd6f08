package link

import (
	"context"
	"fmt"
	"sync"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/twinoid"
	"github.com/google/uuid"
)

// Service resolves raw link facts into hydrated, versioned views and
// exposes the link/unlink operations. There is exactly one implementation;
// storage variants hide behind the Store contract.
//
// Service performs no authorization: the federation layer checks the
// caller before it reaches this type.
type Service struct {
	links      Store
	users      etwin.UserStore
	dinoparc   dinoparc.Store
	hammerfest hammerfest.Store
	twinoid    twinoid.Store
	logger     etwin.Logger
}

type ServiceOption func(*Service)

func WithLogger(logger etwin.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(
	links Store,
	users etwin.UserStore,
	dinoparcStore dinoparc.Store,
	hammerfestStore hammerfest.Store,
	twinoidStore twinoid.Store,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		links:      links,
		users:      users,
		dinoparc:   dinoparcStore,
		hammerfest: hammerfestStore,
		twinoid:    twinoidStore,
		logger:     etwin.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetVersionedLinks returns the hydrated link state of every realm for one
// canonical user. The store is hit once for the raw facts, then each realm
// resolves concurrently. A user with no links at all is not an error.
func (s *Service) GetVersionedLinks(ctx context.Context, userID uuid.UUID) (*VersionedLinks, error) {
	raw, err := s.links.GetLinksFromEtwin(ctx, etwin.UserRef{ID: userID})
	if err != nil {
		return nil, err
	}

	var (
		out  VersionedLinks
		wg   sync.WaitGroup
		errs [7]error
	)

	wg.Add(7)
	go func() {
		defer wg.Done()
		out.DinoparcCom, errs[0] = s.resolveDinoparc(ctx, raw.DinoparcCom)
	}()
	go func() {
		defer wg.Done()
		out.EnDinoparcCom, errs[1] = s.resolveDinoparc(ctx, raw.EnDinoparcCom)
	}()
	go func() {
		defer wg.Done()
		out.SpDinoparcCom, errs[2] = s.resolveDinoparc(ctx, raw.SpDinoparcCom)
	}()
	go func() {
		defer wg.Done()
		out.HammerfestFr, errs[3] = s.resolveHammerfest(ctx, raw.HammerfestFr)
	}()
	go func() {
		defer wg.Done()
		out.HammerfestEs, errs[4] = s.resolveHammerfest(ctx, raw.HammerfestEs)
	}()
	go func() {
		defer wg.Done()
		out.HfestNet, errs[5] = s.resolveHammerfest(ctx, raw.HfestNet)
	}()
	go func() {
		defer wg.Done()
		out.Twinoid, errs[6] = s.resolveTwinoid(ctx, raw.Twinoid)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// GetLinkFromDinoparc is the reverse lookup: which canonical user, if any,
// a Dinoparc account is linked to.
func (s *Service) GetLinkFromDinoparc(ctx context.Context, server dinoparc.Server, id dinoparc.UserId) (*VersionedEtwinLink, error) {
	raw, err := s.links.GetLinkFromDinoparc(ctx, dinoparc.UserRef{Server: server, ID: id})
	if err != nil {
		return nil, err
	}
	return resolveEtwinSide(ctx, s.users, raw)
}

// GetLinkFromHammerfest is the reverse lookup for a Hammerfest account.
func (s *Service) GetLinkFromHammerfest(ctx context.Context, server hammerfest.Server, id hammerfest.UserId) (*VersionedEtwinLink, error) {
	raw, err := s.links.GetLinkFromHammerfest(ctx, hammerfest.UserRef{Server: server, ID: id})
	if err != nil {
		return nil, err
	}
	return resolveEtwinSide(ctx, s.users, raw)
}

// GetLinkFromTwinoid is the reverse lookup for a Twinoid account.
func (s *Service) GetLinkFromTwinoid(ctx context.Context, id twinoid.UserId) (*VersionedEtwinLink, error) {
	raw, err := s.links.GetLinkFromTwinoid(ctx, twinoid.UserRef{ID: id})
	if err != nil {
		return nil, err
	}
	return resolveEtwinSide(ctx, s.users, raw)
}

// LinkToDinoparcOptions names the pair to link and the acting user.
type LinkToDinoparcOptions struct {
	UserID         uuid.UUID
	Server         dinoparc.Server
	DinoparcUserID dinoparc.UserId
	LinkedBy       uuid.UUID
}

// LinkToDinoparc records the link through the store's atomic touch and
// returns the hydrated view. Touching an identical active pair is a no-op
// returning current state.
func (s *Service) LinkToDinoparc(ctx context.Context, opts LinkToDinoparcOptions) (*VersionedDinoparcLink, error) {
	raw, err := s.links.TouchDinoparcLink(ctx, TouchLinkOptions[dinoparc.UserRef]{
		Etwin:    etwin.UserRef{ID: opts.UserID},
		Remote:   dinoparc.UserRef{Server: opts.Server, ID: opts.DinoparcUserID},
		LinkedBy: etwin.UserRef{ID: opts.LinkedBy},
	})
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolveDinoparc(ctx, *raw)
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

// LinkToHammerfestOptions names the pair to link and the acting user.
type LinkToHammerfestOptions struct {
	UserID           uuid.UUID
	Server           hammerfest.Server
	HammerfestUserID hammerfest.UserId
	LinkedBy         uuid.UUID
}

// LinkToHammerfest records the link and returns the hydrated view.
func (s *Service) LinkToHammerfest(ctx context.Context, opts LinkToHammerfestOptions) (*VersionedHammerfestLink, error) {
	raw, err := s.links.TouchHammerfestLink(ctx, TouchLinkOptions[hammerfest.UserRef]{
		Etwin:    etwin.UserRef{ID: opts.UserID},
		Remote:   hammerfest.UserRef{Server: opts.Server, ID: opts.HammerfestUserID},
		LinkedBy: etwin.UserRef{ID: opts.LinkedBy},
	})
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolveHammerfest(ctx, *raw)
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

// LinkToTwinoidOptions names the pair to link and the acting user.
type LinkToTwinoidOptions struct {
	UserID        uuid.UUID
	TwinoidUserID twinoid.UserId
	LinkedBy      uuid.UUID
}

// LinkToTwinoid records the link and returns the hydrated view.
func (s *Service) LinkToTwinoid(ctx context.Context, opts LinkToTwinoidOptions) (*VersionedTwinoidLink, error) {
	raw, err := s.links.TouchTwinoidLink(ctx, TouchLinkOptions[twinoid.UserRef]{
		Etwin:    etwin.UserRef{ID: opts.UserID},
		Remote:   twinoid.UserRef{ID: opts.TwinoidUserID},
		LinkedBy: etwin.UserRef{ID: opts.LinkedBy},
	})
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolveTwinoid(ctx, *raw)
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

// UnlinkFromDinoparcOptions names the pair to unlink and the acting user.
type UnlinkFromDinoparcOptions struct {
	UserID         uuid.UUID
	Server         dinoparc.Server
	DinoparcUserID dinoparc.UserId
	UnlinkedBy     uuid.UUID
}

// UnlinkFromDinoparc closes the active link and returns the resulting
// view. Unlinking an already-unlinked pair is a no-op.
func (s *Service) UnlinkFromDinoparc(ctx context.Context, opts UnlinkFromDinoparcOptions) (*VersionedDinoparcLink, error) {
	raw, err := s.links.DeleteDinoparcLink(ctx, DeleteLinkOptions[dinoparc.UserRef]{
		Etwin:      etwin.UserRef{ID: opts.UserID},
		Remote:     dinoparc.UserRef{Server: opts.Server, ID: opts.DinoparcUserID},
		UnlinkedBy: etwin.UserRef{ID: opts.UnlinkedBy},
	})
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolveDinoparc(ctx, *raw)
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

// UnlinkFromHammerfestOptions names the pair to unlink and the acting user.
type UnlinkFromHammerfestOptions struct {
	UserID           uuid.UUID
	Server           hammerfest.Server
	HammerfestUserID hammerfest.UserId
	UnlinkedBy       uuid.UUID
}

// UnlinkFromHammerfest closes the active link and returns the resulting view.
func (s *Service) UnlinkFromHammerfest(ctx context.Context, opts UnlinkFromHammerfestOptions) (*VersionedHammerfestLink, error) {
	raw, err := s.links.DeleteHammerfestLink(ctx, DeleteLinkOptions[hammerfest.UserRef]{
		Etwin:      etwin.UserRef{ID: opts.UserID},
		Remote:     hammerfest.UserRef{Server: opts.Server, ID: opts.HammerfestUserID},
		UnlinkedBy: etwin.UserRef{ID: opts.UnlinkedBy},
	})
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolveHammerfest(ctx, *raw)
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

// UnlinkFromTwinoidOptions names the pair to unlink and the acting user.
type UnlinkFromTwinoidOptions struct {
	UserID        uuid.UUID
	TwinoidUserID twinoid.UserId
	UnlinkedBy    uuid.UUID
}

// UnlinkFromTwinoid closes the active link and returns the resulting view.
func (s *Service) UnlinkFromTwinoid(ctx context.Context, opts UnlinkFromTwinoidOptions) (*VersionedTwinoidLink, error) {
	raw, err := s.links.DeleteTwinoidLink(ctx, DeleteLinkOptions[twinoid.UserRef]{
		Etwin:      etwin.UserRef{ID: opts.UserID},
		Remote:     twinoid.UserRef{ID: opts.TwinoidUserID},
		UnlinkedBy: etwin.UserRef{ID: opts.UnlinkedBy},
	})
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolveTwinoid(ctx, *raw)
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

func (s *Service) resolveDinoparc(ctx context.Context, raw VersionedRawLink[dinoparc.UserRef]) (VersionedDinoparcLink, error) {
	return resolveRemoteSide(ctx, s.users, raw, func(ctx context.Context, ref dinoparc.UserRef) (*dinoparc.ShortUser, error) {
		return s.dinoparc.GetShortUser(ctx, ref)
	})
}

func (s *Service) resolveHammerfest(ctx context.Context, raw VersionedRawLink[hammerfest.UserRef]) (VersionedHammerfestLink, error) {
	return resolveRemoteSide(ctx, s.users, raw, func(ctx context.Context, ref hammerfest.UserRef) (*hammerfest.ShortUser, error) {
		return s.hammerfest.GetShortUser(ctx, ref)
	})
}

func (s *Service) resolveTwinoid(ctx context.Context, raw VersionedRawLink[twinoid.UserRef]) (VersionedTwinoidLink, error) {
	return resolveRemoteSide(ctx, s.users, raw, func(ctx context.Context, ref twinoid.UserRef) (*twinoid.ShortUser, error) {
		return s.twinoid.GetShortUser(ctx, ref)
	})
}

// resolveRemoteSide hydrates one realm viewed from the canonical side. A
// reference the stores cannot resolve is a store invariant violation: the
// link claims an entity that no longer exists.
func resolveRemoteSide[Ref any, RemoteUser any](
	ctx context.Context,
	users etwin.UserStore,
	raw VersionedRawLink[Ref],
	getRemote func(context.Context, Ref) (*RemoteUser, error),
) (VersionedLink[RemoteUser], error) {
	out := VersionedLink[RemoteUser]{Old: []Link[RemoteUser]{}}

	if raw.Current != nil {
		period, err := resolvePeriod(ctx, users, *raw.Current, getRemote)
		if err != nil {
			return out, err
		}
		out.Current = &period
	}
	for _, old := range raw.Old {
		period, err := resolvePeriod(ctx, users, old, getRemote)
		if err != nil {
			return out, err
		}
		out.Old = append(out.Old, period)
	}
	return out, nil
}

func resolvePeriod[Ref any, RemoteUser any](
	ctx context.Context,
	users etwin.UserStore,
	raw RawLink[Ref],
	getRemote func(context.Context, Ref) (*RemoteUser, error),
) (Link[RemoteUser], error) {
	var out Link[RemoteUser]

	linkAction, err := resolveAction(ctx, users, raw.Link)
	if err != nil {
		return out, err
	}
	out.Link = linkAction

	if raw.Unlink != nil {
		unlinkAction, err := resolveAction(ctx, users, *raw.Unlink)
		if err != nil {
			return out, err
		}
		out.Unlink = &unlinkAction
	}

	remote, err := getRemote(ctx, raw.Remote)
	if err != nil {
		return out, err
	}
	if remote == nil {
		return out, etwin.StoreInvariant(fmt.Sprintf("expected linked remote user %+v to exist", raw.Remote))
	}
	out.User = *remote
	return out, nil
}

// resolveEtwinSide hydrates the reverse view: the canonical side of each
// period resolved, the remote side being the query key.
func resolveEtwinSide[Ref any](ctx context.Context, users etwin.UserStore, raw *VersionedRawLink[Ref]) (*VersionedEtwinLink, error) {
	out := &VersionedEtwinLink{Old: []EtwinLink{}}

	resolveOne := func(period RawLink[Ref]) (EtwinLink, error) {
		var link EtwinLink
		linkAction, err := resolveAction(ctx, users, period.Link)
		if err != nil {
			return link, err
		}
		link.Link = linkAction
		if period.Unlink != nil {
			unlinkAction, err := resolveAction(ctx, users, *period.Unlink)
			if err != nil {
				return link, err
			}
			link.Unlink = &unlinkAction
		}
		user, err := users.GetShortUser(ctx, period.Etwin)
		if err != nil {
			return link, err
		}
		if user == nil {
			return link, etwin.StoreInvariant(fmt.Sprintf("expected linked user %s to exist", period.Etwin.ID))
		}
		link.User = *user
		return link, nil
	}

	if raw.Current != nil {
		current, err := resolveOne(*raw.Current)
		if err != nil {
			return nil, err
		}
		out.Current = &current
	}
	for _, old := range raw.Old {
		period, err := resolveOne(old)
		if err != nil {
			return nil, err
		}
		out.Old = append(out.Old, period)
	}
	return out, nil
}

func resolveAction(ctx context.Context, users etwin.UserStore, raw RawAction) (Action, error) {
	// The nil user is the system actor.
	if raw.By.ID == uuid.Nil {
		return Action{Time: raw.Time, By: etwin.ShortUser{DisplayName: "system"}}, nil
	}
	by, err := users.GetShortUser(ctx, raw.By)
	if err != nil {
		return Action{}, err
	}
	if by == nil {
		return Action{}, etwin.StoreInvariant(fmt.Sprintf("expected link actor %s to exist", raw.By.ID))
	}
	return Action{Time: raw.Time, By: *by}, nil
}
