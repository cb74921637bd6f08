package memory

import (
	"context"
	"sync"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/link"
	"github.com/eternaltwin/etwin/twinoid"
)

// linkTable holds the append-only link periods of one realm family. Rows
// stay forever; closing a period sets its Unlink action.
type linkTable[Ref comparable] struct {
	rows []*link.RawLink[Ref]
}

// viewEtwin assembles the canonical-side state of one (user, realm) pair.
func (t *linkTable[Ref]) viewEtwin(user etwin.UserRef, inRealm func(Ref) bool) link.VersionedRawLink[Ref] {
	var out link.VersionedRawLink[Ref]
	for _, row := range t.rows {
		if row.Etwin != user || !inRealm(row.Remote) {
			continue
		}
		cp := *row
		if row.Unlink == nil {
			out.Current = &cp
		} else {
			out.Old = append(out.Old, cp)
		}
	}
	return out
}

// viewRemote assembles the remote-side state of one remote user.
func (t *linkTable[Ref]) viewRemote(remote Ref) link.VersionedRawLink[Ref] {
	var out link.VersionedRawLink[Ref]
	for _, row := range t.rows {
		if row.Remote != remote {
			continue
		}
		cp := *row
		if row.Unlink == nil {
			out.Current = &cp
		} else {
			out.Old = append(out.Old, cp)
		}
	}
	return out
}

// touch upserts the active link of a (user, realm) pair. inRealm selects
// rows that belong to the same realm as opts.Remote.
func (t *linkTable[Ref]) touch(opts link.TouchLinkOptions[Ref], inRealm func(Ref) bool, now time.Time) (*link.VersionedRawLink[Ref], error) {
	for _, row := range t.rows {
		if row.Unlink != nil {
			continue
		}
		if row.Remote == opts.Remote && row.Etwin != opts.Etwin {
			return nil, link.ErrRemoteAccountInUse
		}
		if row.Etwin == opts.Etwin && inRealm(row.Remote) {
			if row.Remote == opts.Remote {
				// Identical active pair: idempotent no-op.
				v := t.viewEtwin(opts.Etwin, inRealm)
				return &v, nil
			}
			return nil, link.ErrUserAlreadyLinked
		}
	}

	t.rows = append(t.rows, &link.RawLink[Ref]{
		Link:   link.RawAction{Time: now, By: opts.LinkedBy},
		Etwin:  opts.Etwin,
		Remote: opts.Remote,
	})
	v := t.viewEtwin(opts.Etwin, inRealm)
	return &v, nil
}

// delete closes the active link of a (user, realm) pair. Deleting when
// nothing is active is a no-op; naming a pair that does not match the
// active link is a mismatch.
func (t *linkTable[Ref]) delete(opts link.DeleteLinkOptions[Ref], inRealm func(Ref) bool, now time.Time) (*link.VersionedRawLink[Ref], error) {
	for _, row := range t.rows {
		if row.Unlink != nil || row.Etwin != opts.Etwin || !inRealm(row.Remote) {
			continue
		}
		if row.Remote != opts.Remote {
			return nil, link.ErrLinkMismatch
		}
		row.Unlink = &link.RawAction{Time: now, By: opts.UnlinkedBy}
		break
	}
	v := t.viewEtwin(opts.Etwin, inRealm)
	return &v, nil
}

// LinkStore is the in-memory link store. It is the single authority for
// the active-link uniqueness constraints.
type LinkStore struct {
	mu         sync.Mutex
	dinoparc   linkTable[dinoparc.UserRef]
	hammerfest linkTable[hammerfest.UserRef]
	twinoid    linkTable[twinoid.UserRef]
	now        nowFn
}

type LinkStoreOption func(*LinkStore)

func WithLinkStoreNow(now func() time.Time) LinkStoreOption {
	return func(s *LinkStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewLinkStore(opts ...LinkStoreOption) *LinkStore {
	s := &LinkStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ link.Store = (*LinkStore)(nil)

func dinoparcRealm(server dinoparc.Server) func(dinoparc.UserRef) bool {
	return func(r dinoparc.UserRef) bool { return r.Server == server }
}

func hammerfestRealm(server hammerfest.Server) func(hammerfest.UserRef) bool {
	return func(r hammerfest.UserRef) bool { return r.Server == server }
}

func twinoidRealm(twinoid.UserRef) bool { return true }

func (s *LinkStore) GetLinksFromEtwin(ctx context.Context, ref etwin.UserRef) (*link.RawLinks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &link.RawLinks{
		DinoparcCom:   s.dinoparc.viewEtwin(ref, dinoparcRealm(dinoparc.DinoparcCom)),
		EnDinoparcCom: s.dinoparc.viewEtwin(ref, dinoparcRealm(dinoparc.EnDinoparcCom)),
		SpDinoparcCom: s.dinoparc.viewEtwin(ref, dinoparcRealm(dinoparc.SpDinoparcCom)),
		HammerfestFr:  s.hammerfest.viewEtwin(ref, hammerfestRealm(hammerfest.HammerfestFr)),
		HammerfestEs:  s.hammerfest.viewEtwin(ref, hammerfestRealm(hammerfest.HammerfestEs)),
		HfestNet:      s.hammerfest.viewEtwin(ref, hammerfestRealm(hammerfest.HfestNet)),
		Twinoid:       s.twinoid.viewEtwin(ref, twinoidRealm),
	}, nil
}

func (s *LinkStore) GetLinkFromDinoparc(ctx context.Context, remote dinoparc.UserRef) (*link.VersionedRawLink[dinoparc.UserRef], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.dinoparc.viewRemote(remote)
	return &v, nil
}

func (s *LinkStore) GetLinkFromHammerfest(ctx context.Context, remote hammerfest.UserRef) (*link.VersionedRawLink[hammerfest.UserRef], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.hammerfest.viewRemote(remote)
	return &v, nil
}

func (s *LinkStore) GetLinkFromTwinoid(ctx context.Context, remote twinoid.UserRef) (*link.VersionedRawLink[twinoid.UserRef], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.twinoid.viewRemote(remote)
	return &v, nil
}

func (s *LinkStore) TouchDinoparcLink(ctx context.Context, opts link.TouchLinkOptions[dinoparc.UserRef]) (*link.VersionedRawLink[dinoparc.UserRef], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dinoparc.touch(opts, dinoparcRealm(opts.Remote.Server), s.now())
}

func (s *LinkStore) TouchHammerfestLink(ctx context.Context, opts link.TouchLinkOptions[hammerfest.UserRef]) (*link.VersionedRawLink[hammerfest.UserRef], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hammerfest.touch(opts, hammerfestRealm(opts.Remote.Server), s.now())
}

func (s *LinkStore) TouchTwinoidLink(ctx context.Context, opts link.TouchLinkOptions[twinoid.UserRef]) (*link.VersionedRawLink[twinoid.UserRef], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.twinoid.touch(opts, twinoidRealm, s.now())
}

func (s *LinkStore) DeleteDinoparcLink(ctx context.Context, opts link.DeleteLinkOptions[dinoparc.UserRef]) (*link.VersionedRawLink[dinoparc.UserRef], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dinoparc.delete(opts, dinoparcRealm(opts.Remote.Server), s.now())
}

func (s *LinkStore) DeleteHammerfestLink(ctx context.Context, opts link.DeleteLinkOptions[hammerfest.UserRef]) (*link.VersionedRawLink[hammerfest.UserRef], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hammerfest.delete(opts, hammerfestRealm(opts.Remote.Server), s.now())
}

func (s *LinkStore) DeleteTwinoidLink(ctx context.Context, opts link.DeleteLinkOptions[twinoid.UserRef]) (*link.VersionedRawLink[twinoid.UserRef], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.twinoid.delete(opts, twinoidRealm, s.now())
}
