package link

import (
	"context"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/twinoid"
)

// TouchLinkOptions creates or refreshes the active link of one realm.
type TouchLinkOptions[Ref any] struct {
	Etwin    etwin.UserRef
	Remote   Ref
	LinkedBy etwin.UserRef
}

// DeleteLinkOptions closes the active link of one realm.
type DeleteLinkOptions[Ref any] struct {
	Etwin      etwin.UserRef
	Remote     Ref
	UnlinkedBy etwin.UserRef
}

// Store persists raw link facts. It is the single authority for the
// uniqueness invariants: at most one active link per (canonical user,
// realm) and per (remote user, realm). Touch operations are atomic
// upserts: linking an already-linked identical pair returns the current
// state unchanged, while a conflicting active link is rejected with
// ErrRemoteAccountInUse or ErrUserAlreadyLinked. Delete operations close
// the active period and are no-ops when nothing is active.
type Store interface {
	// GetLinksFromEtwin returns the raw state of every realm for one
	// canonical user in a single batched call.
	GetLinksFromEtwin(ctx context.Context, ref etwin.UserRef) (*RawLinks, error)

	GetLinkFromDinoparc(ctx context.Context, remote dinoparc.UserRef) (*VersionedRawLink[dinoparc.UserRef], error)
	GetLinkFromHammerfest(ctx context.Context, remote hammerfest.UserRef) (*VersionedRawLink[hammerfest.UserRef], error)
	GetLinkFromTwinoid(ctx context.Context, remote twinoid.UserRef) (*VersionedRawLink[twinoid.UserRef], error)

	TouchDinoparcLink(ctx context.Context, opts TouchLinkOptions[dinoparc.UserRef]) (*VersionedRawLink[dinoparc.UserRef], error)
	TouchHammerfestLink(ctx context.Context, opts TouchLinkOptions[hammerfest.UserRef]) (*VersionedRawLink[hammerfest.UserRef], error)
	TouchTwinoidLink(ctx context.Context, opts TouchLinkOptions[twinoid.UserRef]) (*VersionedRawLink[twinoid.UserRef], error)

	DeleteDinoparcLink(ctx context.Context, opts DeleteLinkOptions[dinoparc.UserRef]) (*VersionedRawLink[dinoparc.UserRef], error)
	DeleteHammerfestLink(ctx context.Context, opts DeleteLinkOptions[hammerfest.UserRef]) (*VersionedRawLink[hammerfest.UserRef], error)
	DeleteTwinoidLink(ctx context.Context, opts DeleteLinkOptions[twinoid.UserRef]) (*VersionedRawLink[twinoid.UserRef], error)
}
