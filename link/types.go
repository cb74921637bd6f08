// Package link implements the cross-service identity link model: the raw
// link facts persisted by a Store and the single Service that resolves
// them into hydrated, versioned views.
package link

import (
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/twinoid"
)

// RawAction records when a link event happened and which canonical user
// performed it.
type RawAction struct {
	Time time.Time     `json:"time"`
	By   etwin.UserRef `json:"by"`
}

// RawLink is the persisted fact of one link period between a canonical
// user and a remote user. It is immutable once the period is closed: an
// unlink records the termination, it never deletes history.
type RawLink[Ref any] struct {
	Link   RawAction  `json:"link"`
	Unlink *RawAction `json:"unlink,omitempty"`
	Etwin  etwin.UserRef `json:"etwin"`
	Remote Ref           `json:"remote"`
}

// VersionedRawLink is the full raw state of one (canonical user, realm)
// pair: the active period, if any, and every closed period in
// chronological order. A non-nil Current always has a nil Unlink.
type VersionedRawLink[Ref any] struct {
	Current *RawLink[Ref] `json:"current"`
	Old     []RawLink[Ref] `json:"old"`
}

// Action is the hydrated form of RawAction: the actor resolved to a short
// user record.
type Action struct {
	Time time.Time       `json:"time"`
	By   etwin.ShortUser `json:"by"`
}

// Link is one hydrated link period viewed from the canonical side: User is
// the resolved remote user.
type Link[RemoteUser any] struct {
	Link   Action     `json:"link"`
	Unlink *Action    `json:"unlink,omitempty"`
	User   RemoteUser `json:"user"`
}

// VersionedLink is the hydrated view of one realm for one canonical user.
type VersionedLink[RemoteUser any] struct {
	Current *Link[RemoteUser] `json:"current"`
	Old     []Link[RemoteUser] `json:"old"`
}

// EtwinLink is one hydrated link period viewed from the remote side: User
// is the resolved canonical user.
type EtwinLink struct {
	Link   Action          `json:"link"`
	Unlink *Action         `json:"unlink,omitempty"`
	User   etwin.ShortUser `json:"user"`
}

// VersionedEtwinLink is the hydrated reverse view for one remote user.
type VersionedEtwinLink struct {
	Current *EtwinLink  `json:"current"`
	Old     []EtwinLink `json:"old"`
}

// VersionedDinoparcLink is the hydrated view of one Dinoparc realm.
type VersionedDinoparcLink = VersionedLink[dinoparc.ShortUser]

// VersionedHammerfestLink is the hydrated view of one Hammerfest realm.
type VersionedHammerfestLink = VersionedLink[hammerfest.ShortUser]

// VersionedTwinoidLink is the hydrated view of the Twinoid realm.
type VersionedTwinoidLink = VersionedLink[twinoid.ShortUser]

// VersionedLinks aggregates every realm a canonical user can be linked to.
type VersionedLinks struct {
	DinoparcCom   VersionedDinoparcLink   `json:"dinoparc_com"`
	EnDinoparcCom VersionedDinoparcLink   `json:"en_dinoparc_com"`
	SpDinoparcCom VersionedDinoparcLink   `json:"sp_dinoparc_com"`
	HammerfestFr  VersionedHammerfestLink `json:"hammerfest_fr"`
	HammerfestEs  VersionedHammerfestLink `json:"hammerfest_es"`
	HfestNet      VersionedHammerfestLink `json:"hfest_net"`
	Twinoid       VersionedTwinoidLink    `json:"twinoid"`
}

// RawLinks is the raw counterpart of VersionedLinks, as returned by the
// store's batched lookup.
type RawLinks struct {
	DinoparcCom   VersionedRawLink[dinoparc.UserRef]
	EnDinoparcCom VersionedRawLink[dinoparc.UserRef]
	SpDinoparcCom VersionedRawLink[dinoparc.UserRef]
	HammerfestFr  VersionedRawLink[hammerfest.UserRef]
	HammerfestEs  VersionedRawLink[hammerfest.UserRef]
	HfestNet      VersionedRawLink[hammerfest.UserRef]
	Twinoid       VersionedRawLink[twinoid.UserRef]
}
