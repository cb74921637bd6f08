package dinoparc

import (
	"context"
	"time"
)

// DinozId is a Dinoparc dinoz id, same shape as a user id.
type DinozId string

// ShortDinoz is the sidebar projection of a dinoz.
type ShortDinoz struct {
	Server Server  `json:"server"`
	ID     DinozId `json:"id"`
	Name   *string `json:"name,omitempty"`
}

// Dinoz is the full dinoz record scraped from its detail page.
type Dinoz struct {
	Server     Server  `json:"server"`
	ID         DinozId `json:"id"`
	Name       *string `json:"name,omitempty"`
	Location   *string `json:"location,omitempty"`
	Race       string  `json:"race"`
	Skin       string  `json:"skin"`
	Life       uint8   `json:"life"`
	Level      uint16  `json:"level"`
	Experience uint8   `json:"experience"`
	Danger     int16   `json:"danger"`
}

// SessionUser is the sidebar state present on every authenticated page.
type SessionUser struct {
	User  ShortUser    `json:"user"`
	Coins uint32       `json:"coins"`
	Dinoz []ShortDinoz `json:"dinoz"`
}

// InventoryResponse is an archival snapshot of the item inventory page.
type InventoryResponse struct {
	SessionUser SessionUser       `json:"session_user"`
	Inventory   map[string]uint32 `json:"inventory"`
}

// Collection holds the reward collection state.
type Collection struct {
	RewardIDs      []string `json:"reward_ids"`
	EpicRewardKeys []string `json:"epic_reward_keys"`
}

// CollectionResponse is an archival snapshot of the collection page.
type CollectionResponse struct {
	SessionUser SessionUser `json:"session_user"`
	Collection  Collection  `json:"collection"`
}

// DinozResponse is an archival snapshot of one dinoz detail page.
type DinozResponse struct {
	SessionUser SessionUser `json:"session_user"`
	Dinoz       Dinoz       `json:"dinoz"`
}

// ExchangeWithResponse is an archival snapshot of the exchange page. Its
// own-dinoz listing has no cap, unlike the sidebar.
type ExchangeWithResponse struct {
	SessionUser SessionUser  `json:"session_user"`
	OwnDinoz    []ShortDinoz `json:"own_dinoz"`
	OtherUser   ShortUser    `json:"other_user"`
	OtherDinoz  []ShortDinoz `json:"other_dinoz"`
}

// ArchivedUser is a stored short user plus store bookkeeping.
type ArchivedUser struct {
	ShortUser
	ArchivedAt time.Time `json:"archived_at"`
}

// Store persists Dinoparc data on the canonical side. GetShortUser returns
// (nil, nil) for unknown users. Touch methods are idempotent upserts.
type Store interface {
	GetShortUser(ctx context.Context, ref UserRef) (*ShortUser, error)
	TouchShortUser(ctx context.Context, short ShortUser) (*ArchivedUser, error)
	TouchInventory(ctx context.Context, resp *InventoryResponse) error
	TouchCollection(ctx context.Context, resp *CollectionResponse) error
	TouchDinoz(ctx context.Context, resp *DinozResponse) error
	TouchExchangeWith(ctx context.Context, resp *ExchangeWithResponse) error
}
