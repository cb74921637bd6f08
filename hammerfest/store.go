package hammerfest

import (
	"context"
	"time"
)

// Profile is the public profile page of a Hammerfest user.
type Profile struct {
	User      ShortUser `json:"user"`
	BestScore uint32    `json:"best_score"`
	BestLevel uint32    `json:"best_level"`
	HasCarrot bool      `json:"has_carrot"`
	Ladder    uint8     `json:"ladder"`
	Items     []string  `json:"items"`
}

// ProfileResponse is an archival snapshot of a profile page. The session
// side is nil for anonymous lookups.
type ProfileResponse struct {
	Session *Session `json:"session,omitempty"`
	Profile Profile  `json:"profile"`
}

// InventoryResponse is an archival snapshot of the items page.
type InventoryResponse struct {
	Session Session           `json:"session"`
	Items   map[string]uint32 `json:"items"`
}

// Shop holds the token shop state of the session user.
type Shop struct {
	Tokens         uint32 `json:"tokens"`
	Weekly         bool   `json:"weekly"`
	PurchasedFuzes uint32 `json:"purchased_fuzes"`
}

// ShopResponse is an archival snapshot of the shop page.
type ShopResponse struct {
	Session Session `json:"session"`
	Shop    Shop    `json:"shop"`
}

// Godchild is one referred account and the tokens it earned.
type Godchild struct {
	User   ShortUser `json:"user"`
	Tokens uint32    `json:"tokens"`
}

// GodchildrenResponse is an archival snapshot of the godchildren page.
type GodchildrenResponse struct {
	Session     Session    `json:"session"`
	Godchildren []Godchild `json:"godchildren"`
}

// ArchivedUser is a stored short user plus store bookkeeping.
type ArchivedUser struct {
	ShortUser
	ArchivedAt time.Time `json:"archived_at"`
}

// Store persists Hammerfest data on the canonical side. GetShortUser
// returns (nil, nil) for unknown users. Touch methods are idempotent.
type Store interface {
	GetShortUser(ctx context.Context, ref UserRef) (*ShortUser, error)
	TouchShortUser(ctx context.Context, short ShortUser) (*ArchivedUser, error)
	TouchProfile(ctx context.Context, resp *ProfileResponse) error
	TouchInventory(ctx context.Context, resp *InventoryResponse) error
	TouchShop(ctx context.Context, resp *ShopResponse) error
	TouchGodchildren(ctx context.Context, resp *GodchildrenResponse) error
}
