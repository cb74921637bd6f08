package hammerfest

import "context"

// GetProfileByIdOptions selects a public profile page. No session is
// required; the page is world-readable.
type GetProfileByIdOptions struct {
	Server Server
	UserID UserId
}

// Client is the contract for talking to a Hammerfest server.
type Client interface {
	// CreateSession authenticates with credentials and opens a session.
	CreateSession(ctx context.Context, creds Credentials) (*Session, error)
	// TestSession checks an existing session key. It returns (nil, nil)
	// when the key is no longer valid.
	TestSession(ctx context.Context, server Server, key SessionKey) (*Session, error)
	// GetProfileByID fetches a public profile. It returns (nil, nil) when
	// the profile does not exist. A nil session performs the anonymous
	// lookup used for reference linking.
	GetProfileByID(ctx context.Context, session *Session, opts GetProfileByIdOptions) (*ProfileResponse, error)
	// GetOwnItems fetches the session user's item counts.
	GetOwnItems(ctx context.Context, session *Session) (*InventoryResponse, error)
	// GetOwnShop fetches the session user's token shop state.
	GetOwnShop(ctx context.Context, session *Session) (*ShopResponse, error)
	// GetOwnGodchildren fetches the session user's godchildren listing.
	GetOwnGodchildren(ctx context.Context, session *Session) (*GodchildrenResponse, error)
}
