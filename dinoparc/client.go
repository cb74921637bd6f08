package dinoparc

import "context"

// Client is the contract for talking to a Dinoparc server. Network
// implementations live outside this module; the memory package ships a fake
// that emulates the game for tests.
type Client interface {
	// CreateSession authenticates with credentials and opens a session.
	// A failed credential check is reported as an error.
	CreateSession(ctx context.Context, creds Credentials) (*Session, error)
	// TestSession checks an existing session key. It returns (nil, nil)
	// when the key is no longer valid.
	TestSession(ctx context.Context, server Server, key SessionKey) (*Session, error)
	// GetDinoz fetches the detail page of one dinoz.
	GetDinoz(ctx context.Context, session *Session, id DinozId) (*DinozResponse, error)
	// GetInventory fetches the session user's item inventory.
	GetInventory(ctx context.Context, session *Session) (*InventoryResponse, error)
	// GetCollection fetches the session user's reward collection.
	GetCollection(ctx context.Context, session *Session) (*CollectionResponse, error)
	// GetExchangeWith fetches the exchange page against another user. The
	// page lists the session user's dinoz beyond the sidebar cap.
	GetExchangeWith(ctx context.Context, session *Session, other UserId) (*ExchangeWithResponse, error)
}
