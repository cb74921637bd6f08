package archive

import (
	"context"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/hammerfest"
)

// Hammerfest snapshots a Hammerfest account through a live session. Each
// fetch+touch pair fails independently and nothing propagates past this
// function.
func Hammerfest(ctx context.Context, client hammerfest.Client, store hammerfest.Store, session *hammerfest.Session, logger etwin.Logger) {
	if logger == nil {
		logger = etwin.DefaultLogger()
	}
	server := session.User.Server
	userID := session.User.ID

	profile, err := client.GetProfileByID(ctx, session, hammerfest.GetProfileByIdOptions{
		Server: server,
		UserID: userID,
	})
	if err != nil {
		logger.Error("hammerfest archival: profile fetch failed: server=%s user=%s: %v", server, userID, err)
	} else if profile == nil {
		logger.Error("hammerfest archival: own profile missing: server=%s user=%s", server, userID)
	} else if err := store.TouchProfile(ctx, profile); err != nil {
		logger.Error("hammerfest archival: profile touch failed: server=%s user=%s: %v", server, userID, err)
	}

	items, err := client.GetOwnItems(ctx, session)
	if err != nil {
		logger.Error("hammerfest archival: inventory fetch failed: server=%s user=%s: %v", server, userID, err)
	} else if err := store.TouchInventory(ctx, items); err != nil {
		logger.Error("hammerfest archival: inventory touch failed: server=%s user=%s: %v", server, userID, err)
	}

	shop, err := client.GetOwnShop(ctx, session)
	if err != nil {
		logger.Error("hammerfest archival: shop fetch failed: server=%s user=%s: %v", server, userID, err)
	} else if err := store.TouchShop(ctx, shop); err != nil {
		logger.Error("hammerfest archival: shop touch failed: server=%s user=%s: %v", server, userID, err)
	}

	godchildren, err := client.GetOwnGodchildren(ctx, session)
	if err != nil {
		logger.Error("hammerfest archival: godchildren fetch failed: server=%s user=%s: %v", server, userID, err)
	} else if err := store.TouchGodchildren(ctx, godchildren); err != nil {
		logger.Error("hammerfest archival: godchildren touch failed: server=%s user=%s: %v", server, userID, err)
	}
}
