package archive

import (
	"context"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/dinoparc"
	"golang.org/x/time/rate"
)

// exchangeWithThreshold is the sidebar dinoz cap: at or above this count
// the sidebar listing is truncated and the exchange page must be fetched
// to enumerate the remaining dinoz.
const exchangeWithThreshold = 150

// dinozFetchInterval paces per-dinoz detail fetches so archival does not
// hammer the remote server. Tests shorten it.
var dinozFetchInterval = 100 * time.Millisecond

// Dinoparc snapshots a Dinoparc account through a live session. Each
// fetch+touch pair fails independently: one unreachable resource does not
// abort the rest, and nothing propagates past this function.
func Dinoparc(ctx context.Context, client dinoparc.Client, store dinoparc.Store, session *dinoparc.Session, logger etwin.Logger) {
	if logger == nil {
		logger = etwin.DefaultLogger()
	}
	server := session.User.Server
	userID := session.User.ID

	dinozIDs := make(map[dinoparc.DinozId]struct{})

	inventory, err := client.GetInventory(ctx, session)
	if err != nil {
		logger.Error("dinoparc archival: inventory fetch failed: server=%s user=%s: %v", server, userID, err)
	} else {
		for _, d := range inventory.SessionUser.Dinoz {
			dinozIDs[d.ID] = struct{}{}
		}
		if err := store.TouchInventory(ctx, inventory); err != nil {
			logger.Error("dinoparc archival: inventory touch failed: server=%s user=%s: %v", server, userID, err)
		}
	}

	collection, err := client.GetCollection(ctx, session)
	if err != nil {
		logger.Error("dinoparc archival: collection fetch failed: server=%s user=%s: %v", server, userID, err)
	} else if err := store.TouchCollection(ctx, collection); err != nil {
		logger.Error("dinoparc archival: collection touch failed: server=%s user=%s: %v", server, userID, err)
	}

	// The sidebar truncates at the threshold: enumerate the rest through
	// the exchange page, which lists every owned dinoz.
	if inventory != nil && len(inventory.SessionUser.Dinoz) >= exchangeWithThreshold {
		exchange, err := client.GetExchangeWith(ctx, session, exchangePartner(userID))
		if err != nil {
			logger.Error("dinoparc archival: exchange fetch failed: server=%s user=%s: %v", server, userID, err)
		} else {
			for _, d := range exchange.OwnDinoz {
				dinozIDs[d.ID] = struct{}{}
			}
			if err := store.TouchExchangeWith(ctx, exchange); err != nil {
				logger.Error("dinoparc archival: exchange touch failed: server=%s user=%s: %v", server, userID, err)
			}
		}
	}

	limiter := rate.NewLimiter(rate.Every(dinozFetchInterval), 1)
	for id := range dinozIDs {
		if err := limiter.Wait(ctx); err != nil {
			logger.Error("dinoparc archival: aborted: server=%s user=%s: %v", server, userID, err)
			return
		}
		resp, err := client.GetDinoz(ctx, session, id)
		if err != nil {
			logger.Error("dinoparc archival: dinoz fetch failed: server=%s user=%s dinoz=%s: %v", server, userID, id, err)
			continue
		}
		if err := store.TouchDinoz(ctx, resp); err != nil {
			logger.Error("dinoparc archival: dinoz touch failed: server=%s user=%s dinoz=%s: %v", server, userID, id, err)
		}
	}
}

// exchangePartner picks a user to open the exchange page against. Any
// other account works; user 1 is reserved on every server, except for
// user 1 itself which exchanges against user 2.
func exchangePartner(self dinoparc.UserId) dinoparc.UserId {
	if self == "1" {
		return "2"
	}
	return "1"
}
