package rest

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	etwin "github.com/eternaltwin/etwin"
)

const sessionLocalsKey = "etwin.session"

// loadAuth resolves the caller's authentication context from the bearer
// token, if any, and stores it on the request context. The session store
// stays authoritative: a valid token naming a revoked session falls back
// to guest. Requests without a token proceed as guests; the services
// decide what guests may do.
func (ct *Controller) loadAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if header == "" || !ok {
		c.SetUserContext(etwin.WithAuthContext(c.UserContext(), etwin.GuestAuth()))
		return c.Next()
	}

	claims, err := ct.signer.Verify(raw)
	if err != nil {
		return ct.respondError(c, err)
	}

	resolved, err := ct.auth.AuthenticateSession(c.UserContext(), claims.SessionID)
	if err != nil {
		return ct.respondError(c, err)
	}
	if resolved == nil {
		c.SetUserContext(etwin.WithAuthContext(c.UserContext(), etwin.GuestAuth()))
		return c.Next()
	}

	acx := etwin.UserAuth(resolved.User.Short(), resolved.User.IsAdministrator)
	c.SetUserContext(etwin.WithAuthContext(c.UserContext(), acx))
	c.Locals(sessionLocalsKey, claims.SessionID)
	return c.Next()
}

func requestAuth(c *fiber.Ctx) etwin.AuthContext {
	return etwin.AuthContextFrom(c.UserContext())
}

func requestSession(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(sessionLocalsKey).(uuid.UUID)
	return id, ok
}
