package rest

import (
	"github.com/gofiber/fiber/v2"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/auth"
	"github.com/eternaltwin/etwin/hammerfest"
)

// loginResponse is the body of every successful authentication: the
// resolved user, its session and a signed access token naming it.
type loginResponse struct {
	User        *etwin.User   `json:"user"`
	Session     *auth.Session `json:"session"`
	IsNewUser   bool          `json:"is_new_user"`
	AccessToken string        `json:"access_token"`
}

func (ct *Controller) respondLogin(c *fiber.Ctx, result *auth.UserAndSession) error {
	token, err := ct.signer.Sign(result.User, result.Session.ID)
	if err != nil {
		return ct.respondError(c, err)
	}
	status := fiber.StatusOK
	if result.IsNewUser {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(loginResponse{
		User:        result.User,
		Session:     result.Session,
		IsNewUser:   result.IsNewUser,
		AccessToken: token,
	})
}

// LoginWithCredentials authenticates a canonical user with its own
// username and password.
func (ct *Controller) LoginWithCredentials(c *fiber.Ctx) error {
	var payload etwinAuthPayload
	if err := c.BodyParser(&payload); err != nil {
		return ct.respondBadInput(c, err)
	}
	if err := payload.Validate(); err != nil {
		return ct.respondBadInput(c, err)
	}

	result, err := ct.auth.AuthenticateWithCredentials(c.UserContext(), auth.Credentials{
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		return ct.respondError(c, err)
	}
	return ct.respondLogin(c, result)
}

// LoginWithDinoparc checks Dinoparc credentials and resolves or
// auto-registers the canonical user linked to that account.
func (ct *Controller) LoginWithDinoparc(c *fiber.Ctx) error {
	var payload dinoparcCredentialsPayload
	if err := c.BodyParser(&payload); err != nil {
		return ct.respondBadInput(c, err)
	}
	creds, err := payload.credentials()
	if err != nil {
		return ct.respondBadInput(c, err)
	}

	result, err := ct.auth.RegisterOrLoginWithDinoparc(c.UserContext(), creds)
	if err != nil {
		return ct.respondError(c, err)
	}
	return ct.respondLogin(c, result)
}

// LoginWithHammerfest accepts either Hammerfest credentials or an
// existing remote session key.
func (ct *Controller) LoginWithHammerfest(c *fiber.Ctx) error {
	var payload hammerfestAuthPayload
	if err := c.BodyParser(&payload); err != nil {
		return ct.respondBadInput(c, err)
	}

	var result *auth.UserAndSession
	if payload.hasSessionKey() {
		server, err := payload.server()
		if err != nil {
			return ct.respondBadInput(c, err)
		}
		result, err = ct.auth.RegisterOrLoginWithHammerfestSessionKey(
			c.UserContext(), server, hammerfest.SessionKey(payload.SessionKey))
		if err != nil {
			return ct.respondError(c, err)
		}
	} else {
		creds, err := payload.credentials()
		if err != nil {
			return ct.respondBadInput(c, err)
		}
		result, err = ct.auth.RegisterOrLoginWithHammerfest(c.UserContext(), creds)
		if err != nil {
			return ct.respondError(c, err)
		}
	}
	return ct.respondLogin(c, result)
}

// LoginWithTwinoid resolves the owner of an OAuth access token and
// resolves or auto-registers the canonical user behind it.
func (ct *Controller) LoginWithTwinoid(c *fiber.Ctx) error {
	var payload twinoidOauthPayload
	if err := c.BodyParser(&payload); err != nil {
		return ct.respondBadInput(c, err)
	}
	if err := payload.Validate(); err != nil {
		return ct.respondBadInput(c, err)
	}

	result, err := ct.auth.RegisterOrLoginWithTwinoidOauth(c.UserContext(), auth.TwinoidOauthCredentials{
		AccessToken:    payload.accessToken(),
		RefreshToken:   payload.RefreshToken,
		ExpirationTime: payload.expirationTime(),
	})
	if err != nil {
		return ct.respondError(c, err)
	}
	return ct.respondLogin(c, result)
}

// Logout revokes the caller's session. It requires a valid access token.
func (ct *Controller) Logout(c *fiber.Ctx) error {
	sessionID, ok := requestSession(c)
	if !ok {
		return ct.respondError(c, etwin.ErrUnauthorized)
	}
	if err := ct.auth.RevokeSession(c.UserContext(), sessionID); err != nil {
		return ct.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
