package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/token"
	"github.com/eternaltwin/etwin/twinoid"
	"github.com/eternaltwin/etwin/user"
)

var errInvalidUserID = errors.New("invalid user id", errors.CategoryBadInput).
	WithTextCode("invalid_user_id").
	WithCode(errors.CodeBadRequest)

func userID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return uuid.Nil, errInvalidUserID
	}
	return id, nil
}

// GetUser returns the full public view of a canonical user: its profile
// plus the hydrated link state of every realm.
func (ct *Controller) GetUser(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return ct.respondError(c, err)
	}
	view, err := ct.users.GetUserView(c.UserContext(), id)
	if err != nil {
		return ct.respondError(c, err)
	}
	return c.JSON(view)
}

// GetUserLinks returns only the hydrated link state.
func (ct *Controller) GetUserLinks(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return ct.respondError(c, err)
	}
	view, err := ct.users.GetUserView(c.UserContext(), id)
	if err != nil {
		return ct.respondError(c, err)
	}
	return c.JSON(view.Links)
}

// UpdateUser applies a profile patch. Target user or administrator.
func (ct *Controller) UpdateUser(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return ct.respondError(c, err)
	}
	var payload updateUserPayload
	if err := c.BodyParser(&payload); err != nil {
		return ct.respondBadInput(c, err)
	}

	view, err := ct.users.UpdateUser(c.UserContext(), requestAuth(c), user.UpdateUserOptions{
		UserID: id,
		Patch: etwin.UpdateUserPatch{
			DisplayName: payload.DisplayName,
			Username:    payload.Username,
			Password:    payload.Password,
		},
	})
	if err != nil {
		return ct.respondError(c, err)
	}
	return c.JSON(view)
}

// LinkDinoparc links a Dinoparc account to the target user, either with
// live credentials (self-service) or by remote id (administrator).
func (ct *Controller) LinkDinoparc(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return ct.respondError(c, err)
	}
	var payload linkDinoparcPayload
	if err := c.BodyParser(&payload); err != nil {
		return ct.respondBadInput(c, err)
	}

	if payload.isRef() {
		server, err := dinoparc.ParseServer(payload.Server)
		if err != nil {
			return ct.respondBadInput(c, err)
		}
		view, err := ct.users.LinkToDinoparcWithRef(c.UserContext(), requestAuth(c), user.LinkToDinoparcWithRefOptions{
			UserID: id,
			Ref:    dinoparc.UserRef{Server: server, ID: dinoparc.UserId(payload.RemoteID)},
		})
		if err != nil {
			return ct.respondError(c, err)
		}
		return c.JSON(view)
	}

	creds, err := dinoparcCredentialsPayload{
		Server:   payload.Server,
		Username: payload.Username,
		Password: payload.Password,
	}.credentials()
	if err != nil {
		return ct.respondBadInput(c, err)
	}
	view, err := ct.users.LinkToDinoparcWithCredentials(c.UserContext(), requestAuth(c), user.LinkToDinoparcWithCredentialsOptions{
		UserID:      id,
		Credentials: creds,
	})
	if err != nil {
		return ct.respondError(c, err)
	}
	return c.JSON(view)
}

// UnlinkDinoparc closes the active Dinoparc link of one realm.
func (ct *Controller) UnlinkDinoparc(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return ct.respondError(c, err)
	}
	var payload unlinkDinoparcPayload
	if err := c.BodyParser(&payload); err != nil {
		return ct.respondBadInput(c, err)
	}
	ref, err := payload.ref()
	if err != nil {
		return ct.respondBadInput(c, err)
	}

	view, err := ct.users.UnlinkFromDinoparc(c.UserContext(), requestAuth(c), user.UnlinkFromDinoparcOptions{
		UserID: id,
		Ref:    ref,
	})
	if err != nil {
		return ct.respondError(c, err)
	}
	return c.JSON(view)
}

// LinkHammerfest links a Hammerfest account: live credentials or session
// key for self-service, remote id for administrators.
func (ct *Controller) LinkHammerfest(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return ct.respondError(c, err)
	}
	var payload linkHammerfestPayload
	if err := c.BodyParser(&payload); err != nil {
		return ct.respondBadInput(c, err)
	}

	acx := requestAuth(c)
	switch {
	case payload.isRef():
		server, err := hammerfest.ParseServer(payload.Server)
		if err != nil {
			return ct.respondBadInput(c, err)
		}
		view, err := ct.users.LinkToHammerfestWithRef(c.UserContext(), acx, user.LinkToHammerfestWithRefOptions{
			UserID: id,
			Ref:    hammerfest.UserRef{Server: server, ID: hammerfest.UserId(payload.RemoteID)},
		})
		if err != nil {
			return ct.respondError(c, err)
		}
		return c.JSON(view)

	case payload.SessionKey != "":
		server, err := hammerfest.ParseServer(payload.Server)
		if err != nil {
			return ct.respondBadInput(c, err)
		}
		view, err := ct.users.LinkToHammerfestWithSessionKey(c.UserContext(), acx, user.LinkToHammerfestWithSessionKeyOptions{
			UserID:     id,
			Server:     server,
			SessionKey: hammerfest.SessionKey(payload.SessionKey),
		})
		if err != nil {
			return ct.respondError(c, err)
		}
		return c.JSON(view)

	default:
		creds, err := hammerfestAuthPayload{
			Server:   payload.Server,
			Username: payload.Username,
			Password: payload.Password,
		}.credentials()
		if err != nil {
			return ct.respondBadInput(c, err)
		}
		view, err := ct.users.LinkToHammerfestWithCredentials(c.UserContext(), acx, user.LinkToHammerfestWithCredentialsOptions{
			UserID:      id,
			Credentials: creds,
		})
		if err != nil {
			return ct.respondError(c, err)
		}
		return c.JSON(view)
	}
}

// UnlinkHammerfest closes the active Hammerfest link of one realm.
func (ct *Controller) UnlinkHammerfest(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return ct.respondError(c, err)
	}
	var payload unlinkHammerfestPayload
	if err := c.BodyParser(&payload); err != nil {
		return ct.respondBadInput(c, err)
	}
	ref, err := payload.ref()
	if err != nil {
		return ct.respondBadInput(c, err)
	}

	view, err := ct.users.UnlinkFromHammerfest(c.UserContext(), requestAuth(c), user.UnlinkFromHammerfestOptions{
		UserID: id,
		Ref:    ref,
	})
	if err != nil {
		return ct.respondError(c, err)
	}
	return c.JSON(view)
}

// LinkTwinoid links a Twinoid account: OAuth token for self-service,
// remote id for administrators.
func (ct *Controller) LinkTwinoid(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return ct.respondError(c, err)
	}
	var payload linkTwinoidPayload
	if err := c.BodyParser(&payload); err != nil {
		return ct.respondBadInput(c, err)
	}

	acx := requestAuth(c)
	if payload.isRef() {
		view, err := ct.users.LinkToTwinoidWithRef(c.UserContext(), acx, user.LinkToTwinoidWithRefOptions{
			UserID: id,
			Ref:    twinoid.UserRef{ID: twinoid.UserId(payload.RemoteID)},
		})
		if err != nil {
			return ct.respondError(c, err)
		}
		return c.JSON(view)
	}

	oauth := twinoidOauthPayload{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    payload.ExpiresIn,
	}
	if err := oauth.Validate(); err != nil {
		return ct.respondBadInput(c, err)
	}
	view, err := ct.users.LinkToTwinoidWithOauth(c.UserContext(), acx, user.LinkToTwinoidWithOauthOptions{
		UserID: id,
		Oauth: token.TouchTwinoidOauthOptions{
			AccessToken:    oauth.accessToken(),
			RefreshToken:   payload.RefreshToken,
			ExpirationTime: oauth.expirationTime(),
		},
	})
	if err != nil {
		return ct.respondError(c, err)
	}
	return c.JSON(view)
}

// UnlinkTwinoid closes the active Twinoid link.
func (ct *Controller) UnlinkTwinoid(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return ct.respondError(c, err)
	}
	var payload unlinkTwinoidPayload
	if err := c.BodyParser(&payload); err != nil {
		return ct.respondBadInput(c, err)
	}
	ref, err := payload.ref()
	if err != nil {
		return ct.respondBadInput(c, err)
	}

	view, err := ct.users.UnlinkFromTwinoid(c.UserContext(), requestAuth(c), user.UnlinkFromTwinoidOptions{
		UserID: id,
		Ref:    ref,
	})
	if err != nil {
		return ct.respondError(c, err)
	}
	return c.JSON(view)
}
