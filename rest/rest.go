// Package rest exposes the identity subsystem over a thin fiber JSON
// surface: register-or-login endpoints, link management and user views.
// Authorization decisions stay in the services; handlers only decode
// payloads and translate errors.
package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/auth"
	"github.com/eternaltwin/etwin/user"
)

type Config struct {
	Auth   *auth.Service
	Users  *user.Service
	Signer *auth.TokenSigner
	Logger etwin.Logger
}

// Controller holds the HTTP handlers. Build one with NewController and
// mount it with RegisterRoutes.
type Controller struct {
	auth   *auth.Service
	users  *user.Service
	signer *auth.TokenSigner
	logger etwin.Logger
}

func NewController(cfg Config) (*Controller, error) {
	switch {
	case cfg.Auth == nil:
		return nil, errors.New("rest: Auth is required", errors.CategoryBadInput)
	case cfg.Users == nil:
		return nil, errors.New("rest: Users is required", errors.CategoryBadInput)
	case cfg.Signer == nil:
		return nil, errors.New("rest: Signer is required", errors.CategoryBadInput)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = etwin.DefaultLogger()
	}
	return &Controller{
		auth:   cfg.Auth,
		users:  cfg.Users,
		signer: cfg.Signer,
		logger: logger,
	}, nil
}

func (ct *Controller) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1", ct.loadAuth)

	api.Post("/auth/etwin", ct.LoginWithCredentials)
	api.Post("/auth/dinoparc", ct.LoginWithDinoparc)
	api.Post("/auth/hammerfest", ct.LoginWithHammerfest)
	api.Post("/auth/twinoid", ct.LoginWithTwinoid)
	api.Delete("/auth/session", ct.Logout)

	api.Get("/users/:user_id", ct.GetUser)
	api.Get("/users/:user_id/links", ct.GetUserLinks)
	api.Patch("/users/:user_id", ct.UpdateUser)

	api.Put("/users/:user_id/links/dinoparc", ct.LinkDinoparc)
	api.Delete("/users/:user_id/links/dinoparc", ct.UnlinkDinoparc)
	api.Put("/users/:user_id/links/hammerfest", ct.LinkHammerfest)
	api.Delete("/users/:user_id/links/hammerfest", ct.UnlinkHammerfest)
	api.Put("/users/:user_id/links/twinoid", ct.LinkTwinoid)
	api.Delete("/users/:user_id/links/twinoid", ct.UnlinkTwinoid)
}

type errorBody struct {
	Message  string `json:"message"`
	TextCode string `json:"text_code,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// respondError translates a service error into a JSON error response,
// using the rich error's code as the HTTP status.
func (ct *Controller) respondError(c *fiber.Ctx, err error) error {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		rich = errors.Wrap(err, errors.CategoryInternal, "internal server error").
			WithCode(errors.CodeInternal)
	}

	status := rich.Code
	if status < fiber.StatusBadRequest || status > 599 {
		// No explicit code: fall back on the category.
		switch rich.Category {
		case errors.CategoryAuth:
			status = fiber.StatusUnauthorized
		case errors.CategoryAuthz:
			status = fiber.StatusForbidden
		case errors.CategoryNotFound:
			status = fiber.StatusNotFound
		case errors.CategoryConflict:
			status = fiber.StatusConflict
		case errors.CategoryBadInput, errors.CategoryValidation:
			status = fiber.StatusBadRequest
		default:
			status = fiber.StatusInternalServerError
		}
	}
	if status >= fiber.StatusInternalServerError {
		ct.logger.Error("rest: %s: %v", c.Path(), err)
	}

	message := rich.Message
	if status == fiber.StatusInternalServerError {
		message = "internal server error"
	}

	return c.Status(status).JSON(errorResponse{Error: errorBody{
		Message:  message,
		TextCode: rich.TextCode,
	}})
}

// respondBadInput is the shared translation for payload decode and
// validation failures.
func (ct *Controller) respondBadInput(c *fiber.Ctx, err error) error {
	var rich *errors.Error
	if errors.As(err, &rich) && rich.Code >= fiber.StatusBadRequest {
		return ct.respondError(c, err)
	}
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: errorBody{
		Message:  err.Error(),
		TextCode: "bad_request",
	}})
}
