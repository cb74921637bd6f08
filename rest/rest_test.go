package rest_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	etwin "github.com/eternaltwin/etwin"
	"github.com/eternaltwin/etwin/archive"
	"github.com/eternaltwin/etwin/auth"
	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/link"
	"github.com/eternaltwin/etwin/memory"
	"github.com/eternaltwin/etwin/rest"
	"github.com/eternaltwin/etwin/user"
)

type restFixture struct {
	app              *fiber.App
	authService      *auth.Service
	hammerfestClient *memory.HammerfestClient
	dinoparcClient   *memory.DinoparcClient
	runner           *archive.Runner
}

func newRestFixture(t *testing.T) *restFixture {
	t.Helper()

	users := memory.NewUserStore()
	linkStore := memory.NewLinkStore()
	dinoparcStore := memory.NewDinoparcStore()
	hammerfestStore := memory.NewHammerfestStore()
	twinoidStore := memory.NewTwinoidStore()
	dinoparcClient := memory.NewDinoparcClient()
	hammerfestClient := memory.NewHammerfestClient()
	twinoidClient := memory.NewTwinoidClient()
	tokens := memory.NewTokenService()
	sessions := memory.NewSessionStore()
	runner := archive.NewRunner()
	hasher := etwin.NewBcryptHasher(4)

	links := link.NewService(linkStore, users, dinoparcStore, hammerfestStore, twinoidStore)

	authService, err := auth.NewService(auth.ServiceConfig{
		Uuid:             memory.NewUuidGenerator(),
		Users:            users,
		Links:            links,
		Sessions:         sessions,
		Tokens:           tokens,
		Password:         hasher,
		Runner:           runner,
		DinoparcClient:   dinoparcClient,
		DinoparcStore:    dinoparcStore,
		HammerfestClient: hammerfestClient,
		HammerfestStore:  hammerfestStore,
		TwinoidClient:    twinoidClient,
		TwinoidStore:     twinoidStore,
	})
	require.NoError(t, err)

	userService, err := user.NewService(user.ServiceConfig{
		Users:            users,
		Links:            links,
		Tokens:           tokens,
		Password:         hasher,
		Runner:           runner,
		DinoparcClient:   dinoparcClient,
		DinoparcStore:    dinoparcStore,
		HammerfestClient: hammerfestClient,
		HammerfestStore:  hammerfestStore,
		TwinoidClient:    twinoidClient,
		TwinoidStore:     twinoidStore,
	})
	require.NoError(t, err)

	signer := auth.NewTokenSigner([]byte("test-signing-key"), "etwin", nil, time.Hour, nil)
	controller, err := rest.NewController(rest.Config{
		Auth:   authService,
		Users:  userService,
		Signer: signer,
	})
	require.NoError(t, err)

	app := fiber.New()
	controller.RegisterRoutes(app)

	return &restFixture{
		app:              app,
		authService:      authService,
		hammerfestClient: hammerfestClient,
		dinoparcClient:   dinoparcClient,
		runner:           runner,
	}
}

func (f *restFixture) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

type loginBody struct {
	User struct {
		ID              string `json:"id"`
		DisplayName     string `json:"display_name"`
		IsAdministrator bool   `json:"is_administrator"`
	} `json:"user"`
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
	IsNewUser   bool   `json:"is_new_user"`
	AccessToken string `json:"access_token"`
}

func (f *restFixture) loginHammerfest(t *testing.T, username, password string) loginBody {
	t.Helper()
	resp := f.request(t, fiber.MethodPost, "/api/v1/auth/hammerfest", "", fiber.Map{
		"server":   string(hammerfest.HammerfestFr),
		"username": username,
		"password": password,
	})
	require.Contains(t, []int{fiber.StatusOK, fiber.StatusCreated}, resp.StatusCode)
	var body loginBody
	decodeBody(t, resp, &body)
	return body
}

func TestRest_LoginWithHammerfest(t *testing.T) {
	f := newRestFixture(t)
	f.hammerfestClient.CreateUser(hammerfest.HammerfestFr, "123", "alice", "hunter2")

	resp := f.request(t, fiber.MethodPost, "/api/v1/auth/hammerfest", "", fiber.Map{
		"server":   "hammerfest.fr",
		"username": "alice",
		"password": "hunter2",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body loginBody
	decodeBody(t, resp, &body)
	assert.True(t, body.IsNewUser)
	assert.Equal(t, "alice", body.User.DisplayName)
	assert.NotEmpty(t, body.AccessToken)
	assert.NotEmpty(t, body.Session.ID)

	// A second login with the same account resolves the same user.
	again := f.loginHammerfest(t, "alice", "hunter2")
	assert.False(t, again.IsNewUser)
	assert.Equal(t, body.User.ID, again.User.ID)
}

func TestRest_LoginWithHammerfest_BadPassword(t *testing.T) {
	f := newRestFixture(t)
	f.hammerfestClient.CreateUser(hammerfest.HammerfestFr, "123", "alice", "hunter2")

	resp := f.request(t, fiber.MethodPost, "/api/v1/auth/hammerfest", "", fiber.Map{
		"server":   "hammerfest.fr",
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body struct {
		Error struct {
			TextCode string `json:"text_code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "remote_auth_failed", body.Error.TextCode)
}

func TestRest_LoginWithHammerfest_InvalidServer(t *testing.T) {
	f := newRestFixture(t)

	resp := f.request(t, fiber.MethodPost, "/api/v1/auth/hammerfest", "", fiber.Map{
		"server":   "not-a-realm",
		"username": "alice",
		"password": "hunter2",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRest_LoginWithDinoparc(t *testing.T) {
	f := newRestFixture(t)
	f.dinoparcClient.CreateUser(dinoparc.DinoparcCom, "1", "bob", "secret")

	resp := f.request(t, fiber.MethodPost, "/api/v1/auth/dinoparc", "", fiber.Map{
		"server":   "dinoparc.com",
		"username": "bob",
		"password": "secret",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body loginBody
	decodeBody(t, resp, &body)
	assert.Equal(t, "bob", body.User.DisplayName)
}

func TestRest_GetUserView(t *testing.T) {
	f := newRestFixture(t)
	f.hammerfestClient.CreateUser(hammerfest.HammerfestFr, "123", "alice", "hunter2")
	login := f.loginHammerfest(t, "alice", "hunter2")
	f.runner.Wait()

	resp := f.request(t, fiber.MethodGet, "/api/v1/users/"+login.User.ID, "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var view struct {
		User struct {
			DisplayName string `json:"display_name"`
		} `json:"user"`
		Links struct {
			HammerfestFr struct {
				Current *struct {
					User struct {
						Username string `json:"username"`
					} `json:"user"`
				} `json:"current"`
			} `json:"hammerfest_fr"`
		} `json:"links"`
	}
	decodeBody(t, resp, &view)
	assert.Equal(t, "alice", view.User.DisplayName)
	require.NotNil(t, view.Links.HammerfestFr.Current)
	assert.Equal(t, "alice", view.Links.HammerfestFr.Current.User.Username)
}

func TestRest_GetUser_NotFound(t *testing.T) {
	f := newRestFixture(t)

	resp := f.request(t, fiber.MethodGet, "/api/v1/users/00000000-0000-4000-8000-000000000001", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = f.request(t, fiber.MethodGet, "/api/v1/users/not-a-uuid", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRest_LinkDinoparc_RequiresAuth(t *testing.T) {
	f := newRestFixture(t)
	f.hammerfestClient.CreateUser(hammerfest.HammerfestFr, "123", "alice", "hunter2")
	f.dinoparcClient.CreateUser(dinoparc.DinoparcCom, "1", "alice", "dino-secret")
	login := f.loginHammerfest(t, "alice", "hunter2")

	path := "/api/v1/users/" + login.User.ID + "/links/dinoparc"
	payload := fiber.Map{
		"server":   "dinoparc.com",
		"username": "alice",
		"password": "dino-secret",
	}

	// Guests cannot link.
	resp := f.request(t, fiber.MethodPut, path, "", payload)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// The owner can.
	resp = f.request(t, fiber.MethodPut, path, login.AccessToken, payload)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var view struct {
		Current *struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"current"`
	}
	decodeBody(t, resp, &view)
	require.NotNil(t, view.Current)
	assert.Equal(t, "1", view.Current.User.ID)
}

func TestRest_UnlinkDinoparc(t *testing.T) {
	f := newRestFixture(t)
	f.hammerfestClient.CreateUser(hammerfest.HammerfestFr, "123", "alice", "hunter2")
	f.dinoparcClient.CreateUser(dinoparc.DinoparcCom, "1", "alice", "dino-secret")
	login := f.loginHammerfest(t, "alice", "hunter2")

	path := "/api/v1/users/" + login.User.ID + "/links/dinoparc"
	resp := f.request(t, fiber.MethodPut, path, login.AccessToken, fiber.Map{
		"server":   "dinoparc.com",
		"username": "alice",
		"password": "dino-secret",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, fiber.MethodDelete, path, login.AccessToken, fiber.Map{
		"server":    "dinoparc.com",
		"remote_id": "1",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var view struct {
		Current *json.RawMessage `json:"current"`
		Old     []json.RawMessage `json:"old"`
	}
	decodeBody(t, resp, &view)
	assert.Nil(t, view.Current)
	assert.Len(t, view.Old, 1)
}

func TestRest_UpdateUser(t *testing.T) {
	f := newRestFixture(t)
	f.hammerfestClient.CreateUser(hammerfest.HammerfestFr, "123", "alice", "hunter2")
	login := f.loginHammerfest(t, "alice", "hunter2")

	resp := f.request(t, fiber.MethodPatch, "/api/v1/users/"+login.User.ID, login.AccessToken, fiber.Map{
		"display_name": "Alice the Great",
		"username":     "alice",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var view struct {
		User struct {
			DisplayName string `json:"display_name"`
			Username    string `json:"username"`
		} `json:"user"`
	}
	decodeBody(t, resp, &view)
	assert.Equal(t, "Alice the Great", view.User.DisplayName)
	assert.Equal(t, "alice", view.User.Username)

	// Another user cannot patch alice.
	f.hammerfestClient.CreateUser(hammerfest.HammerfestFr, "456", "mallory", "pw")
	other := f.loginHammerfest(t, "mallory", "pw")
	resp = f.request(t, fiber.MethodPatch, "/api/v1/users/"+login.User.ID, other.AccessToken, fiber.Map{
		"display_name": "Hacked",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestRest_LoginWithEtwinCredentials(t *testing.T) {
	f := newRestFixture(t)
	f.hammerfestClient.CreateUser(hammerfest.HammerfestFr, "123", "alice", "hunter2")
	login := f.loginHammerfest(t, "alice", "hunter2")

	// Claim the account with a username and password, then log in with them.
	resp := f.request(t, fiber.MethodPatch, "/api/v1/users/"+login.User.ID, login.AccessToken, fiber.Map{
		"username": "alice",
		"password": "etwin-password",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, fiber.MethodPost, "/api/v1/auth/etwin", "", fiber.Map{
		"username": "alice",
		"password": "etwin-password",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body loginBody
	decodeBody(t, resp, &body)
	assert.Equal(t, login.User.ID, body.User.ID)
	assert.False(t, body.IsNewUser)

	resp = f.request(t, fiber.MethodPost, "/api/v1/auth/etwin", "", fiber.Map{
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRest_Logout(t *testing.T) {
	f := newRestFixture(t)
	f.hammerfestClient.CreateUser(hammerfest.HammerfestFr, "123", "alice", "hunter2")
	login := f.loginHammerfest(t, "alice", "hunter2")

	resp := f.request(t, fiber.MethodDelete, "/api/v1/auth/session", login.AccessToken, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Without a token, logout is unauthorized.
	resp = f.request(t, fiber.MethodDelete, "/api/v1/auth/session", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The revoked session no longer authenticates link operations.
	resp = f.request(t, fiber.MethodPut,
		fmt.Sprintf("/api/v1/users/%s/links/dinoparc", login.User.ID),
		login.AccessToken, fiber.Map{
			"server":   "dinoparc.com",
			"username": "alice",
			"password": "pw",
		})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRest_MalformedToken(t *testing.T) {
	f := newRestFixture(t)

	resp := f.request(t, fiber.MethodGet, "/api/v1/users/00000000-0000-4000-8000-000000000001", "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
