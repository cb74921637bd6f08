package rest

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/twinoid"
)

type etwinAuthPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (p etwinAuthPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, validation.Required),
		validation.Field(&p.Password, validation.Required),
	)
}

type dinoparcCredentialsPayload struct {
	Server   string `json:"server"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (p dinoparcCredentialsPayload) credentials() (dinoparc.Credentials, error) {
	server, err := dinoparc.ParseServer(p.Server)
	if err != nil {
		return dinoparc.Credentials{}, err
	}
	creds := dinoparc.Credentials{
		Server:   server,
		Username: p.Username,
		Password: p.Password,
	}
	return creds, creds.Validate()
}

// hammerfestAuthPayload accepts either a username/password pair or an
// existing session key.
type hammerfestAuthPayload struct {
	Server     string `json:"server"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	SessionKey string `json:"session_key,omitempty"`
}

func (p hammerfestAuthPayload) hasSessionKey() bool {
	return p.SessionKey != ""
}

func (p hammerfestAuthPayload) server() (hammerfest.Server, error) {
	return hammerfest.ParseServer(p.Server)
}

func (p hammerfestAuthPayload) credentials() (hammerfest.Credentials, error) {
	server, err := p.server()
	if err != nil {
		return hammerfest.Credentials{}, err
	}
	creds := hammerfest.Credentials{
		Server:   server,
		Username: p.Username,
		Password: p.Password,
	}
	return creds, creds.Validate()
}

type twinoidOauthPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	// ExpiresIn is the token lifetime in seconds, as reported by the
	// OAuth token endpoint.
	ExpiresIn int64 `json:"expires_in,omitempty"`
}

func (p twinoidOauthPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.AccessToken, validation.Required),
	)
}

func (p twinoidOauthPayload) accessToken() twinoid.AccessToken {
	return twinoid.AccessToken(p.AccessToken)
}

func (p twinoidOauthPayload) expirationTime() time.Time {
	if p.ExpiresIn <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(p.ExpiresIn) * time.Second)
}

// linkDinoparcPayload drives PUT /users/:user_id/links/dinoparc. With
// credentials it is a self-service link; with only a remote id it is an
// administrator reconciliation link.
type linkDinoparcPayload struct {
	Server   string `json:"server"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	RemoteID string `json:"remote_id,omitempty"`
}

func (p linkDinoparcPayload) isRef() bool {
	return p.RemoteID != ""
}

type linkHammerfestPayload struct {
	Server     string `json:"server"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	SessionKey string `json:"session_key,omitempty"`
	RemoteID   string `json:"remote_id,omitempty"`
}

func (p linkHammerfestPayload) isRef() bool {
	return p.RemoteID != ""
}

type linkTwinoidPayload struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RemoteID     string `json:"remote_id,omitempty"`
}

func (p linkTwinoidPayload) isRef() bool {
	return p.RemoteID != ""
}

type unlinkDinoparcPayload struct {
	Server   string `json:"server"`
	RemoteID string `json:"remote_id"`
}

func (p unlinkDinoparcPayload) ref() (dinoparc.UserRef, error) {
	server, err := dinoparc.ParseServer(p.Server)
	if err != nil {
		return dinoparc.UserRef{}, err
	}
	ref := dinoparc.UserRef{Server: server, ID: dinoparc.UserId(p.RemoteID)}
	return ref, ref.Validate()
}

type unlinkHammerfestPayload struct {
	Server   string `json:"server"`
	RemoteID string `json:"remote_id"`
}

func (p unlinkHammerfestPayload) ref() (hammerfest.UserRef, error) {
	server, err := hammerfest.ParseServer(p.Server)
	if err != nil {
		return hammerfest.UserRef{}, err
	}
	ref := hammerfest.UserRef{Server: server, ID: hammerfest.UserId(p.RemoteID)}
	return ref, ref.Validate()
}

type unlinkTwinoidPayload struct {
	RemoteID string `json:"remote_id"`
}

func (p unlinkTwinoidPayload) ref() (twinoid.UserRef, error) {
	ref := twinoid.UserRef{ID: twinoid.UserId(p.RemoteID)}
	return ref, ref.Validate()
}

type updateUserPayload struct {
	DisplayName *string `json:"display_name,omitempty"`
	Username    *string `json:"username,omitempty"`
	Password    *string `json:"password,omitempty"`
}
