// Package dinoparc defines the Dinoparc side of the federation: servers,
// user ids, the client and store contracts, and the archival payloads.
package dinoparc

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// Server is one of the three Dinoparc realms.
type Server string

const (
	DinoparcCom   Server = "dinoparc.com"
	EnDinoparcCom Server = "en.dinoparc.com"
	SpDinoparcCom Server = "sp.dinoparc.com"
)

// Servers lists every Dinoparc realm.
func Servers() []Server {
	return []Server{DinoparcCom, EnDinoparcCom, SpDinoparcCom}
}

func (s Server) IsValid() bool {
	switch s {
	case DinoparcCom, EnDinoparcCom, SpDinoparcCom:
		return true
	default:
		return false
	}
}

// ErrInvalidServer is returned when a server value is not a Dinoparc realm.
var ErrInvalidServer = errors.New("invalid dinoparc server", errors.CategoryBadInput).
	WithTextCode("dinoparc_invalid_server").
	WithCode(errors.CodeBadRequest)

func ParseServer(raw string) (Server, error) {
	s := Server(raw)
	if !s.IsValid() {
		return "", ErrInvalidServer
	}
	return s, nil
}

// UserId is a Dinoparc user id: a decimal string, 1 to 9 digits.
type UserId string

var reUserId = regexp.MustCompile(`^[0-9]{1,9}$`)

// ErrInvalidUserId is returned for malformed Dinoparc user ids.
var ErrInvalidUserId = errors.New("invalid dinoparc user id", errors.CategoryBadInput).
	WithTextCode("dinoparc_invalid_user_id").
	WithCode(errors.CodeBadRequest)

func (id UserId) Validate() error {
	if err := validation.Validate(string(id),
		validation.Required,
		validation.Match(reUserId),
	); err != nil {
		return ErrInvalidUserId
	}
	return nil
}

// UserRef identifies a remote user within one Dinoparc realm.
type UserRef struct {
	Server Server `json:"server"`
	ID     UserId `json:"id"`
}

func (r UserRef) Validate() error {
	if !r.Server.IsValid() {
		return ErrInvalidServer
	}
	return r.ID.Validate()
}

// ShortUser is the minimal Dinoparc user record kept by the store.
type ShortUser struct {
	Server   Server `json:"server"`
	ID       UserId `json:"id"`
	Username string `json:"username"`
}

func (u ShortUser) Ref() UserRef {
	return UserRef{Server: u.Server, ID: u.ID}
}

// Credentials authenticate against a Dinoparc server.
type Credentials struct {
	Server   Server `json:"server"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	if !c.Server.IsValid() {
		return ErrInvalidServer
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required, validation.Length(1, 32)),
		validation.Field(&c.Password, validation.Required),
	)
}

// SessionKey is an opaque Dinoparc session token.
type SessionKey string

// Session is a live remote session plus the short record of its owner.
type Session struct {
	Key  SessionKey `json:"key"`
	User ShortUser  `json:"user"`
}
