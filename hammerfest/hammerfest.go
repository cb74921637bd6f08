// Package hammerfest defines the Hammerfest side of the federation.
package hammerfest

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// Server is one of the three Hammerfest realms.
type Server string

const (
	HammerfestFr Server = "hammerfest.fr"
	HammerfestEs Server = "hammerfest.es"
	HfestNet     Server = "hfest.net"
)

func Servers() []Server {
	return []Server{HammerfestFr, HammerfestEs, HfestNet}
}

func (s Server) IsValid() bool {
	switch s {
	case HammerfestFr, HammerfestEs, HfestNet:
		return true
	default:
		return false
	}
}

// ErrInvalidServer is returned when a server value is not a Hammerfest realm.
var ErrInvalidServer = errors.New("invalid hammerfest server", errors.CategoryBadInput).
	WithTextCode("hammerfest_invalid_server").
	WithCode(errors.CodeBadRequest)

func ParseServer(raw string) (Server, error) {
	s := Server(raw)
	if !s.IsValid() {
		return "", ErrInvalidServer
	}
	return s, nil
}

// UserId is a Hammerfest user id: a decimal string.
type UserId string

var reUserId = regexp.MustCompile(`^[0-9]{1,9}$`)

// ErrInvalidUserId is returned for malformed Hammerfest user ids.
var ErrInvalidUserId = errors.New("invalid hammerfest user id", errors.CategoryBadInput).
	WithTextCode("hammerfest_invalid_user_id").
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

// UserRef identifies a remote user within one Hammerfest realm.
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

// ShortUser is the minimal Hammerfest user record kept by the store.
type ShortUser struct {
	Server   Server `json:"server"`
	ID       UserId `json:"id"`
	Username string `json:"username"`
}

func (u ShortUser) Ref() UserRef {
	return UserRef{Server: u.Server, ID: u.ID}
}

// Credentials authenticate against a Hammerfest server.
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
		validation.Field(&c.Username, validation.Required, validation.Length(1, 20)),
		validation.Field(&c.Password, validation.Required),
	)
}

// SessionKey is a Hammerfest session cookie value: 26 lowercase
// alphanumeric characters.
type SessionKey string

var reSessionKey = regexp.MustCompile(`^[0-9a-z]{26}$`)

// ErrInvalidSessionKey is returned for malformed session keys.
var ErrInvalidSessionKey = errors.New("invalid hammerfest session key", errors.CategoryBadInput).
	WithTextCode("hammerfest_invalid_session_key").
	WithCode(errors.CodeBadRequest)

func (k SessionKey) Validate() error {
	if err := validation.Validate(string(k),
		validation.Required,
		validation.Match(reSessionKey),
	); err != nil {
		return ErrInvalidSessionKey
	}
	return nil
}

// Session is a live remote session plus the short record of its owner.
type Session struct {
	Key  SessionKey `json:"key"`
	User ShortUser  `json:"user"`
}
