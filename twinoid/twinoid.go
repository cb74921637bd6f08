// Package twinoid defines the Twinoid side of the federation. Twinoid has
// a single global namespace, so there is no server variant.
package twinoid

import (
	"context"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// UserId is a Twinoid user id: a decimal string.
type UserId string

var reUserId = regexp.MustCompile(`^[0-9]{1,10}$`)

// ErrInvalidUserId is returned for malformed Twinoid user ids.
var ErrInvalidUserId = errors.New("invalid twinoid user id", errors.CategoryBadInput).
	WithTextCode("twinoid_invalid_user_id").
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

// UserRef identifies a Twinoid user.
type UserRef struct {
	ID UserId `json:"id"`
}

func (r UserRef) Validate() error {
	return r.ID.Validate()
}

// ShortUser is the minimal Twinoid user record kept by the store.
type ShortUser struct {
	ID          UserId `json:"id"`
	DisplayName string `json:"display_name"`
}

func (u ShortUser) Ref() UserRef {
	return UserRef{ID: u.ID}
}

// AccessToken is a Twinoid OAuth access token.
type AccessToken string

// User is the record returned by the authenticated "me" endpoint.
type User struct {
	ID          UserId `json:"id"`
	DisplayName string `json:"name"`
}

func (u User) Short() ShortUser {
	return ShortUser{ID: u.ID, DisplayName: u.DisplayName}
}

// Client is the contract for the Twinoid API.
type Client interface {
	// GetMe exchanges an OAuth access token for the token owner's record.
	// An invalid or expired token is reported as an error.
	GetMe(ctx context.Context, token AccessToken) (*User, error)
}

// ArchivedUser is a stored short user plus store bookkeeping.
type ArchivedUser struct {
	ShortUser
	ArchivedAt time.Time `json:"archived_at"`
}

// Store persists Twinoid data on the canonical side. GetShortUser returns
// (nil, nil) for unknown users.
type Store interface {
	GetShortUser(ctx context.Context, ref UserRef) (*ShortUser, error)
	TouchShortUser(ctx context.Context, short ShortUser) (*ArchivedUser, error)
}
