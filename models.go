package etwin

import (
	"context"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// UserRef identifies a canonical user by id only.
type UserRef struct {
	ID uuid.UUID `json:"id"`
}

// ShortUser is the display-oriented projection of a canonical user.
type ShortUser struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
}

func (u ShortUser) Ref() UserRef {
	return UserRef{ID: u.ID}
}

// User is the complete canonical-user record, minus credentials.
type User struct {
	ID              uuid.UUID  `json:"id"`
	DisplayName     string     `json:"display_name"`
	Username        string     `json:"username,omitempty"`
	IsAdministrator bool       `json:"is_administrator"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

func (u User) Short() ShortUser {
	return ShortUser{ID: u.ID, DisplayName: u.DisplayName}
}

func (u User) Ref() UserRef {
	return UserRef{ID: u.ID}
}

// UserWithPassword is the sensitive projection used by credential checks.
type UserWithPassword struct {
	User
	PasswordHash string `json:"-"`
}

var (
	reDisplayName = regexp.MustCompile(`^[\p{L}0-9 _-]{1,64}$`)
	reUsername    = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)
)

// ValidateDisplayName checks a canonical-user display name.
func ValidateDisplayName(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.Match(reDisplayName),
	)
}

// ValidateUsername checks a canonical-user login username.
func ValidateUsername(username string) error {
	return validation.Validate(username,
		validation.Required,
		validation.Match(reUsername),
	)
}

// CreateUserOptions holds the fields persisted for a new canonical user.
// The id is allocated by the caller through its UuidGenerator.
type CreateUserOptions struct {
	ID           uuid.UUID
	DisplayName  string
	Username     string
	PasswordHash string
}

// UpdateUserPatch carries the optional changes applied by UpdateUser. The
// password is cleartext here; services hash it before it reaches a store.
type UpdateUserPatch struct {
	DisplayName *string
	Username    *string
	Password    *string
}

func (p UpdateUserPatch) IsEmpty() bool {
	return p.DisplayName == nil && p.Username == nil && p.Password == nil
}

// UpdateStoreUserOptions is the store-level form of an update: the password
// has already been hashed.
type UpdateStoreUserOptions struct {
	Ref          UserRef
	Actor        UserRef
	DisplayName  *string
	Username     *string
	PasswordHash *string
}

// UserStore persists canonical users. Lookups return (nil, nil) when the
// user does not exist; errors are reserved for store failures.
type UserStore interface {
	GetShortUser(ctx context.Context, ref UserRef) (*ShortUser, error)
	GetUser(ctx context.Context, ref UserRef) (*User, error)
	GetUserWithPassword(ctx context.Context, ref UserRef) (*UserWithPassword, error)
	GetUserByUsername(ctx context.Context, username string) (*UserWithPassword, error)
	CreateUser(ctx context.Context, opts CreateUserOptions) (*User, error)
	UpdateUser(ctx context.Context, opts UpdateStoreUserOptions) (*User, error)
}
