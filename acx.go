package etwin

import "github.com/google/uuid"

// AuthKind discriminates the caller of an authorization-checked operation.
type AuthKind string

const (
	// AuthKindGuest is an unauthenticated caller.
	AuthKindGuest AuthKind = "guest"
	// AuthKindUser is a caller authenticated as a canonical user.
	AuthKindUser AuthKind = "user"
	// AuthKindSystem is an internal caller with full privileges.
	AuthKindSystem AuthKind = "system"
)

// AuthContext is the authenticated identity attached to every federation
// call. It is a value: build one with GuestAuth, UserAuth or SystemAuth.
type AuthContext struct {
	Kind            AuthKind
	User            *ShortUser
	IsAdministrator bool
}

func GuestAuth() AuthContext {
	return AuthContext{Kind: AuthKindGuest}
}

func UserAuth(user ShortUser, isAdministrator bool) AuthContext {
	return AuthContext{Kind: AuthKindUser, User: &user, IsAdministrator: isAdministrator}
}

func SystemAuth() AuthContext {
	return AuthContext{Kind: AuthKindSystem, IsAdministrator: true}
}

func (a AuthContext) IsGuest() bool {
	return a.Kind == AuthKindGuest || a.Kind == ""
}

// IsAdmin reports whether the caller holds administrator privileges.
func (a AuthContext) IsAdmin() bool {
	switch a.Kind {
	case AuthKindSystem:
		return true
	case AuthKindUser:
		return a.IsAdministrator
	default:
		return false
	}
}

// Is reports whether the caller is the given canonical user.
func (a AuthContext) Is(userID uuid.UUID) bool {
	return a.Kind == AuthKindUser && a.User != nil && a.User.ID == userID
}

// CanActAs reports whether the caller may perform a self-or-admin operation
// targeting the given user.
func (a AuthContext) CanActAs(userID uuid.UUID) bool {
	return a.Is(userID) || a.IsAdmin()
}

// Actor returns the reference recorded as the acting user for mutations.
// System callers act as the nil user.
func (a AuthContext) Actor() UserRef {
	if a.Kind == AuthKindUser && a.User != nil {
		return a.User.Ref()
	}
	return UserRef{}
}
