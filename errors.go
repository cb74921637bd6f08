package etwin

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthorized     = "unauthorized"
	TextCodeForbidden        = "forbidden"
	TextCodeUserNotFound     = "user_not_found"
	TextCodeRemoteAuthFailed = "remote_auth_failed"
	TextCodeStoreInvariant   = "store_invariant_violation"
)

// ErrUnauthorized is returned when a mutation is attempted by a guest.
var ErrUnauthorized = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when an authenticated caller lacks the privilege
// for the targeted operation.
var ErrForbidden = errors.New("insufficient privileges", errors.CategoryAuth).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrUserNotFound is returned when the targeted canonical user does not exist.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrRemoteAuthFailed is the terminal result of a link or login attempt whose
// remote credential check failed. It is never retried by the core.
var ErrRemoteAuthFailed = errors.New("remote authentication failed", errors.CategoryAuth).
	WithTextCode(TextCodeRemoteAuthFailed).
	WithCode(errors.CodeUnauthorized)

// StoreInvariant builds the fatal-class error raised when persisted state is
// internally inconsistent, such as a link pointing at a user the user store
// no longer knows. It is never caught by the core.
func StoreInvariant(msg string) error {
	return errors.New(msg, errors.CategoryInternal).
		WithTextCode(TextCodeStoreInvariant)
}

// WrapStoreInvariant annotates a store error as an invariant violation.
func WrapStoreInvariant(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryInternal, msg).
		WithTextCode(TextCodeStoreInvariant)
}

// IsStoreInvariant reports whether err belongs to the fatal invariant class.
func IsStoreInvariant(err error) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == TextCodeStoreInvariant
}
