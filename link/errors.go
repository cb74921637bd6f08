package link

import "github.com/goliatone/go-errors"

const (
	TextCodeRemoteAccountInUse = "link_remote_account_in_use"
	TextCodeUserAlreadyLinked  = "link_user_already_linked"
	TextCodeLinkMismatch       = "link_mismatch"
)

// ErrRemoteAccountInUse is returned by a store touch when the remote user
// is actively linked to a different canonical user. The store's atomic
// constraint check is the only defense against the concurrent first-link
// race; the service never pre-checks.
var ErrRemoteAccountInUse = errors.New("remote account already linked to another user", errors.CategoryConflict).
	WithTextCode(TextCodeRemoteAccountInUse).
	WithCode(errors.CodeConflict)

// ErrUserAlreadyLinked is returned by a store touch when the canonical
// user already holds an active link to a different remote user in the
// same realm.
var ErrUserAlreadyLinked = errors.New("user already linked in this realm", errors.CategoryConflict).
	WithTextCode(TextCodeUserAlreadyLinked).
	WithCode(errors.CodeConflict)

// ErrLinkMismatch is returned by a store delete when the named pair does
// not match the active link of the realm.
var ErrLinkMismatch = errors.New("link does not match the active pair", errors.CategoryConflict).
	WithTextCode(TextCodeLinkMismatch).
	WithCode(errors.CodeConflict)
