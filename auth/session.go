// Package auth implements the entry points that turn a remote credential
// into a canonical-user session, auto-registering a canonical user on
// first contact with an unknown remote account.
package auth

import (
	"context"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/google/uuid"
)

// Session is an issued canonical-user session.
type Session struct {
	ID         uuid.UUID       `json:"id"`
	User       etwin.ShortUser `json:"user"`
	CreatedAt  time.Time       `json:"created_at"`
	AccessedAt time.Time       `json:"accessed_at"`
}

// SessionStore persists sessions. GetAndTouch returns (nil, nil) for
// unknown or revoked sessions.
type SessionStore interface {
	Create(ctx context.Context, id uuid.UUID, user etwin.ShortUser) (*Session, error)
	GetAndTouch(ctx context.Context, id uuid.UUID) (*Session, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}

// UserAndSession is the result of a successful authentication.
type UserAndSession struct {
	User    *etwin.User `json:"user"`
	Session *Session    `json:"session"`
	// IsNewUser reports whether this authentication auto-registered the
	// canonical user.
	IsNewUser bool `json:"is_new_user"`
}
