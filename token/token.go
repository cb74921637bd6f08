// Package token defines the contract for persisting remote sessions and
// OAuth tokens so archival and re-authentication can reuse them.
package token

import (
	"context"
	"time"

	"github.com/eternaltwin/etwin/dinoparc"
	"github.com/eternaltwin/etwin/hammerfest"
	"github.com/eternaltwin/etwin/twinoid"
)

// DinoparcSession is a stored Dinoparc session key.
type DinoparcSession struct {
	Key        dinoparc.SessionKey `json:"-"`
	User       dinoparc.UserRef    `json:"user"`
	CreatedAt  time.Time           `json:"created_at"`
	AccessedAt time.Time           `json:"accessed_at"`
}

// HammerfestSession is a stored Hammerfest session key.
type HammerfestSession struct {
	Key        hammerfest.SessionKey `json:"-"`
	User       hammerfest.UserRef    `json:"user"`
	CreatedAt  time.Time             `json:"created_at"`
	AccessedAt time.Time             `json:"accessed_at"`
}

// TouchTwinoidOauthOptions stores a fresh OAuth token pair for a Twinoid
// user.
type TouchTwinoidOauthOptions struct {
	AccessToken    twinoid.AccessToken
	RefreshToken   string
	ExpirationTime time.Time
	TwinoidUserID  twinoid.UserId
}

// TwinoidOauth is a stored Twinoid OAuth token pair.
type TwinoidOauth struct {
	AccessToken    twinoid.AccessToken `json:"-"`
	RefreshToken   string              `json:"-"`
	ExpirationTime time.Time           `json:"expiration_time"`
	User           twinoid.UserRef     `json:"user"`
}

// Service persists remote-service tokens. Touch operations are idempotent:
// re-touching a known key refreshes its access time; a key that moved to a
// different remote user is rebound. Revoking an unknown key is a no-op.
type Service interface {
	TouchDinoparc(ctx context.Context, server dinoparc.Server, key dinoparc.SessionKey, userID dinoparc.UserId) (*DinoparcSession, error)
	RevokeDinoparc(ctx context.Context, server dinoparc.Server, key dinoparc.SessionKey) error
	GetDinoparc(ctx context.Context, ref dinoparc.UserRef) (*DinoparcSession, error)

	TouchHammerfest(ctx context.Context, server hammerfest.Server, key hammerfest.SessionKey, userID hammerfest.UserId) (*HammerfestSession, error)
	RevokeHammerfest(ctx context.Context, server hammerfest.Server, key hammerfest.SessionKey) error
	GetHammerfest(ctx context.Context, ref hammerfest.UserRef) (*HammerfestSession, error)

	TouchTwinoidOauth(ctx context.Context, opts TouchTwinoidOauthOptions) (*TwinoidOauth, error)
	RevokeTwinoidAccessToken(ctx context.Context, token twinoid.AccessToken) error
	GetTwinoidOauth(ctx context.Context, ref twinoid.UserRef) (*TwinoidOauth, error)
}
