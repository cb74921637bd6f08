package auth

import (
	"fmt"
	"time"

	etwin "github.com/eternaltwin/etwin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	TextCodeTokenExpired   = "token_expired"
	TextCodeTokenMalformed = "token_malformed"
)

// ErrTokenExpired is returned for access tokens past their expiration.
var ErrTokenExpired = errors.New("access token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail to parse or verify.
var ErrTokenMalformed = errors.New("access token malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// AccessClaims are the JWT claims carried by the access tokens handed to
// the REST layer alongside a session.
type AccessClaims struct {
	jwt.RegisteredClaims
	DisplayName     string    `json:"name,omitempty"`
	IsAdministrator bool      `json:"admin,omitempty"`
	SessionID       uuid.UUID `json:"sid,omitempty"`
}

// TokenSigner mints and verifies the access tokens exposed over HTTP. The
// session store stays authoritative: the token only names the session.
type TokenSigner struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	ttl        time.Duration
	logger     etwin.Logger
}

func NewTokenSigner(signingKey []byte, issuer string, audience []string, ttl time.Duration, logger etwin.Logger) *TokenSigner {
	if logger == nil {
		logger = etwin.DefaultLogger()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenSigner{
		signingKey: signingKey,
		issuer:     issuer,
		audience:   jwt.ClaimStrings(audience),
		ttl:        ttl,
		logger:     logger,
	}
}

// Sign mints an access token for an authenticated user and its session.
func (ts *TokenSigner) Sign(user *etwin.User, sessionID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   user.ID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
			ID:        uuid.NewString(),
		},
		DisplayName:     user.DisplayName,
		IsAdministrator: user.IsAdministrator,
		SessionID:       sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign access token")
	}
	return signed, nil
}

// Verify parses an access token and returns its claims.
func (ts *TokenSigner) Verify(tokenString string) (*AccessClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token verify: unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// AuthContext rebuilds the caller's authentication context from verified
// claims.
func (c *AccessClaims) AuthContext() (etwin.AuthContext, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return etwin.GuestAuth(), ErrTokenMalformed
	}
	return etwin.UserAuth(etwin.ShortUser{ID: userID, DisplayName: c.DisplayName}, c.IsAdministrator), nil
}
