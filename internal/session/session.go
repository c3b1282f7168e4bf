// Package session holds the locally persisted backend session and the
// accessor that reads identity out of it. Tokens are issued and verified by
// the hosted backend; this package decodes JWT payloads WITHOUT signature
// verification, for identification and display only, never for
// authorization decisions.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "bytebank/internal/errors"
)

// Session is the persisted shape of a backend auth session.
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	TokenType    string       `json:"token_type,omitempty"`
	ExpiresAt    int64        `json:"expires_at,omitempty"`
	User         *SessionUser `json:"user,omitempty"`
}

// SessionUser is the identity block the backend returns on sign in.
type SessionUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email,omitempty"`
}

// TokenClaims is the JWT payload shape the backend issues.
type TokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Store persists sessions across process runs.
type Store interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// Accessor reads token state out of a Store. It never owns the session
// lifecycle; the backend does.
type Accessor struct {
	store Store
	now   func() time.Time
}

// NewAccessor creates an accessor over the given store.
func NewAccessor(store Store) *Accessor {
	return &Accessor{store: store, now: time.Now}
}

// Token returns the persisted access token, or a coded auth error when no
// session is stored.
func (a *Accessor) Token() (string, error) {
	sess, err := a.store.Load()
	if err != nil {
		return "", apperrors.Wrap(apperrors.AuthMissingToken, err)
	}
	if sess == nil || sess.AccessToken == "" {
		return "", apperrors.New(apperrors.AuthMissingToken)
	}
	return sess.AccessToken, nil
}

// Claims decodes the access token payload without verifying its signature.
func (a *Accessor) Claims() (*TokenClaims, error) {
	token, err := a.Token()
	if err != nil {
		return nil, err
	}
	return DecodeToken(token)
}

// UserID returns the subject of the current access token.
func (a *Accessor) UserID() (uuid.UUID, error) {
	claims, err := a.Claims()
	if err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.AuthInvalidToken, err)
	}
	return id, nil
}

// Authenticated reports whether a token is present and its exp claim has
// not passed. No cryptographic check happens here.
func (a *Accessor) Authenticated() bool {
	claims, err := a.Claims()
	if err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.After(a.now())
}

// DecodeToken parses a JWT payload without signature verification.
func DecodeToken(tokenString string) (*TokenClaims, error) {
	parser := jwt.NewParser()
	claims := &TokenClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, apperrors.Wrap(apperrors.AuthInvalidToken, err)
	}
	return claims, nil
}
