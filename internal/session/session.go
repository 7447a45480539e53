// Package session keeps API bearer tokens on the server, keyed by an opaque
// cookie value.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"fincontrol/internal/api"
	"fincontrol/internal/core"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

type Session struct {
	ID        string
	Token     string
	User      core.User
	ExpiresAt time.Time
}

// Store persists sessions. Get returns ErrNotFound for unknown or expired ids.
type Store interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// New builds a session for a freshly issued token. It lives for ttl, or less
// when the token itself expires sooner.
func New(token string, user core.User, ttl time.Duration, now time.Time) Session {
	expires := now.Add(ttl)
	if exp, ok := TokenExpiry(token); ok && exp.Before(expires) {
		expires = exp
	}
	return Session{
		ID:        uuid.NewString(),
		Token:     token,
		User:      user,
		ExpiresAt: expires,
	}
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s Session) Credentials() api.Credentials {
	return api.Credentials{Token: s.Token, UserID: s.User.ID}
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature;
// the API that issued it is the one that verifies it.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
