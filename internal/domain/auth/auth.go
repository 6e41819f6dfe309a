// Package auth implements the session-cookie login that gates catalog
// mutation: bcrypt-checked credentials, opaque HMAC-signed session tokens
// and per-username login throttling.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrInvalidCredentials is returned when the username is unknown or the
	// password does not match. The two cases are deliberately not told apart.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUnauthorized is returned when a request carries no valid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTooManyAttempts is returned when a username exceeded its login budget.
	ErrTooManyAttempts = errors.New("too many login attempts")
	// ErrUserNotFound is returned by a UserRepository for unknown usernames.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound is returned by a SessionStore for unknown or expired tokens.
	ErrSessionNotFound = errors.New("session not found")
)

// User is a stored administrator account.
type User struct {
	Username     string
	PasswordHash string
}

// UserRepository provides lookup and provisioning of user accounts.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	Upsert(ctx context.Context, u User) error
}

// Session maps an opaque token to the user that logged in.
type Session struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore persists sessions until they expire.
//
// Get returns ErrSessionNotFound for unknown and expired tokens alike.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}
