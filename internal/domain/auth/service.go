package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// DefaultSessionTTL is how long a session stays valid after login.
const DefaultSessionTTL = 24 * time.Hour

// Config holds the non-dependency settings of a Service.
type Config struct {
	// Secret signs session cookies.
	Secret []byte
	// TTL is the session lifetime. Defaults to DefaultSessionTTL.
	TTL time.Duration
	// Throttle limits login attempts per username. Nil disables throttling.
	Throttle *Throttle
}

// Service validates credentials, issues sessions and resolves session
// cookies back to users.
type Service struct {
	users    UserRepository
	sessions SessionStore
	signer   Signer
	ttl      time.Duration
	throttle *Throttle
	now      func() time.Time
}

// NewService creates an authentication Service.
func NewService(users UserRepository, sessions SessionStore, cfg Config) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		users:    users,
		sessions: sessions,
		signer:   NewSigner(cfg.Secret),
		ttl:      ttl,
		throttle: cfg.Throttle,
		now:      time.Now,
	}
}

// TTL returns the session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Login checks the credentials and opens a session. It returns the signed
// cookie value along with the stored session.
func (s *Service) Login(ctx context.Context, username, password string) (string, *Session, error) {
	if !s.throttle.Allow(username) {
		return "", nil, ErrTooManyAttempts
	}

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, errors.Wrap(err, "find user")
	}
	if !CheckPassword(u.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", nil, errors.Wrap(err, "generate session token")
	}
	sess := Session{
		Token:     token,
		Username:  u.Username,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return "", nil, errors.Wrap(err, "save session")
	}
	return s.signer.Sign(token), &sess, nil
}

// Authenticate resolves a signed cookie value to its live session.
// Any failure is reported as ErrUnauthorized unless the store itself failed.
func (s *Service) Authenticate(ctx context.Context, cookie string) (*Session, error) {
	token, ok := s.signer.Verify(cookie)
	if !ok {
		return nil, ErrUnauthorized
	}

	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "get session")
	}
	if sess.Expired(s.now()) {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrUnauthorized
	}
	return sess, nil
}

// Logout destroys the session behind cookie. Unknown or forged cookies are
// ignored.
func (s *Service) Logout(ctx context.Context, cookie string) error {
	token, ok := s.signer.Verify(cookie)
	if !ok {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}
