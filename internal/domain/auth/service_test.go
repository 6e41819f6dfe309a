package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockUserRepo struct {
	users map[string]User
	err   error
}

func (m *mockUserRepo) FindByUsername(_ context.Context, username string) (*User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, u User) error {
	m.users[u.Username] = u
	return nil
}

type mockSessionStore struct {
	sessions map[string]Session
	saveErr  error
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]Session)}
}

func (m *mockSessionStore) Save(_ context.Context, s Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sessions[s.Token] = s
	return nil
}

func (m *mockSessionStore) Get(_ context.Context, token string) (*Session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *mockSessionStore) Delete(_ context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

// --- Helpers ---

func newTestService(t *testing.T, cfg Config) (*Service, *mockSessionStore) {
	t.Helper()

	hash, err := HashPassword("admin123")
	require.NoError(t, err)

	users := &mockUserRepo{users: map[string]User{
		"admin": {Username: "admin", PasswordHash: hash},
	}}
	sessions := newMockSessionStore()
	if cfg.Secret == nil {
		cfg.Secret = []byte("test-secret")
	}
	return NewService(users, sessions, cfg), sessions
}

// --- Tests ---

func TestPassword(t *testing.T) {
	hash, err := HashPassword("pcj")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "pcj"))
	assert.False(t, CheckPassword(hash, "PCJ"))
	assert.False(t, CheckPassword("not-a-hash", "pcj"))
}

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("secret"))
	value := s.Sign("tok")

	token, ok := s.Verify(value)
	require.True(t, ok)
	assert.Equal(t, "tok", token)

	_, ok = NewSigner([]byte("other")).Verify(value)
	assert.False(t, ok, "different secret must not verify")

	for _, bad := range []string{"", "tok", ".abcd", "tok.zz", "tok." + "00"} {
		_, ok := s.Verify(bad)
		assert.False(t, ok, "value %q", bad)
	}
}

func TestLogin(t *testing.T) {
	t.Run("valid credentials open a session", func(t *testing.T) {
		svc, sessions := newTestService(t, Config{})
		now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return now }

		cookie, sess, err := svc.Login(context.Background(), "admin", "admin123")
		require.NoError(t, err)
		assert.NotEmpty(t, cookie)
		assert.Equal(t, "admin", sess.Username)
		assert.Equal(t, now.Add(DefaultSessionTTL), sess.ExpiresAt)
		assert.Contains(t, sessions.sessions, sess.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, sessions := newTestService(t, Config{})

		_, _, err := svc.Login(context.Background(), "admin", "nope")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Empty(t, sessions.sessions)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _ := newTestService(t, Config{})

		_, _, err := svc.Login(context.Background(), "ghost", "admin123")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("store failure", func(t *testing.T) {
		svc, sessions := newTestService(t, Config{})
		sessions.saveErr = errors.New("redis down")

		_, _, err := svc.Login(context.Background(), "admin", "admin123")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "save session")
	})

	t.Run("throttled", func(t *testing.T) {
		svc, _ := newTestService(t, Config{Throttle: NewThrottle(time.Hour, 2)})
		ctx := context.Background()

		_, _, err := svc.Login(ctx, "admin", "x")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = svc.Login(ctx, "admin", "y")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = svc.Login(ctx, "admin", "admin123")
		require.ErrorIs(t, err, ErrTooManyAttempts)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		svc, _ := newTestService(t, Config{})
		cookie, _, err := svc.Login(ctx, "admin", "admin123")
		require.NoError(t, err)

		sess, err := svc.Authenticate(ctx, cookie)
		require.NoError(t, err)
		assert.Equal(t, "admin", sess.Username)
	})

	t.Run("forged cookie", func(t *testing.T) {
		svc, _ := newTestService(t, Config{})
		_, err := svc.Authenticate(ctx, NewSigner([]byte("evil")).Sign("token"))
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("expired session is removed", func(t *testing.T) {
		svc, sessions := newTestService(t, Config{TTL: time.Minute})
		now := time.Now()
		svc.now = func() time.Time { return now }
		cookie, sess, err := svc.Login(ctx, "admin", "admin123")
		require.NoError(t, err)

		svc.now = func() time.Time { return now.Add(2 * time.Minute) }
		_, err = svc.Authenticate(ctx, cookie)
		require.ErrorIs(t, err, ErrUnauthorized)
		assert.NotContains(t, sessions.sessions, sess.Token)
	})

	t.Run("logout invalidates", func(t *testing.T) {
		svc, _ := newTestService(t, Config{})
		cookie, _, err := svc.Login(ctx, "admin", "admin123")
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, cookie))
		_, err = svc.Authenticate(ctx, cookie)
		require.ErrorIs(t, err, ErrUnauthorized)

		require.NoError(t, svc.Logout(ctx, "garbage"))
	})
}

func TestThrottle_Evicts(t *testing.T) {
	th := NewThrottle(time.Nanosecond, 1)
	for i := range maxThrottleEntries + 5 {
		th.Allow(string(rune('a' + i%26)) + time.Duration(i).String())
	}
	assert.LessOrEqual(t, len(th.limiters), maxThrottleEntries+1)

	var nilThrottle *Throttle
	assert.True(t, nilThrottle.Allow("anyone"))
}
