// Package redisstore keeps sessions in Redis so that several API instances
// can share logins.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-redis/redis/v8"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "storefront:session"

var _ auth.SessionStore = (*SessionStore)(nil)

type sessionValue struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionStore implements auth.SessionStore on Redis strings with a TTL
// matching the session expiry.
type SessionStore struct {
	client redis.Cmdable
	prefix string
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// NewSessionStore returns a SessionStore using keys "<prefix>:<token>".
func NewSessionStore(client redis.Cmdable, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

func (s *SessionStore) key(token string) string {
	return fmt.Sprintf("%s:%s", s.prefix, token)
}

// Save stores the session until its expiry. Already expired sessions are
// not written.
func (s *SessionStore) Save(ctx context.Context, sess auth.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(sessionValue{Username: sess.Username, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if err := s.client.Set(ctx, s.key(sess.Token), data, ttl).Err(); err != nil {
		return errors.Wrap(err, "set session")
	}
	return nil
}

// Get returns the session for token or auth.ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, token string) (*auth.Session, error) {
	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "get session")
	}

	var v sessionValue
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	return &auth.Session{Token: token, Username: v.Username, ExpiresAt: v.ExpiresAt}, nil
}

// Delete removes the session for token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}
