//go:build integration

package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestSessionStore_Redis(t *testing.T) {
	ctx := context.Background()
	client, err := Connect(ctx, startRedis(t))
	require.NoError(t, err)
	defer client.Close()

	s := NewSessionStore(client, "")
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	require.NoError(t, s.Save(ctx, auth.Session{Token: "tok", Username: "admin", ExpiresAt: exp}))

	sess, err := s.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "admin", sess.Username)
	assert.True(t, exp.Equal(sess.ExpiresAt))

	ttl, err := client.TTL(ctx, DefaultPrefix+":tok").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	require.NoError(t, s.Delete(ctx, "tok"))
	_, err = s.Get(ctx, "tok")
	require.ErrorIs(t, err, auth.ErrSessionNotFound)

	require.NoError(t, s.Save(ctx, auth.Session{Token: "old", ExpiresAt: time.Now().Add(-time.Second)}))
	_, err = s.Get(ctx, "old")
	require.ErrorIs(t, err, auth.ErrSessionNotFound)
}
