//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
	"github.com/xenking/pharmacy-storefront/internal/domain/product"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "storefront",
				"POSTGRES_PASSWORD": "storefront",
				"POSTGRES_DB":       "storefront",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://storefront:storefront@%s:%s/storefront?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestPostgres(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	t.Run("products", func(t *testing.T) {
		repo := NewProductRepository(pool)

		first := product.Product{ID: "b", Name: "Bandage", Image: "b.jpg", Price: decimal.RequireFromString("4.25"), Tag: product.TagSale}
		second := product.Product{ID: "a", Name: "Antacid", Image: "a.jpg", Price: decimal.NewFromInt(9)}
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))
		require.ErrorIs(t, repo.Create(ctx, first), product.ErrAlreadyExists)

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b", list[0].ID, "insertion order is kept")
		assert.True(t, first.Price.Equal(list[0].Price))
		assert.Equal(t, product.TagSale, list[0].Tag)
		assert.Empty(t, list[1].Tag)

		second.Tag = product.TagNew
		require.NoError(t, repo.Update(ctx, second))
		got, err := repo.GetByID(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, product.TagNew, got.Tag)

		require.ErrorIs(t, repo.Update(ctx, product.Product{ID: "zz"}), product.ErrNotFound)
		require.NoError(t, repo.Delete(ctx, "a"))
		require.ErrorIs(t, repo.Delete(ctx, "a"), product.ErrNotFound)
		_, err = repo.GetByID(ctx, "a")
		require.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("users", func(t *testing.T) {
		repo := NewUserRepository(pool)

		_, err := repo.FindByUsername(ctx, "admin")
		require.ErrorIs(t, err, auth.ErrUserNotFound)

		require.NoError(t, repo.Upsert(ctx, auth.User{Username: "admin", PasswordHash: "h1"}))
		require.NoError(t, repo.Upsert(ctx, auth.User{Username: "admin", PasswordHash: "h2"}))

		u, err := repo.FindByUsername(ctx, "admin")
		require.NoError(t, err)
		assert.Equal(t, "h2", u.PasswordHash)
	})
}
