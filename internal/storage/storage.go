// Package storage opens the catalog repositories selected by configuration:
// PostgreSQL when a database URL is given, JSON files in a data directory
// otherwise.
package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
	"github.com/xenking/pharmacy-storefront/internal/domain/product"
	"github.com/xenking/pharmacy-storefront/internal/storage/jsonfile"
	"github.com/xenking/pharmacy-storefront/internal/storage/postgres"
)

// Backend names.
const (
	BackendPostgres = "postgres"
	BackendJSONFile = "jsonfile"
)

// File names inside the data directory.
const (
	ProductsFile = "products.json"
	UsersFile    = "users.json"
)

// Options selects and configures the backend.
type Options struct {
	DatabaseURL string
	DataDir     string
	// DefaultUsers are written to a users file that does not exist yet.
	// PostgreSQL ignores them.
	DefaultUsers   []auth.User
	TracerProvider trace.TracerProvider
}

// Stores holds the opened repositories.
type Stores struct {
	Backend  string
	Products product.Repository
	Users    auth.UserRepository
	// UsersCreated reports that a fresh users file was written.
	UsersCreated bool
	// Ping checks that the product store is reachable.
	Ping func(ctx context.Context) error

	closers []func()
}

// Close releases every opened resource in reverse order.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Open opens the backend chosen by opts. PostgreSQL migrations are applied.
func Open(ctx context.Context, opts Options) (_ *Stores, rerr error) {
	if opts.TracerProvider == nil {
		opts.TracerProvider = noop.NewTracerProvider()
	}
	s := &Stores{}
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	var err error
	switch {
	case opts.DatabaseURL != "":
		err = s.openPostgres(ctx, opts.DatabaseURL)
	case opts.DataDir != "":
		err = s.openFiles(opts)
	default:
		err = errors.New("either a database URL or a data dir is required")
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stores) openPostgres(ctx context.Context, databaseURL string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	s.closers = append(s.closers, pool.Close)

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	s.Backend = BackendPostgres
	s.Products = postgres.NewProductRepository(pool)
	s.Users = postgres.NewUserRepository(pool)
	s.Ping = pool.Ping
	return nil
}

func (s *Stores) openFiles(opts Options) error {
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return errors.Wrap(err, "create data dir")
	}
	tracing := jsonfile.WithTracerProvider(opts.TracerProvider)

	products, err := jsonfile.OpenProducts(filepath.Join(opts.DataDir, ProductsFile), tracing)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() { _ = products.Close() })

	users, err := jsonfile.OpenUsers(filepath.Join(opts.DataDir, UsersFile), opts.DefaultUsers, tracing)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() { _ = users.Close() })

	s.Backend = BackendJSONFile
	s.Products = products
	s.Users = users
	s.UsersCreated = users.Created()
	s.Ping = products.Ping
	return nil
}
