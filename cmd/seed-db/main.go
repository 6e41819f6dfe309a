// Command seed-db loads a products JSON file and an admin account into the
// configured store: PostgreSQL when a database URL is set, the JSON data
// directory otherwise.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/pharmacy-storefront/internal/catalogimport"
	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
	"github.com/xenking/pharmacy-storefront/internal/storage"
)

type options struct {
	databaseURL   string
	dataDir       string
	productsFile  string
	adminUser     string
	adminPassword string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.dataDir, "data-dir", "data", "JSON data directory, used without a database URL")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&opts.adminUser, "admin-user", "admin", "admin username to provision")
	flag.StringVar(&opts.adminPassword, "admin-password", "", "admin password (or STOREFRONT_ADMIN_PASSWORD env); empty skips the account")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.adminPassword == "" {
		opts.adminPassword = os.Getenv("STOREFRONT_ADMIN_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	data, err := os.ReadFile(opts.productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}
	products, err := catalogimport.DecodeProducts(data)
	if err != nil {
		return errors.Wrap(err, "decode products file")
	}

	st, err := storage.Open(ctx, storage.Options{
		DatabaseURL: opts.databaseURL,
		DataDir:     opts.dataDir,
	})
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer st.Close()
	slog.Info("store opened", slog.String("backend", st.Backend))

	var created, updated int
	for _, p := range products {
		isNew, err := catalogimport.Upsert(ctx, st.Products, p)
		if err != nil {
			return err
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}
	slog.Info("products seeded", slog.Int("created", created), slog.Int("updated", updated))

	if opts.adminPassword == "" {
		slog.Info("no admin password given, skipping admin account")
		return nil
	}
	hash, err := auth.HashPassword(opts.adminPassword)
	if err != nil {
		return errors.Wrap(err, "hash admin password")
	}
	if err := st.Users.Upsert(ctx, auth.User{Username: opts.adminUser, PasswordHash: hash}); err != nil {
		return errors.Wrap(err, "upsert admin")
	}
	slog.Info("admin account provisioned", slog.String("username", opts.adminUser))

	return nil
}
