// Command catalog-import loads newline-delimited JSON product exports
// (plain or gzip-compressed) into the configured store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"

	"github.com/go-faster/errors"

	"github.com/xenking/pharmacy-storefront/internal/catalogimport"
	"github.com/xenking/pharmacy-storefront/internal/storage"
)

const maxLoggedRejections = 100

func main() {
	var (
		databaseURL string
		dataDir     string
		pattern     string
		update      bool
		capacity    uint
		fpr         float64
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&dataDir, "data-dir", "data", "JSON data directory, used without a database URL")
	flag.StringVar(&pattern, "files", "exports/*.ndjson.gz", "glob of export files; extra file arguments are added")
	flag.BoolVar(&update, "update", false, "overwrite products that already exist")
	flag.UintVar(&capacity, "capacity", 100_000, "expected number of distinct product IDs")
	flag.Float64Var(&fpr, "fpr", 0.001, "false positive rate of the ID filter")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	files, err := exportFiles(pattern, flag.Args())
	if err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg := catalogimport.Config{
		Update:            update,
		Capacity:          capacity,
		FalsePositiveRate: fpr,
	}
	if err := run(ctx, databaseURL, dataDir, files, cfg); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func exportFiles(pattern string, extra []string) ([]string, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "glob %q", pattern)
	}
	files = append(files, extra...)
	if len(files) == 0 {
		return nil, errors.New("no export files found")
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, errors.Wrapf(err, "check file %s", f)
		}
	}
	return files, nil
}

func run(ctx context.Context, databaseURL, dataDir string, files []string, cfg catalogimport.Config) error {
	st, err := storage.Open(ctx, storage.Options{DatabaseURL: databaseURL, DataDir: dataDir})
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer st.Close()

	var logged atomic.Int64
	cfg.OnReject = func(r catalogimport.Rejection) {
		if logged.Add(1) > maxLoggedRejections {
			return
		}
		slog.Warn("line rejected",
			slog.String("file", r.File),
			slog.Int("line", r.Line),
			slog.String("error", r.Err.Error()),
		)
	}

	slog.Info("importing", slog.Int("files", len(files)), slog.String("backend", st.Backend))

	stats, err := catalogimport.New(st.Products, cfg).Import(ctx, files)
	if err != nil {
		return errors.Wrap(err, "import")
	}

	slog.Info("import summary",
		slog.Int64("lines", stats.Lines),
		slog.Int64("created", stats.Created),
		slog.Int64("updated", stats.Updated),
		slog.Int64("skipped", stats.Skipped),
		slog.Int64("rejected", stats.Rejected),
		slog.Int64("lookups", stats.Lookups),
	)
	return nil
}
