// Package catalogimport loads product exports into a product repository.
//
// Exports are newline-delimited JSON, optionally gzip-compressed, one product
// object per line. Files are decoded concurrently and written by a single
// writer. A bloom filter over the IDs already in the store lets most new
// products skip the existence lookup.
package catalogimport

import (
	"context"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pharmacy-storefront/internal/domain/product"
)

const (
	defaultCapacity = 100_000
	defaultFPR      = 0.001
	queueSize       = 1024
)

// Config tunes an Importer.
type Config struct {
	// Update overwrites products that already exist. Otherwise they are
	// skipped and the stored version wins.
	Update bool
	// Capacity is the expected number of distinct product IDs.
	Capacity uint
	// FalsePositiveRate of the ID filter.
	FalsePositiveRate float64
	// OnReject is called for every line that fails to decode or validate.
	OnReject func(Rejection)
}

// Rejection describes an unusable input line.
type Rejection struct {
	File string
	Line int
	Err  error
}

// Stats summarizes an import run.
type Stats struct {
	Lines    int64
	Created  int64
	Updated  int64
	Skipped  int64
	Rejected int64
	// Lookups counts existence checks the ID filter could not rule out.
	Lookups int64
}

// Importer writes decoded products into a repository.
type Importer struct {
	repo product.Repository
	cfg  Config
}

// New creates an Importer with defaults applied.
func New(repo product.Repository, cfg Config) *Importer {
	if cfg.Capacity == 0 {
		cfg.Capacity = defaultCapacity
	}
	if cfg.FalsePositiveRate <= 0 || cfg.FalsePositiveRate >= 1 {
		cfg.FalsePositiveRate = defaultFPR
	}
	if cfg.OnReject == nil {
		cfg.OnReject = func(Rejection) {}
	}
	return &Importer{repo: repo, cfg: cfg}
}

// Import reads every file concurrently and writes the products. The same ID
// appearing twice is handled like an ID already in the store.
func (im *Importer) Import(ctx context.Context, files []string) (Stats, error) {
	var stats Stats

	filter, err := im.knownIDs(ctx)
	if err != nil {
		return stats, err
	}

	records := make(chan product.Product, queueSize)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(records)
		readers, ctx := errgroup.WithContext(ctx)
		for _, path := range files {
			readers.Go(func() error {
				return im.readFile(ctx, path, records, &stats)
			})
		}
		return readers.Wait()
	})

	g.Go(func() error {
		for p := range records {
			if err := im.write(ctx, filter, p, &stats); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// knownIDs builds the ID filter from the current store contents.
func (im *Importer) knownIDs(ctx context.Context) (*bloom.BloomFilter, error) {
	existing, err := im.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list existing products")
	}
	capacity := im.cfg.Capacity
	if n := uint(len(existing)) * 2; n > capacity {
		capacity = n
	}
	filter := bloom.NewWithEstimates(capacity, im.cfg.FalsePositiveRate)
	for _, p := range existing {
		filter.AddString(p.ID)
	}
	return filter, nil
}

func (im *Importer) readFile(ctx context.Context, path string, out chan<- product.Product, stats *Stats) error {
	return StreamFile(ctx, path, func(line int, data []byte) error {
		atomic.AddInt64(&stats.Lines, 1)
		p, err := DecodeProduct(jx.DecodeBytes(data))
		if err != nil {
			atomic.AddInt64(&stats.Rejected, 1)
			im.cfg.OnReject(Rejection{File: path, Line: line, Err: err})
			return nil
		}
		select {
		case out <- p:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// write runs on the single writer goroutine, so the filter needs no lock.
func (im *Importer) write(ctx context.Context, filter *bloom.BloomFilter, p product.Product, stats *Stats) error {
	if !filter.TestString(p.ID) {
		err := im.repo.Create(ctx, p)
		if err == nil {
			filter.AddString(p.ID)
			atomic.AddInt64(&stats.Created, 1)
			return nil
		}
		if !errors.Is(err, product.ErrAlreadyExists) {
			return errors.Wrapf(err, "create product %q", p.ID)
		}
		// Created by another writer after the filter was built.
		filter.AddString(p.ID)
	}

	atomic.AddInt64(&stats.Lookups, 1)
	if !im.cfg.Update {
		created, err := createIfMissing(ctx, im.repo, p)
		if err != nil {
			return err
		}
		if created {
			atomic.AddInt64(&stats.Created, 1)
		} else {
			atomic.AddInt64(&stats.Skipped, 1)
		}
		return nil
	}

	created, err := Upsert(ctx, im.repo, p)
	if err != nil {
		return err
	}
	if created {
		atomic.AddInt64(&stats.Created, 1)
	} else {
		atomic.AddInt64(&stats.Updated, 1)
	}
	return nil
}

// Upsert creates p, or replaces the stored product with the same ID.
func Upsert(ctx context.Context, repo product.Repository, p product.Product) (created bool, _ error) {
	err := repo.Create(ctx, p)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, product.ErrAlreadyExists):
		return false, errors.Wrapf(err, "create product %q", p.ID)
	}
	if err := repo.Update(ctx, p); err != nil {
		return false, errors.Wrapf(err, "update product %q", p.ID)
	}
	return false, nil
}

func createIfMissing(ctx context.Context, repo product.Repository, p product.Product) (bool, error) {
	err := repo.Create(ctx, p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, product.ErrAlreadyExists):
		return false, nil
	default:
		return false, errors.Wrapf(err, "create product %q", p.ID)
	}
}
