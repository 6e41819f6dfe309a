package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
	"github.com/xenking/pharmacy-storefront/internal/storage"
	"github.com/xenking/pharmacy-storefront/internal/storage/memory"
	"github.com/xenking/pharmacy-storefront/internal/storage/redisstore"
	"github.com/xenking/pharmacy-storefront/pkg/health"
)

// stores bundles the catalog repositories, the session store and their
// readiness probes.
type stores struct {
	*storage.Stores
	sessions auth.SessionStore
	probes   []health.Probe
	closers  []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	if s.Stores != nil {
		s.Stores.Close()
	}
}

func (s *stores) probe(name string, check health.CheckFunc) {
	s.probes = append(s.probes, health.Probe{
		Name:    name,
		Kind:    health.Readiness,
		Timeout: 5 * time.Second,
		Check:   check,
	})
}

// openStores opens the catalog (PostgreSQL or JSON files) and the session
// store (Redis when configured, memory otherwise).
func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, tp trace.TracerProvider) (_ *stores, rerr error) {
	hash, err := auth.HashPassword(cfg.Admin.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash default admin password")
	}
	catalog, err := storage.Open(ctx, storage.Options{
		DatabaseURL:    cfg.DatabaseURL,
		DataDir:        cfg.DataDir,
		DefaultUsers:   []auth.User{{Username: cfg.Admin.Username, PasswordHash: hash}},
		TracerProvider: tp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}

	s := &stores{Stores: catalog}
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	s.probe(catalog.Backend, catalog.Ping)
	switch catalog.Backend {
	case storage.BackendJSONFile:
		s.probe("data_dir", health.WritableDirCheck(cfg.DataDir))
		lg.Info("Catalog stored in JSON files", zap.String("dir", cfg.DataDir))
		if catalog.UsersCreated {
			lg.Warn("Default admin created; change its password", zap.String("username", cfg.Admin.Username))
		}
	default:
		lg.Info("Catalog stored in postgres")
	}

	if cfg.RedisURL != "" {
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.sessions = redisstore.NewSessionStore(client, redisstore.DefaultPrefix)
		s.probe("redis", health.PingCheck(health.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})))
		lg.Info("Sessions stored in redis")
		return s, nil
	}

	sessions := memory.NewSessionStore()
	sessions.StartCleanup(ctx, time.Minute)
	s.sessions = sessions
	return s, nil
}
