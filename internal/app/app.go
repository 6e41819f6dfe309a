package app

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
	"github.com/xenking/pharmacy-storefront/internal/domain/product"
	"github.com/xenking/pharmacy-storefront/internal/handler"
	"github.com/xenking/pharmacy-storefront/pkg/health"
	"github.com/xenking/pharmacy-storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("env", cfg.Env),
	)

	st, err := openStores(ctx, lg, cfg, m.TracerProvider())
	if err != nil {
		return err
	}
	defer st.Close()

	secret, err := sessionSecret(lg, cfg)
	if err != nil {
		return err
	}

	healthSvc := health.New()
	for _, p := range st.probes {
		healthSvc.Add(p)
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h, err := newHandler(ctx, cfg, st, secret, healthSvc, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           h,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// sessionSecret returns the configured secret or, outside production, a
// random one. Random secrets invalidate sessions on restart.
func sessionSecret(lg *zap.Logger, cfg *Config) ([]byte, error) {
	if cfg.Session.Secret != "" {
		return []byte(cfg.Session.Secret), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, errors.Wrap(err, "generate session secret")
	}
	lg.Warn("No session secret configured, using a random one")
	return secret, nil
}

// newHandler builds the services and the full HTTP handler: health probes,
// the /api routes, optional static pages and the middleware chain.
func newHandler(
	ctx context.Context,
	cfg *Config,
	st *stores,
	secret []byte,
	healthSvc *health.Health,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (http.Handler, error) {
	var throttle *auth.Throttle
	if cfg.Login.Attempts > 0 {
		throttle = auth.NewThrottle(cfg.Login.Every, cfg.Login.Attempts)
	}
	authService := auth.NewService(st.Users, st.sessions, auth.Config{
		Secret:   secret,
		TTL:      cfg.Session.TTL,
		Throttle: throttle,
	})

	api, err := handler.New(handler.Config{
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.Session.Secure,
	}, product.NewService(st.Products), authService, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create handler")
	}

	r := chi.NewRouter()
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Mount("/api", api.Routes())
	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	middlewares := []httpmiddleware.Middleware{
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("storefront-api", tp, mp),
		httpmiddleware.LogRequests(),
	}
	if cfg.RateLimit.Max > 0 {
		middlewares = append(middlewares, httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			Match:  httpmiddleware.MatchRoute(http.MethodPost, "/api/login"),
		}))
	}
	return httpmiddleware.Wrap(r, middlewares...), nil
}
