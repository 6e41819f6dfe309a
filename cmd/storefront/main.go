// Command storefront is a terminal front end for the pharmacy store: it
// browses the catalog, keeps a persisted cart and sends orders over
// WhatsApp links.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/pharmacy-storefront/internal/storefront"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			_, _ = fmt.Fprint(os.Stderr, usage)
		}
		_, _ = fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, rest, err := loadConfig(args)
	if err != nil {
		return err
	}

	lg := zap.NewNop()
	if cfg.Verbose {
		lg = newLogger(stderr)
	}
	defer func() { _ = lg.Sync() }()
	ctx = zctx.Base(ctx, lg)

	sf := storefront.New(storefront.Config{
		APIBaseURL: cfg.APIBaseURL,
		Phone:      cfg.Phone,
		Currency:   cfg.Currency,
	}, storefront.Options{
		HTTPClient: storefront.NewHTTPClient(cfg.Timeout, noop.NewTracerProvider()),
		Storage:    storefront.NewFileStorage(cfg.StateDir),
		Notifier:   printNotifier(stdout),
		Opener:     linkOpener(stderr, cfg.Open),
		View:       cartView{out: stdout},
	})
	sf.Start(ctx)

	sh := &shell{sf: sf, format: storefront.NewFormatter(cfg.Phone, cfg.Currency), out: stdout}
	unsubscribe := sf.Cart.Subscribe(sh.render)
	defer unsubscribe()

	return sh.run(ctx, rest)
}

func newLogger(w io.Writer) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		zap.DebugLevel,
	)
	return zap.New(core)
}
