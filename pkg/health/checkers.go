package health

import (
	"context"
	"os"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when the process runs more than threshold
// goroutines.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is implemented by stores that can report reachability: the JSON
// file store, pgxpool.Pool and redis clients (through PingFunc).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps p.Ping.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// WritableDirCheck fails when dir is missing or a file cannot be created in it.
func WritableDirCheck(dir string) CheckFunc {
	return func(_ context.Context) error {
		fi, err := os.Stat(dir)
		if err != nil {
			return errors.Wrap(err, "stat data dir")
		}
		if !fi.IsDir() {
			return errors.Errorf("%s is not a directory", dir)
		}
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return errors.Wrap(err, "create probe file")
		}
		name := f.Name()
		_ = f.Close()
		if err := os.Remove(name); err != nil {
			return errors.Wrap(err, "remove probe file")
		}
			return nil
	}
}
