// Package jsonfile stores the catalog and the user accounts in flat JSON
// files.
//
// Every file is owned by one goroutine that executes reads and
// read-modify-write updates one at a time, so concurrent HTTP handlers of the
// same process cannot lose each other's updates. Processes sharing a file are
// not coordinated: the last writer wins.
package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrClosed is returned by operations on a closed Document.
var ErrClosed = errors.New("document closed")

const tracerName = "github.com/xenking/pharmacy-storefront/internal/storage/jsonfile"

// Option configures a Document.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
}

// WithTracerProvider sets the provider used for file operation spans.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

type op struct {
	fn  func() error
	res chan error
}

// Document is a JSON file holding a value of type T.
type Document[T any] struct {
	path   string
	tracer trace.Tracer

	ops       chan op
	closed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Open starts the owner goroutine of the file at path. When the file does not
// exist it is created with the value returned by init, and created is true.
func Open[T any](path string, init func() (T, error), opts ...Option) (_ *Document[T], created bool, _ error) {
	o := options{tracerProvider: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Document[T]{
		path:   path,
		tracer: o.tracerProvider.Tracer(tracerName),
		ops:    make(chan op),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, errors.Wrap(err, "create data dir")
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		v, err := init()
		if err != nil {
			return nil, false, errors.Wrap(err, "initial value")
		}
		if err := d.write(v); err != nil {
			return nil, false, err
		}
		created = true
	} else if err != nil {
		return nil, false, errors.Wrapf(err, "stat %s", path)
	}

	go d.loop()
	return d, created, nil
}

// Path returns the location of the file.
func (d *Document[T]) Path() string {
	return d.path
}

func (d *Document[T]) loop() {
	defer close(d.done)
	for {
		select {
		case o := <-d.ops:
			o.res <- o.fn()
		case <-d.closed:
			return
		}
	}
}

// do runs fn on the owner goroutine and waits for its result.
func (d *Document[T]) do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	select {
	case d.ops <- op{fn: fn, res: res}:
	case <-d.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View reads the file and passes its value to fn.
func (d *Document[T]) View(ctx context.Context, fn func(T) error) error {
	ctx, span := d.tracer.Start(ctx, "jsonfile.View", trace.WithAttributes(attribute.String("file", d.path)))
	defer span.End()

	err := d.do(ctx, func() error {
		v, err := d.read()
		if err != nil {
			return err
		}
		return fn(v)
	})
	recordErr(span, err)
	return err
}

// Update reads the file, passes its value to fn and writes back the result.
// Nothing is written when fn returns an error.
func (d *Document[T]) Update(ctx context.Context, fn func(T) (T, error)) error {
	ctx, span := d.tracer.Start(ctx, "jsonfile.Update", trace.WithAttributes(attribute.String("file", d.path)))
	defer span.End()

	err := d.do(ctx, func() error {
		v, err := d.read()
		if err != nil {
			return err
		}
		next, err := fn(v)
		if err != nil {
			return err
		}
		return d.write(next)
	})
	recordErr(span, err)
	return err
}

// Ping checks that the file is still readable.
func (d *Document[T]) Ping(ctx context.Context) error {
	return d.do(ctx, func() error {
		_, err := os.Stat(d.path)
		return err
	})
}

// Close stops the owner goroutine. Pending callers receive ErrClosed.
func (d *Document[T]) Close() error {
	d.closeOnce.Do(func() {
		close(d.closed)
	})
	<-d.done
	return nil
}

func (d *Document[T]) read() (T, error) {
	var v T
	data, err := os.ReadFile(d.path)
	if err != nil {
		return v, errors.Wrapf(err, "read %s", d.path)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Wrapf(err, "decode %s", d.path)
	}
	return v, nil
}

// write replaces the file atomically via a temporary sibling.
func (d *Document[T]) write(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode")
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return errors.Wrapf(err, "replace %s", d.path)
	}
	return nil
}

func recordErr(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
