package catalogimport

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
)

// maxLineSize bounds a single NDJSON line.
const maxLineSize = 1 << 20

// StreamFile calls fn for every non-blank line of path. Files ending in .gz
// are decompressed on the fly. Line numbers start at 1.
func StreamFile(ctx context.Context, path string, fn func(line int, data []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		data := scanner.Bytes()
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		if err := fn(line, data); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
