package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/go-faster/errors"

	"github.com/xenking/pharmacy-storefront/internal/storefront"
)

// printNotifier prints notifications as "[level] message".
func printNotifier(w io.Writer) storefront.Notifier {
	return storefront.NotifierFunc(func(level storefront.Level, msg string) {
		_, _ = fmt.Fprintf(w, "[%s] %s\n", level, msg)
	})
}

// linkOpener prints the link and, when launch is set, hands it to the
// platform URL handler.
func linkOpener(out io.Writer, launch bool) storefront.LinkOpener {
	return storefront.LinkOpenerFunc(func(ctx context.Context, url string) error {
		_, _ = fmt.Fprintf(out, "Open: %s\n", url)
		if !launch {
			return nil
		}
		name, args := urlHandler()
		if err := exec.CommandContext(ctx, name, append(args, url)...).Start(); err != nil {
			return errors.Wrapf(err, "run %s", name)
		}
		return nil
	})
}

func urlHandler() (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}

// cartView is the terminal cart display.
type cartView struct {
	out io.Writer
}

func (v cartView) Close() {
	_, _ = fmt.Fprintln(v.out, "Cart closed.")
}
