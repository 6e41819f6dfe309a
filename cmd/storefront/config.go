package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// config holds the terminal storefront settings, loadable from flags,
// STOREFRONT_CLIENT_ environment variables or a YAML file.
type config struct {
	APIBaseURL string        `default:"http://localhost:3000/api" usage:"Backend API root" flag:"api"`
	StateDir   string        `usage:"Directory holding the persisted cart; defaults to the user config dir" flag:"state-dir"`
	Phone      string        `default:"919620318855" usage:"WhatsApp number orders are sent to" flag:"phone"`
	Currency   string        `default:"₹" usage:"Currency symbol used in order messages" flag:"currency"`
	Timeout    time.Duration `default:"10s" usage:"Catalog request timeout" flag:"timeout"`
	Open       bool          `usage:"Open checkout links with the system handler" flag:"open"`
	Verbose    bool          `usage:"Log diagnostics to stderr" flag:"verbose"`
}

// loadConfig parses args (without the program name) and returns the config
// together with the remaining positional arguments.
func loadConfig(args []string) (*config, []string, error) {
	var cfg config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT_CLIENT",
		Args:      args,
		Files:     []string{"storefront.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, nil, errors.Wrap(err, "load config")
	}

	if cfg.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, nil, errors.Wrap(err, "locate config dir")
		}
		cfg.StateDir = filepath.Join(dir, "pharmacy-storefront")
	}
	if cfg.Timeout <= 0 {
		return nil, nil, errors.New("timeout must be positive")
	}
	return &cfg, loader.Flags().Args(), nil
}
