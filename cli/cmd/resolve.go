package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/cli/config"
	"github.com/pithecene-io/dockpull/runtime"
)

// loadConfig loads --config, or ./dockpull.yaml when present.
// Errors exit with the configuration error code.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return nil, cli.Exit(err.Error(), runtime.ExitCodeConfigError)
	}
	return cfg, nil
}

// configError wraps a message into a configuration error exit.
func configError(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), runtime.ExitCodeConfigError)
}

// configVal reads a config field, tolerating a nil config.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return get(cfg)
}

// resolveString returns the flag when set, else the config value when
// non-empty, else the flag default.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if cfgVal != "" {
		return cfgVal
	}
	return c.String(name)
}

// resolveInt returns the flag when set, else the config value when
// non-zero, else the flag default.
func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return c.Int(name)
}

// resolveBool returns the flag when set, else the config value when
// present, else the flag default.
func resolveBool(c *cli.Context, name string, cfgVal *bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	if cfgVal != nil {
		return *cfgVal
	}
	return c.Bool(name)
}

// resolveDuration returns the flag when set, else the config value when
// non-zero, else the flag default.
func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	if cfgVal != 0 {
		return cfgVal
	}
	return c.Duration(name)
}

// resolveFloat returns the flag when set, else the config value when
// present, else the flag default.
func resolveFloat(c *cli.Context, name string, cfgVal *float64) float64 {
	if c.IsSet(name) {
		return c.Float64(name)
	}
	if cfgVal != nil {
		return *cfgVal
	}
	return c.Float64(name)
}
