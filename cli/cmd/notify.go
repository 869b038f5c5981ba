package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/adapter"
	"github.com/pithecene-io/dockpull/adapter/redis"
	"github.com/pithecene-io/dockpull/adapter/webhook"
	"github.com/pithecene-io/dockpull/cli/config"
)

// adapterChoice holds resolved completion adapter settings.
type adapterChoice struct {
	kind      string // "", webhook or redis
	url       string
	channel   string
	keyPrefix string
	headers   map[string]string
	timeout   time.Duration
	retries   int
}

func adapterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Completion adapter: webhook or redis (default: none)",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Adapter endpoint (webhook: http(s) URL, redis: redis:// URL)",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel (default: " + redis.DefaultChannel + ")",
		},
		&cli.StringFlag{
			Name:  "adapter-key-prefix",
			Usage: "Redis key prefix storing the latest event per image",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as Key=Value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt publish timeout (default: adapter specific)",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retry attempts",
			Value: webhook.DefaultRetries,
		},
	}
}

// resolveAdapter merges adapter flags over config.
// Headers from both sources are merged; flags win per key.
func resolveAdapter(c *cli.Context, cfg *config.Config) (adapterChoice, error) {
	ac := configVal(cfg, func(c *config.Config) config.AdapterConfig { return c.Adapter })
	choice := adapterChoice{
		kind:      resolveString(c, "adapter", ac.Type),
		url:       resolveString(c, "adapter-url", ac.URL),
		channel:   resolveString(c, "adapter-channel", ac.Channel),
		keyPrefix: resolveString(c, "adapter-key-prefix", ac.KeyPrefix),
		timeout:   resolveDuration(c, "adapter-timeout", ac.Timeout.Duration),
		retries:   c.Int("adapter-retries"),
		headers:   map[string]string{},
	}
	if !c.IsSet("adapter-retries") && ac.Retries != nil {
		choice.retries = *ac.Retries
	}
	for k, v := range ac.Headers {
		choice.headers[k] = v
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return choice, fmt.Errorf("invalid --adapter-header %q (format: Key=Value)", h)
		}
		choice.headers[strings.TrimSpace(k)] = v
	}
	return choice, choice.validate()
}

func (a adapterChoice) validate() error {
	switch a.kind {
	case "":
		return nil
	case "webhook", "redis":
	default:
		return fmt.Errorf("--adapter must be webhook or redis, got %q", a.kind)
	}
	if a.url == "" {
		return fmt.Errorf("--adapter-url is required for the %s adapter", a.kind)
	}
	if a.retries < 0 {
		return fmt.Errorf("--adapter-retries must be >= 0, got %d", a.retries)
	}
	return nil
}

// buildAdapter creates the configured adapter, or nil when none is set.
func buildAdapter(a adapterChoice) (adapter.Adapter, error) {
	switch a.kind {
	case "":
		return nil, nil
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     a.url,
			Headers: a.headers,
			Timeout: a.timeout,
			Retries: a.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:       a.url,
			Channel:   a.channel,
			KeyPrefix: a.keyPrefix,
			Timeout:   a.timeout,
			Retries:   a.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter: %s", a.kind)
	}
}
