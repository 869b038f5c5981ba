// Package redis implements a Redis pub/sub completion adapter.
//
// Publishes pull completion events as JSON to a configurable Redis channel
// and optionally keeps the latest event per image under a key.
// Retries with exponential backoff on connection errors.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/pithecene-io/dockpull/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "dockpull:pull_completed"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: dockpull:pull_completed).
	Channel string
	// KeyPrefix, when set, stores the latest event of each image at
	// KeyPrefix+image.
	KeyPrefix string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
	// Backoff is the base retry delay (default 500ms).
	Backoff time.Duration
}

// Adapter publishes pull completion events via Redis PUBLISH.
type Adapter struct {
	config Config
	client goredis.UniversalClient
}

// New creates a Redis pub/sub adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	cfg, err = withDefaults(cfg)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// NewWithClient creates an adapter over an existing client.
// The adapter takes ownership of the client and closes it on Close.
func NewWithClient(client goredis.UniversalClient, cfg Config) (*Adapter, error) {
	if client == nil {
		return nil, errors.New("redis adapter requires a client")
	}
	cfg, err := withDefaults(cfg)
	if err != nil {
		return nil, err
	}
	return &Adapter{config: cfg, client: client}, nil
}

func withDefaults(cfg Config) (Config, error) {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return cfg, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = adapter.DefaultBackoff
	}
	return cfg, nil
}

// Publish sends the event as a JSON PUBLISH to the configured channel.
// Retries with exponential backoff on failures.
func (a *Adapter) Publish(ctx context.Context, event *adapter.PullCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	attempts := 0
	backoff := retry.WithMaxRetries(uint64(a.config.Retries), retry.NewExponential(a.config.Backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()

		if err := a.send(publishCtx, event.Image, body); err != nil {
			if errors.Is(err, goredis.ErrClosed) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("redis: context canceled: %w", ctx.Err())
	}
	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, err)
}

func (a *Adapter) send(ctx context.Context, image string, body []byte) error {
	if a.config.KeyPrefix == "" || image == "" {
		return a.client.Publish(ctx, a.config.Channel, body).Err()
	}
	_, err := a.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, a.config.KeyPrefix+image, body, 0)
		pipe.Publish(ctx, a.config.Channel, body)
		return nil
	})
	return err
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
