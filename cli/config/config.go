package config

import (
	"fmt"
	"time"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "dockpull.yaml"

// Config represents a dockpull.yaml file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Image       string           `yaml:"image"`
	Docker      string           `yaml:"docker"`
	UseScript   *bool            `yaml:"use_script"`
	StateDir    string           `yaml:"state_dir"`
	GracePeriod Duration         `yaml:"grace_period"`
	Watchdog    WatchdogConfig   `yaml:"watchdog"`
	Probe       ProbeConfig      `yaml:"probe"`
	Transcript  TranscriptConfig `yaml:"transcript"`
	Progress    ProgressConfig   `yaml:"progress"`
	Storage     StorageConfig    `yaml:"storage"`
	Adapter     AdapterConfig    `yaml:"adapter"`
}

// WatchdogConfig tunes stall detection.
type WatchdogConfig struct {
	Interval       Duration `yaml:"interval"`
	StallThreshold Duration `yaml:"stall_threshold"`
}

// ProbeConfig tunes the registry reachability probe.
type ProbeConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// TranscriptConfig bounds the transcript.
type TranscriptConfig struct {
	MaxLines int `yaml:"max_lines"`
}

// ProgressConfig overrides the completion ratio weights.
type ProgressConfig struct {
	ActiveWeight *float64 `yaml:"active_weight"`
	RunningCap   *float64 `yaml:"running_cap"`
}

// StorageConfig holds report storage defaults.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds completion adapter defaults.
type AdapterConfig struct {
	Type      string            `yaml:"type"`
	URL       string            `yaml:"url"`
	Channel   string            `yaml:"channel,omitempty"`
	KeyPrefix string            `yaml:"key_prefix,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Timeout   Duration          `yaml:"timeout,omitempty"`
	Retries   *int              `yaml:"retries,omitempty"`
}

// Validate rejects values no command could use.
func (c *Config) Validate() error {
	if c.Transcript.MaxLines < 0 {
		return fmt.Errorf("transcript.max_lines must be >= 0, got %d", c.Transcript.MaxLines)
	}
	if w := c.Progress.ActiveWeight; w != nil && (*w <= 0 || *w > 1) {
		return fmt.Errorf("progress.active_weight must be within (0, 1], got %v", *w)
	}
	if cp := c.Progress.RunningCap; cp != nil && (*cp <= 0 || *cp > 1) {
		return fmt.Errorf("progress.running_cap must be within (0, 1], got %v", *cp)
	}
	switch c.Storage.Backend {
	case "", "fs", "s3", "memory":
	default:
		return fmt.Errorf("storage.backend must be fs, s3 or memory, got %q", c.Storage.Backend)
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		return fmt.Errorf("adapter.type must be webhook or redis, got %q", c.Adapter.Type)
	}
	if r := c.Adapter.Retries; r != nil && *r < 0 {
		return fmt.Errorf("adapter.retries must be >= 0, got %d", *r)
	}
	return nil
}

// Duration wraps time.Duration for YAML string parsing (e.g. "5s", "1m30s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}
