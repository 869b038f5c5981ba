package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lodelib "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/cli/config"
	"github.com/pithecene-io/dockpull/lode"
	"github.com/pithecene-io/dockpull/state"
)

// storageChoice holds resolved report storage settings.
type storageChoice struct {
	dataset   string
	backend   string // fs, s3 or memory
	path      string // fs: directory, s3: bucket/prefix
	region    string
	endpoint  string
	pathStyle bool
}

// resolveStateDir returns --state-dir, then state_dir, then state.DefaultDir.
func resolveStateDir(c *cli.Context, cfg *config.Config) (string, error) {
	if dir := resolveString(c, "state-dir", configVal(cfg, func(c *config.Config) string { return c.StateDir })); dir != "" {
		return dir, nil
	}
	return state.DefaultDir()
}

// resolveStorage merges storage flags over config over defaults.
// The fs backend defaults to <stateDir>/reports.
func resolveStorage(c *cli.Context, cfg *config.Config, stateDir string) storageChoice {
	sc := configVal(cfg, func(c *config.Config) config.StorageConfig { return c.Storage })
	s := storageChoice{
		dataset:   resolveString(c, "dataset", sc.Dataset),
		backend:   resolveString(c, "storage-backend", sc.Backend),
		path:      resolveString(c, "storage-path", sc.Path),
		region:    resolveString(c, "storage-region", sc.Region),
		endpoint:  resolveString(c, "storage-endpoint", sc.Endpoint),
		pathStyle: resolveBool(c, "storage-s3-path-style", &sc.S3PathStyle),
	}
	if s.dataset == "" {
		s.dataset = lode.DefaultDataset
	}
	if s.backend == "" {
		s.backend = "fs"
	}
	if s.backend == "fs" && s.path == "" && stateDir != "" {
		s.path = filepath.Join(stateDir, "reports")
	}
	return s
}

// validate reports an actionable error for unusable storage settings.
func (s storageChoice) validate() error {
	switch s.backend {
	case "fs":
		if s.path == "" {
			return fmt.Errorf("--storage-path is required for the fs backend")
		}
	case "s3":
		if s.path == "" {
			return fmt.Errorf("--storage-path is required for the s3 backend (format: bucket/prefix)")
		}
		if bucket, _ := lode.ParseS3Path(s.path); bucket == "" {
			return fmt.Errorf("--storage-path %q has an empty bucket", s.path)
		}
	case "memory":
	default:
		return fmt.Errorf("--storage-backend must be fs, s3 or memory, got %q", s.backend)
	}
	return nil
}

func (s storageChoice) s3Config() lode.S3Config {
	bucket, prefix := lode.ParseS3Path(s.path)
	return lode.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       s.region,
		Endpoint:     s.endpoint,
		UsePathStyle: s.pathStyle,
	}
}

// openWriter creates the report client for one pull.
func openWriter(ctx context.Context, s storageChoice, cfg lode.Config) (*lode.ReportClient, error) {
	switch s.backend {
	case "fs":
		if err := os.MkdirAll(s.path, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
		return lode.NewReportClient(cfg, s.path)
	case "s3":
		return lode.NewReportS3Client(ctx, cfg, s.s3Config())
	case "memory":
		return lode.NewReportClientWithFactory(cfg, lodelib.NewMemoryFactory())
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", s.backend)
	}
}

// openDataset opens the report dataset for reading.
// A missing fs directory yields nil, meaning no reports exist yet.
func openDataset(ctx context.Context, s storageChoice) (lodelib.Dataset, error) {
	switch s.backend {
	case "fs":
		if _, err := os.Stat(s.path); os.IsNotExist(err) {
			return nil, nil
		}
		return lode.NewReadDatasetFS(s.dataset, s.path)
	case "s3":
		return lode.NewReadDatasetS3(ctx, s.dataset, s.s3Config())
	case "memory":
		return lode.NewReadDataset(s.dataset, lodelib.NewMemoryFactory())
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", s.backend)
	}
}

// buildStoragePath returns the URI of a pull's partition for notifications.
func buildStoragePath(s storageChoice, relPath string) string {
	switch s.backend {
	case "fs":
		abs, err := filepath.Abs(s.path)
		if err != nil {
			abs = s.path
		}
		return "file://" + filepath.ToSlash(filepath.Join(abs, relPath))
	case "s3":
		bucket, prefix := lode.ParseS3Path(s.path)
		key := relPath
		if prefix = strings.Trim(prefix, "/"); prefix != "" {
			key = prefix + "/" + relPath
		}
		return "s3://" + bucket + "/" + key
	default:
		return ""
	}
}
