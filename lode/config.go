// Package lode persists pull reports and metrics snapshots to a Lode dataset.
//
// Records are laid out with Hive partitions day/pull_id/record_kind and
// encoded as JSON lines. The same layout backs the filesystem, in-memory
// and S3 stores.
package lode

import (
	"errors"
	"time"
)

// DefaultDataset is the dataset ID used for pull reports.
const DefaultDataset = "dockpull"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"day", "pull_id", "record_kind"}

// DeriveDay computes the partition day from a pull start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds the partition values of one pull.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Day is derived from the pull start time (YYYY-MM-DD UTC).
	Day string
	// PullID identifies the pull.
	PullID string
}

// Validate checks that all partition values are present.
func (c Config) Validate() error {
	switch {
	case c.Dataset == "":
		return errors.New("lode config: dataset is required")
	case c.Day == "":
		return errors.New("lode config: day is required")
	case c.PullID == "":
		return errors.New("lode config: pull_id is required")
	}
	return nil
}
