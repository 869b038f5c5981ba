package lode

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pithecene-io/dockpull/metrics"
)

// RecordKind discriminator values. record_kind is also a partition key.
const (
	RecordKindPullReport = "pull_report"
	RecordKindMetrics    = "metrics"
)

// ReportRecord is the storage format of a finished pull.
type ReportRecord struct {
	RecordKind      string    `json:"record_kind"`
	ContractVersion string    `json:"contract_version"`
	PullID          string    `json:"pull_id"`
	Image           string    `json:"image"`
	Day             string    `json:"day"`
	Outcome         string    `json:"outcome"`
	OK              bool      `json:"ok"`
	Message         string    `json:"message"`
	ExitCode        int       `json:"exit_code"`
	Ratio           float64   `json:"ratio"`
	Generations     int64     `json:"generations"`
	Restarts        int64     `json:"restarts"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationMs      int64     `json:"duration_ms"`
	TranscriptLines int       `json:"transcript_lines"`
}

// MetricsRecord is the storage format of a metrics snapshot.
type MetricsRecord struct {
	RecordKind  string    `json:"record_kind"`
	PullID      string    `json:"pull_id"`
	Day         string    `json:"day"`
	CompletedAt time.Time `json:"completed_at"`
	metrics.Snapshot
}

// toRecordMap converts a record struct to the map form Lode's Hive layout
// partitions on.
func toRecordMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return m, nil
}

// fromRecordMap decodes a stored record into dst.
func fromRecordMap(m map[string]any, dst any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
