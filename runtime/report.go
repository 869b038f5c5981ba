package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/dockpull/metrics"
	"github.com/pithecene-io/dockpull/types"
)

// PullReport is the structured JSON report written by `pull --report`.
type PullReport struct {
	PullID      string              `json:"pull_id"`
	Image       string              `json:"image"`
	Outcome     types.OutcomeStatus `json:"outcome"`
	Message     string              `json:"message"`
	ExitCode    int                 `json:"exit_code"`
	DockerExit  int                 `json:"docker_exit_code"`
	DurationMs  int64               `json:"duration_ms"`
	Generations int64               `json:"generations"`
	Restarts    int                 `json:"restarts"`
	Ratio       float64             `json:"ratio"`
	StoragePath string              `json:"storage_path,omitempty"`
	Metrics     *metrics.Snapshot   `json:"metrics"`
	Transcript  string              `json:"transcript,omitempty"`
}

// BuildPullReport composes a PullReport from a Result and metrics snapshot.
// exitCode is the process exit code that will be returned to the caller.
func BuildPullReport(result *Result, snap metrics.Snapshot, exitCode int, storagePath string) *PullReport {
	report := &PullReport{
		PullID:      result.Meta.PullID,
		Image:       result.Meta.Image,
		ExitCode:    exitCode,
		DockerExit:  -1,
		DurationMs:  result.Duration.Milliseconds(),
		Generations: result.Generations,
		Restarts:    result.Restarts,
		Ratio:       result.Ratio,
		StoragePath: storagePath,
		Metrics:     &snap,
		Transcript:  result.Transcript,
	}
	if result.Outcome != nil {
		report.Outcome = result.Outcome.Status
		report.Message = result.Outcome.Message
		report.DockerExit = result.Outcome.ExitCode
	}
	return report
}

// WritePullReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WritePullReport(report *PullReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writePullReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writePullReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writePullReportTo(report *PullReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
