package lode

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/justapithecus/lode/lode"
)

// ErrNoReportsFound is returned when no pull_report record matches.
var ErrNoReportsFound = errors.New("no pull reports found")

// ErrNoMetricsFound is returned when no metrics record matches.
var ErrNoMetricsFound = errors.New("no metrics records found")

// HistoryFilter narrows a report query. Zero fields match everything.
type HistoryFilter struct {
	Image   string
	PullID  string
	Outcome string
	// Limit caps the number of reports returned; 0 means no limit.
	Limit int
}

func (f HistoryFilter) matches(r *ReportRecord) bool {
	switch {
	case f.Image != "" && r.Image != f.Image:
		return false
	case f.PullID != "" && r.PullID != f.PullID:
		return false
	case f.Outcome != "" && r.Outcome != f.Outcome:
		return false
	}
	return true
}

// QueryReports returns the matching pull reports, newest first.
// Returns ErrNoReportsFound if none match.
func QueryReports(ctx context.Context, ds lode.Dataset, filter HistoryFilter) ([]ReportRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "dockpull/snapshots")
	}

	seen := make(map[string]struct{})
	var reports []ReportRecord
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, "record_kind", RecordKindPullReport) {
			continue
		}
		if !snapshotMatchesFilter(snap, "pull_id", filter.PullID) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("dockpull/snapshot/%s", snap.ID))
		}

		// Record fields are authoritative; manifest paths only pre-filter.
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKindPullReport {
				continue
			}
			var r ReportRecord
			if err := fromRecordMap(m, &r); err != nil {
				return nil, err
			}
			if !filter.matches(&r) {
				continue
			}
			if _, dup := seen[r.PullID]; dup {
				continue
			}
			seen[r.PullID] = struct{}{}
			reports = append(reports, r)
		}
	}

	if len(reports) == 0 {
		return nil, ErrNoReportsFound
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].FinishedAt.After(reports[j].FinishedAt)
	})
	if filter.Limit > 0 && len(reports) > filter.Limit {
		reports = reports[:filter.Limit]
	}
	return reports, nil
}

// QueryLatestMetrics returns the most recent metrics record, optionally
// restricted to one pull.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, pullID string) (*MetricsRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "dockpull/snapshots")
	}

	// Snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "record_kind", RecordKindMetrics) {
			continue
		}
		if !snapshotMatchesFilter(snap, "pull_id", pullID) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("dockpull/snapshot/%s", snap.ID))
		}
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKindMetrics {
				continue
			}
			if pullID != "" && toString(m["pull_id"]) != pullID {
				continue
			}
			var rec MetricsRecord
			if err := fromRecordMap(m, &rec); err != nil {
				return nil, err
			}
			return &rec, nil
		}
	}

	return nil, ErrNoMetricsFound
}
