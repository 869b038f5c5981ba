// Package reader provides read-only data access for dockpull commands:
// pull history and metrics from the report dataset, recorded pull state,
// and replay of recorded event frames.
package reader

import (
	"context"
	"errors"
	"time"

	"github.com/justapithecus/lode/lode"

	dplode "github.com/pithecene-io/dockpull/lode"
	"github.com/pithecene-io/dockpull/state"
)

// Reader abstracts read-only data access for CLI commands.
type Reader interface {
	// History lists pull reports newest first.
	History(ctx context.Context, opts HistoryOptions) ([]HistoryItem, error)
	// Metrics returns the latest metrics record, optionally for one pull.
	Metrics(ctx context.Context, pullID string) (*dplode.MetricsRecord, error)
	// Status lists the recorded state of every image, or one image.
	Status(image string) ([]StatusItem, error)
}

// DataReader reads reports from a Lode dataset and state from a state store.
// Either source may be nil; the methods that need it then return
// ErrNoSource.
type DataReader struct {
	dataset lode.Dataset
	store   *state.Store
}

// ErrNoSource is returned when the backing source of a query is not configured.
var ErrNoSource = errors.New("data source not configured")

// New creates a reader over the given sources.
func New(dataset lode.Dataset, store *state.Store) *DataReader {
	return &DataReader{dataset: dataset, store: store}
}

// History lists pull reports newest first. An empty dataset yields an
// empty list.
func (r *DataReader) History(ctx context.Context, opts HistoryOptions) ([]HistoryItem, error) {
	if r.dataset == nil {
		return nil, ErrNoSource
	}
	reports, err := dplode.QueryReports(ctx, r.dataset, dplode.HistoryFilter{
		Image:   opts.Image,
		Outcome: opts.Outcome,
		Limit:   opts.Limit,
	})
	if errors.Is(err, dplode.ErrNoReportsFound) {
		return []HistoryItem{}, nil
	}
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(reports))
	for _, rep := range reports {
		items = append(items, HistoryItem{
			PullID:     rep.PullID,
			Image:      rep.Image,
			Outcome:    rep.Outcome,
			Restarts:   rep.Restarts,
			Duration:   (time.Duration(rep.DurationMs) * time.Millisecond).String(),
			FinishedAt: rep.FinishedAt,
			Message:    rep.Message,
		})
	}
	return items, nil
}

// Metrics returns the latest metrics record.
func (r *DataReader) Metrics(ctx context.Context, pullID string) (*dplode.MetricsRecord, error) {
	if r.dataset == nil {
		return nil, ErrNoSource
	}
	return dplode.QueryLatestMetrics(ctx, r.dataset, pullID)
}

// Status lists recorded image state sorted by image. With a non-empty
// image only that image is returned; an unknown image yields an empty list.
func (r *DataReader) Status(image string) ([]StatusItem, error) {
	if r.store == nil {
		return nil, ErrNoSource
	}
	entries, err := r.store.List()
	if err != nil {
		return nil, err
	}

	items := make([]StatusItem, 0, len(entries))
	for _, e := range entries {
		if image != "" && e.Image != image {
			continue
		}
		items = append(items, StatusItem{
			Image:   e.Image,
			PullOK:  e.PullOK,
			Outcome: e.Outcome,
			SavedAt: e.SavedAt,
			PullID:  e.PullID,
		})
	}
	return items, nil
}

var _ Reader = (*DataReader)(nil)
