package lode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/dockpull/metrics"
	"github.com/pithecene-io/dockpull/types"
)

// Writer persists the records of one pull.
type Writer interface {
	// WriteReport writes the pull_report record.
	WriteReport(ctx context.Context, report *ReportRecord) error
	// WriteMetrics writes a metrics snapshot record.
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error
	// PutFile writes a sidecar file next to the pull's records.
	PutFile(ctx context.Context, filename, contentType string, data []byte) error
	// Close releases writer resources.
	Close() error
}

// ReportClient is a Lode-backed Writer.
type ReportClient struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewReportClient creates a report client with filesystem storage rooted at root.
func NewReportClient(cfg Config, root string) (*ReportClient, error) {
	return NewReportClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewReportClientWithFactory creates a report client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewReportClientWithFactory(cfg Config, factory lode.StoreFactory) (*ReportClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *ReportClient {
	return &ReportClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

// newDataset opens the dataset with the shared layout and codec.
func newDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewReportRecord builds the report of a finished pull.
func NewReportRecord(meta *types.PullMeta, outcome *types.PullOutcome, startedAt, finishedAt time.Time) *ReportRecord {
	r := &ReportRecord{
		RecordKind:      RecordKindPullReport,
		ContractVersion: types.ContractVersion,
		PullID:          meta.PullID,
		Image:           meta.Image,
		Day:             DeriveDay(startedAt),
		StartedAt:       startedAt.UTC(),
		FinishedAt:      finishedAt.UTC(),
		DurationMs:      finishedAt.Sub(startedAt).Milliseconds(),
	}
	if outcome != nil {
		r.Outcome = string(outcome.Status)
		r.OK = outcome.OK()
		r.Message = outcome.Message
		r.ExitCode = outcome.ExitCode
	}
	return r
}

// WriteReport writes the pull_report record.
// Partition values of the client config take precedence over the record's.
func (c *ReportClient) WriteReport(ctx context.Context, report *ReportRecord) error {
	rec := *report
	rec.RecordKind = RecordKindPullReport
	rec.PullID = c.config.PullID
	rec.Day = c.config.Day

	m, err := toRecordMap(rec)
	if err != nil {
		return err
	}
	if _, err := c.dataset.Write(ctx, []any{m}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindPullReport))
	}
	return nil
}

// WriteMetrics writes a metrics snapshot record.
func (c *ReportClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	m, err := toRecordMap(MetricsRecord{
		RecordKind:  RecordKindMetrics,
		PullID:      c.config.PullID,
		Day:         c.config.Day,
		CompletedAt: completedAt.UTC(),
		Snapshot:    snap,
	})
	if err != nil {
		return err
	}
	if _, err := c.dataset.Write(ctx, []any{m}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindMetrics))
	}
	return nil
}

// StoragePath returns the partition prefix of this pull's records.
func (c *ReportClient) StoragePath() string {
	return fmt.Sprintf("datasets/%s/partitions/day=%s/pull_id=%s",
		c.config.Dataset, c.config.Day, c.config.PullID)
}

func (c *ReportClient) partitionPath(kind string) string {
	return c.StoragePath() + "/record_kind=" + kind
}

// Close releases client resources.
func (c *ReportClient) Close() error {
	return nil
}

var _ Writer = (*ReportClient)(nil)
