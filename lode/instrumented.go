package lode

import (
	"context"
	"time"

	"github.com/pithecene-io/dockpull/metrics"
)

// InstrumentedWriter wraps a Writer and counts lode_write_success and
// lode_write_failure on a collector for every write.
type InstrumentedWriter struct {
	inner     Writer
	collector *metrics.Collector
}

// NewInstrumentedWriter wraps a writer with metrics instrumentation.
func NewInstrumentedWriter(inner Writer, collector *metrics.Collector) *InstrumentedWriter {
	return &InstrumentedWriter{inner: inner, collector: collector}
}

func (w *InstrumentedWriter) record(err error) error {
	if err != nil {
		w.collector.IncLodeWriteFailure()
	} else {
		w.collector.IncLodeWriteSuccess()
	}
	return err
}

// WriteReport delegates to the inner writer and records success or failure.
func (w *InstrumentedWriter) WriteReport(ctx context.Context, report *ReportRecord) error {
	return w.record(w.inner.WriteReport(ctx, report))
}

// WriteMetrics delegates to the inner writer and records success or failure.
// The snapshot is written as given, so it does not include its own write.
func (w *InstrumentedWriter) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	return w.record(w.inner.WriteMetrics(ctx, snap, completedAt))
}

// PutFile delegates to the inner writer and records success or failure.
func (w *InstrumentedWriter) PutFile(ctx context.Context, filename, contentType string, data []byte) error {
	return w.record(w.inner.PutFile(ctx, filename, contentType, data))
}

// Close delegates to the inner writer.
func (w *InstrumentedWriter) Close() error {
	return w.inner.Close()
}

var _ Writer = (*InstrumentedWriter)(nil)
