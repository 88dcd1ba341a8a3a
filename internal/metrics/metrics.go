package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scope = "github.com/prxssh/shardgrep"

// Instruments holds the counters recorded by workers.
type Instruments struct {
	FilesScanned   metric.Int64Counter
	FileFailures   metric.Int64Counter
	BytesScanned   metric.Int64Counter
	Matches        metric.Int64Counter
	WorkerDuration metric.Float64Histogram
}

// New creates the instruments on mp, or on the global provider when mp is nil.
func New(mp metric.MeterProvider) (*Instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(scope)

	files, err1 := meter.Int64Counter("shardgrep_files_scanned_total",
		metric.WithDescription("Corpus files scanned to the end"))
	failures, err2 := meter.Int64Counter("shardgrep_file_failures_total",
		metric.WithDescription("Corpus files skipped after a read error"))
	bytes, err3 := meter.Int64Counter("shardgrep_bytes_scanned_total",
		metric.WithDescription("Bytes fed to the matcher"), metric.WithUnit("By"))
	matches, err4 := meter.Int64Counter("shardgrep_matches_total",
		metric.WithDescription("Pattern occurrences found"))
	duration, err5 := meter.Float64Histogram("shardgrep_worker_duration_seconds",
		metric.WithDescription("Wall-clock time spent by a worker on its shard"), metric.WithUnit("s"))

	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return nil, err
	}

	return &Instruments{
		FilesScanned:   files,
		FileFailures:   failures,
		BytesScanned:   bytes,
		Matches:        matches,
		WorkerDuration: duration,
	}, nil
}

// File records one scanned file.
func (i *Instruments) File(ctx context.Context, rank int, n int64, matches int) {
	opt := rankAttr(rank)
	i.FilesScanned.Add(ctx, 1, opt)
	i.BytesScanned.Add(ctx, n, opt)
	i.Matches.Add(ctx, int64(matches), opt)
}

// Failure records one skipped file. Bytes read before the error still count.
func (i *Instruments) Failure(ctx context.Context, rank int, n int64) {
	opt := rankAttr(rank)
	i.FileFailures.Add(ctx, 1, opt)
	i.BytesScanned.Add(ctx, n, opt)
}

// Worker records how long a rank took.
func (i *Instruments) Worker(ctx context.Context, rank int, d time.Duration) {
	i.WorkerDuration.Record(ctx, d.Seconds(), rankAttr(rank))
}

func rankAttr(rank int) metric.MeasurementOption {
	return metric.WithAttributes(attribute.Int("rank", rank))
}
