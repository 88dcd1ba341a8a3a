package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prxssh/shardgrep/api"
	"github.com/prxssh/shardgrep/internal/corpus"
	"github.com/prxssh/shardgrep/internal/metrics"
	"github.com/prxssh/shardgrep/internal/report"
	"github.com/prxssh/shardgrep/internal/task"
	"github.com/prxssh/shardgrep/pkg/kmp"
	"github.com/zeebo/errs"
)

// ErrFileRead wraps per-file I/O failures. They are recorded and skipped,
// never fatal to the shard.
var ErrFileRead = errs.Class("file read")

// DefaultChunkSize is the read buffer size used when Config.ChunkSize is 0.
const DefaultChunkSize = 64 * 1024

// Config holds the runtime configuration of a Worker.
type Config struct {
	// Rank is this worker's zero-based identity among all workers.
	Rank int

	// Pattern is the compiled search pattern, shared read-only by all ranks.
	Pattern *kmp.Pattern

	// ChunkSize is the number of bytes read from a file per Feed call.
	ChunkSize int

	// OutputDir is where the partial output of this rank is written via the
	// Storer.
	OutputDir string
}

// Worker scans one shard of the corpus.
type Worker struct {
	cfg    *Config
	logger *slog.Logger

	// id is a unique identifier generated at startup.
	id uuid.UUID

	// fs is the abstraction for the underlying storage system. The worker
	// reads corpus files and writes its partial output through it.
	fs api.Storer

	inst *metrics.Instruments
}

func New(fs api.Storer, cfg *Config, logger *slog.Logger, inst *metrics.Instruments) (*Worker, error) {
	if cfg == nil {
		return nil, errors.New("worker: config can't be nil")
	}

	if fs == nil {
		return nil, errors.New("worker: fs is required")
	}

	if cfg.Pattern == nil {
		return nil, errors.New("worker: pattern is required")
	}

	if cfg.Rank < 0 {
		return nil, fmt.Errorf("worker: invalid rank %d", cfg.Rank)
	}

	if inst == nil {
		var err error
		if inst, err = metrics.New(nil); err != nil {
			return nil, err
		}
	}

	c := *cfg
	w := &Worker{
		cfg:    &c,
		logger: logger,
		id:     uuid.New(),
		fs:     fs,
		inst:   inst,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("rank", cfg.Rank, "worker-id", w.id)

	if w.cfg.ChunkSize <= 0 {
		w.cfg.ChunkSize = DefaultChunkSize
	}

	return w, nil
}

// ID returns the worker's unique identifier.
func (w *Worker) ID() uuid.UUID { return w.id }

// PartialOutputPath is where rank writes its blocks inside dir.
func PartialOutputPath(dir string, rank int) string {
	return filepath.Join(dir, "output-rank"+strconv.Itoa(rank)+".txt")
}

// Run scans entries in order and returns the shard's result. It never returns
// an error: shard-wide problems are reported through the result status so the
// coordinator can account for every rank.
func (w *Worker) Run(ctx context.Context, entries []corpus.Entry) task.Result {
	start := time.Now()
	res := task.Result{Rank: w.cfg.Rank, Status: task.StatusNotStarted}

	defer func() {
		w.inst.Worker(ctx, w.cfg.Rank, time.Since(start))
	}()

	path := PartialOutputPath(w.cfg.OutputDir, w.cfg.Rank)
	out, err := w.fs.OpenWrite(path)
	if err != nil {
		res.Status = task.StatusFailed
		res.Cause = fmt.Sprintf("failed to open partial output %s: %v", path, err)
		w.logger.Error("worker failed before scanning", "err", err)
		return res
	}

	w.logger.Info("scanning shard", "files", len(entries))

	interrupted, err := w.scanShard(ctx, entries, report.NewEncoder(out), &res)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close partial output %s: %w", path, cerr)
	}

	switch {
	case err != nil:
		res.Status = task.StatusFailed
		res.Cause = err.Error()
		w.logger.Error("worker failed", "err", err)
	case interrupted:
		w.logger.Warn("worker interrupted", "scanned", len(res.Files), "files", len(entries))
	default:
		res.Status = task.StatusComplete
		w.logger.Info(
			"shard complete",
			"files", len(res.Files),
			"failed", len(res.Failures),
			"matches", res.Matches(),
			"bytes", res.BytesScanned,
			"elapsed", time.Since(start),
		)
	}

	return res
}

func (w *Worker) scanShard(
	ctx context.Context,
	entries []corpus.Entry,
	enc *report.Encoder,
	res *task.Result,
) (interrupted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	matcher := kmp.NewMatcher(w.cfg.Pattern)
	buf := make([]byte, w.cfg.ChunkSize)

	for _, e := range entries {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		res.Status = task.StatusStarted

		offsets, n, err := w.scanFile(e, matcher, buf)
		res.BytesScanned += n
		if err != nil {
			res.Failures = append(res.Failures, task.Failure{Name: e.Name, Cause: err.Error()})
			w.inst.Failure(ctx, w.cfg.Rank, n)
			w.logger.Warn("skipping file", "file", e.Name, "err", err)
			continue
		}

		f := task.FileResult{Name: e.Name, Offsets: offsets}
		res.Files = append(res.Files, f)
		w.inst.File(ctx, w.cfg.Rank, n, len(offsets))
		w.logger.Debug("file scanned", "file", e.Name, "bytes", n, "matches", len(offsets))

		if err := enc.Encode(f); err != nil {
			return false, fmt.Errorf("failed to write partial output: %w", err)
		}
	}

	if err := enc.Flush(); err != nil {
		return false, fmt.Errorf("failed to write partial output: %w", err)
	}

	return interrupted, nil
}

// scanFile streams one file through m. The stream is closed before it
// returns, whatever the outcome. n counts the bytes fed to the matcher.
func (w *Worker) scanFile(e corpus.Entry, m *kmp.Matcher, buf []byte) (offsets []int64, n int64, err error) {
	rc, err := w.fs.OpenRead(e.Path)
	if err != nil {
		return nil, 0, ErrFileRead.Wrap(err)
	}
	defer rc.Close()

	m.Reset()
	for {
		k, rerr := rc.Read(buf)
		if k > 0 {
			offsets = append(offsets, m.Feed(buf[:k], n)...)
			n += int64(k)
		}

		if rerr == io.EOF {
			return offsets, n, nil
		}
		if rerr != nil {
			return nil, n, ErrFileRead.Wrap(rerr)
		}
	}
}
