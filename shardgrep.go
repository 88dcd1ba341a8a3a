// Package shardgrep searches a directory of files for every occurrence of a
// literal pattern. The sorted corpus is split into one contiguous shard per
// rank, ranks scan in parallel, and a coordinator merges their results into
// a single report ordered by rank and then by file name.
package shardgrep

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prxssh/shardgrep/api"
	"github.com/prxssh/shardgrep/internal/corpus"
	"github.com/prxssh/shardgrep/internal/master"
	"github.com/prxssh/shardgrep/internal/metrics"
	"github.com/prxssh/shardgrep/internal/report"
	"github.com/prxssh/shardgrep/internal/task"
	"github.com/prxssh/shardgrep/internal/worker"
	"github.com/prxssh/shardgrep/pkg/fs"
	"github.com/prxssh/shardgrep/pkg/kmp"
	"golang.org/x/sync/errgroup"
)

// Report is the merged result of a run.
type Report = report.Report

// OutputPath is where the merged report is written inside dir.
func OutputPath(dir string) string {
	return filepath.Join(dir, "output.txt")
}

type run struct {
	cfg     *Config
	id      uuid.UUID
	start   time.Time
	logger  *slog.Logger
	storer  api.Storer
	inst    *metrics.Instruments
	pattern *kmp.Pattern
}

// Run executes cfg.Role. For RoleLocal and RoleMaster it returns the merged
// report, which has also been written to OutputPath(cfg.OutputDir). A worker
// returns a nil report.
//
// Only run-fatal problems are returned as errors: an invalid config, an empty
// pattern (ErrInvalidPattern), an empty corpus (ErrEmptyCorpus), or output
// that cannot be written. Files that could not be read are listed in the
// report diagnostics instead.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	r := &run{
		cfg:    cfg,
		id:     uuid.New(),
		start:  time.Now(),
		logger: cfg.Logger,
		storer: cfg.Storer,
	}
	if r.logger == nil {
		r.logger = slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	r.logger = r.logger.With("run-id", r.id, "role", cfg.Role)

	if err := cfg.validate(); err != nil {
		r.logger.Error("Failed to validate config", "err", err)
		return nil, err
	}

	if r.storer == nil {
		r.storer = fs.NewLocalStorage()
	}

	pattern, err := kmp.CompileString(cfg.Pattern)
	if err != nil {
		r.logger.Error("Failed to compile pattern", "err", err)
		return nil, err
	}
	r.pattern = pattern

	if r.inst, err = metrics.New(cfg.MeterProvider); err != nil {
		return nil, fmt.Errorf("shardgrep: failed to create instruments: %w", err)
	}

	switch cfg.Role {
	case RoleWorker:
		r.logger.Info("Starting worker", "rank", cfg.Rank, "workers", cfg.Workers)
		return nil, r.runWorker(ctx)
	case RoleMaster:
		r.logger.Info("Starting master", "addr", cfg.MasterAddr, "workers", cfg.Workers)
		return r.runMaster(ctx)
	default:
		r.logger.Info("Starting local search", "workers", cfg.Workers)
		return r.runLocal(ctx)
	}
}

// plan loads the corpus and splits it. Both failures abort the run before any
// rank starts.
func (r *run) plan() (corpus.Corpus, []task.Shard, error) {
	c, err := corpus.Load(r.storer, r.cfg.InputDir)
	if err != nil {
		r.logger.Error("Failed to load corpus", "err", err)
		return nil, nil, err
	}

	shards, err := task.Plan(len(c), r.cfg.Workers)
	if err != nil {
		r.logger.Error("Failed to plan shards", "files", len(c), "err", err)
		return nil, nil, err
	}

	r.logger.Info("corpus planned", "files", len(c), "workers", len(shards), "pattern-len", r.pattern.Len())
	return c, shards, nil
}

func (r *run) newWorker(rank int) (*worker.Worker, error) {
	return worker.New(
		r.storer,
		&worker.Config{
			Rank:      rank,
			Pattern:   r.pattern,
			ChunkSize: int(r.cfg.ChunkSize),
			OutputDir: r.cfg.OutputDir,
		},
		r.logger,
		r.inst,
	)
}

func (r *run) runLocal(ctx context.Context) (*Report, error) {
	c, shards, err := r.plan()
	if err != nil {
		return nil, err
	}

	m, err := master.New(&master.Config{Workers: len(shards)}, r.logger)
	if err != nil {
		return nil, err
	}

	workers := make([]*worker.Worker, len(shards))
	for i, s := range shards {
		if workers[i], err = r.newWorker(s.Rank); err != nil {
			return nil, err
		}
	}

	var grp errgroup.Group
	for i, s := range shards {
		w, entries := workers[i], c.Slice(s)
		grp.Go(func() error {
			_, err := w.Submit(m, w.Run(ctx, entries))
			return err
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	results, err := m.Wait(ctx)
	if err != nil {
		return nil, err
	}

	return r.finish(results)
}

func (r *run) runMaster(ctx context.Context) (*Report, error) {
	if _, _, err := r.plan(); err != nil {
		return nil, err
	}

	m, err := master.New(&master.Config{Workers: r.cfg.Workers}, r.logger)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", r.cfg.MasterAddr)
	if err != nil {
		return nil, err
	}

	served := make(chan error, 1)
	go func() { served <- m.Serve(listener) }()

	results, waitErr := m.Wait(ctx)

	listener.Close()
	if err := <-served; err != nil {
		r.logger.Warn("master server stopped", "err", err)
	}

	rep, err := r.finish(results)
	if err != nil {
		return nil, err
	}

	return rep, waitErr
}

// runWorker scans this process's shard and reports it. Problems before the
// scan starts are reported to the master as a failed rank rather than
// silently dropped.
func (r *run) runWorker(ctx context.Context) error {
	w, err := r.newWorker(r.cfg.Rank)
	if err != nil {
		return err
	}
	remote := worker.NewRemote(ctx, r.cfg.MasterAddr)

	res, err := r.scanOwnShard(ctx, w)
	if err != nil {
		r.logger.Error("worker cannot scan its shard", "err", err)
		res = task.Result{Rank: r.cfg.Rank, Status: task.StatusFailed, Cause: err.Error()}
	}

	_, err = w.Submit(remote, res)
	return err
}

func (r *run) scanOwnShard(ctx context.Context, w *worker.Worker) (task.Result, error) {
	c, err := corpus.Load(r.storer, r.cfg.InputDir)
	if err != nil {
		return task.Result{}, err
	}

	shard, err := task.ShardFor(len(c), r.cfg.Workers, r.cfg.Rank)
	if err != nil {
		return task.Result{}, err
	}

	return w.Run(ctx, c.Slice(shard)), nil
}

// finish merges the gathered results, writes the merged output once, and logs
// the per-rank diagnostics.
func (r *run) finish(results []task.Result) (*Report, error) {
	rep := master.Merge(results)
	rep.RunID = r.id

	path := OutputPath(r.cfg.OutputDir)
	out, err := r.storer.OpenWrite(path)
	if err != nil {
		return nil, fmt.Errorf("shardgrep: failed to open output %s: %w", path, err)
	}

	if _, err := rep.WriteTo(out); err != nil {
		out.Close()
		return nil, fmt.Errorf("shardgrep: failed to write output %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("shardgrep: failed to close output %s: %w", path, err)
	}

	rep.Elapsed = time.Since(r.start)

	master.LogDiagnostics(r.logger, rep)
	r.logger.Info(
		"output generation complete",
		"path", path,
		"files", len(rep.Files),
		"matches", rep.Matches(),
		"skipped", len(rep.Failures()),
		"digest", fmt.Sprintf("%016x", rep.Digest()),
		"elapsed", rep.Elapsed,
	)

	return rep, nil
}
