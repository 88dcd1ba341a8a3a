package master

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/rpc"
	"sync"

	"github.com/google/uuid"
	"github.com/prxssh/shardgrep/internal/task"
	"github.com/zeebo/errs"
)

var (
	// ErrBadReport rejects reports for unknown or already reported ranks.
	ErrBadReport = errs.Class("bad report")

	// ErrIncompleteShard marks ranks that never reached StatusComplete.
	ErrIncompleteShard = errs.Class("incomplete shard")
)

// Config holds the configuration parameters for the Master node.
type Config struct {
	// Workers is the number of ranks the barrier waits for.
	Workers int
}

// Master is the rendezvous point of a run.
//
// Every rank reports exactly once, in any order. Wait returns only after all
// of them have, and the results it returns are indexed by rank.
type Master struct {
	cfg    *Config
	logger *slog.Logger

	// mu guards the rank-indexed result vector during concurrent reports.
	mu sync.Mutex

	// results[r] is nil until rank r reports.
	results []*task.Result

	// workerIDs[r] is the identity of the worker that reported rank r.
	workerIDs []uuid.UUID

	arrived int

	// done is closed when the last rank reports.
	done chan struct{}
}

func New(cfg *Config, logger *slog.Logger) (*Master, error) {
	if cfg == nil {
		return nil, errors.New("master: config can't be nil")
	}

	if cfg.Workers < 1 {
		return nil, fmt.Errorf("master: worker count must be positive, got %d", cfg.Workers)
	}

	m := &Master{
		cfg:       cfg,
		logger:    logger,
		results:   make([]*task.Result, cfg.Workers),
		workerIDs: make([]uuid.UUID, cfg.Workers),
		done:      make(chan struct{}),
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	return m, nil
}

// Wait blocks until every rank has reported and returns their results in
// rank order.
//
// There is no timeout: a rank that never reports stalls Wait until ctx is
// done. In that case the ranks still missing are returned as
// StatusNotStarted together with the context error.
func (m *Master) Wait(ctx context.Context) ([]task.Result, error) {
	select {
	case <-m.done:
		return m.snapshot(), nil
	case <-ctx.Done():
	}

	select {
	case <-m.done:
		return m.snapshot(), nil
	default:
	}

	results := m.snapshot()
	for r := range results {
		if results[r].Status == task.StatusNotStarted && results[r].Cause == "" {
			results[r].Cause = "rank never reported"
		}
	}

	m.logger.Warn("barrier abandoned", "arrived", m.Arrived(), "workers", m.cfg.Workers)
	return results, fmt.Errorf("master: barrier abandoned: %w", ctx.Err())
}

// Arrived returns the number of ranks that have reported.
func (m *Master) Arrived() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.arrived
}

// Serve accepts rank reports over net/rpc on l until l is closed.
func (m *Master) Serve(l net.Listener) error {
	srv := rpc.NewServer()
	if err := srv.RegisterName("Master", m); err != nil {
		return err
	}

	m.logger.Info("master server started", "addr", l.Addr().String())

	err := http.Serve(l, srv)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (m *Master) snapshot() []task.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]task.Result, len(m.results))
	for r, res := range m.results {
		if res == nil {
			out[r] = task.Result{Rank: r, Status: task.StatusNotStarted}
			continue
		}
		out[r] = *res
	}
	return out
}
