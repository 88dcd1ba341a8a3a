package master

import (
	"github.com/prxssh/shardgrep/internal/rpc"
)

// Report records the result of one rank. Each rank may report once.
func (m *Master) Report(args *rpc.ReportArgs, reply *rpc.ReportReply) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := args.Result
	rank := res.Rank

	m.logger.Info(
		"received report from worker",
		"worker-id", args.WorkerID,
		"rank", rank,
		"status", res.Status,
	)

	if rank < 0 || rank >= len(m.results) {
		m.logger.Warn("report for unknown rank", "rank", rank, "workers", len(m.results))
		return ErrBadReport.New("rank %d out of range [0, %d)", rank, len(m.results))
	}

	if m.results[rank] != nil {
		m.logger.Warn(
			"ignoring duplicate report",
			"rank", rank,
			"worker-id", args.WorkerID,
			"first-worker-id", m.workerIDs[rank],
		)
		return ErrBadReport.New("rank %d already reported", rank)
	}

	m.results[rank] = &res
	m.workerIDs[rank] = args.WorkerID
	m.arrived++

	reply.Arrived = m.arrived
	reply.Workers = len(m.results)

	if m.arrived == len(m.results) {
		m.logger.Info("all ranks reported", "workers", m.arrived)
		close(m.done)
	}

	return nil
}
