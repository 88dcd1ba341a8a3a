package worker

import (
	"context"
	"fmt"
	"net/rpc"
	"time"

	shardrpc "github.com/prxssh/shardgrep/internal/rpc"
	"github.com/prxssh/shardgrep/internal/task"
)

// Reporter receives finished shards. *master.Master satisfies it in-process
// and Remote satisfies it across processes.
type Reporter interface {
	Report(args *shardrpc.ReportArgs, reply *shardrpc.ReportReply) error
}

// Submit hands res to the coordinator.
func (w *Worker) Submit(r Reporter, res task.Result) (shardrpc.ReportReply, error) {
	args := shardrpc.ReportArgs{WorkerID: w.id, Result: res}
	var reply shardrpc.ReportReply

	if err := r.Report(&args, &reply); err != nil {
		return shardrpc.ReportReply{}, fmt.Errorf("worker: failed to report rank %d: %w", res.Rank, err)
	}

	w.logger.Info(
		"reported to coordinator",
		"status", res.Status,
		"arrived", reply.Arrived,
		"workers", reply.Workers,
	)
	return reply, nil
}

// Remote reports to a master listening on MasterAddr over net/rpc.
type Remote struct {
	ctx  context.Context
	addr string

	// Attempts bounds how many times a call is tried while the master is
	// still coming up. Delay doubles after every failed attempt.
	Attempts int
	Delay    time.Duration
}

func NewRemote(ctx context.Context, addr string) *Remote {
	return &Remote{
		ctx:      ctx,
		addr:     addr,
		Attempts: 5,
		Delay:    200 * time.Millisecond,
	}
}

func (r *Remote) Report(args *shardrpc.ReportArgs, reply *shardrpc.ReportReply) error {
	return r.callMaster("Master.Report", args, reply)
}

func (r *Remote) callMaster(method string, args, reply any) error {
	delay := r.Delay
	attempts := max(r.Attempts, 1)

	var err error
	for i := 0; i < attempts; i++ {
		var client *rpc.Client
		client, err = rpc.DialHTTP("tcp", r.addr)
		if err == nil {
			err = client.Call(method, args, reply)
			client.Close()
			return err
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-r.ctx.Done():
			return r.ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("failed to reach master at %s: %w", r.addr, err)
}
