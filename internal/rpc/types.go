package rpc

import (
	"github.com/google/uuid"
	"github.com/prxssh/shardgrep/internal/task"
)

// ReportArgs is sent once by every rank when it is done with its shard,
// whether it completed or failed.
type ReportArgs struct {
	WorkerID uuid.UUID
	Result   task.Result
}

type ReportReply struct {
	// Arrived is the number of ranks that have reported so far, this one
	// included.
	Arrived int

	// Workers is the number of reports the barrier waits for.
	Workers int
}
