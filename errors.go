package shardgrep

import (
	"github.com/prxssh/shardgrep/internal/master"
	"github.com/prxssh/shardgrep/internal/task"
	"github.com/prxssh/shardgrep/internal/worker"
	"github.com/prxssh/shardgrep/pkg/kmp"
)

// Error classes of a run. Test membership with Has, e.g.
// ErrInvalidPattern.Has(err).
var (
	// ErrInvalidPattern is fatal: the pattern is empty.
	ErrInvalidPattern = &kmp.ErrInvalidPattern

	// ErrEmptyCorpus is fatal: the input directory holds no files.
	ErrEmptyCorpus = &task.ErrEmptyCorpus

	// ErrFileRead marks a file that was skipped. It appears in diagnostics,
	// never as the error of a run.
	ErrFileRead = &worker.ErrFileRead

	// ErrIncompleteShard marks a rank that never completed its shard.
	ErrIncompleteShard = &master.ErrIncompleteShard
)
