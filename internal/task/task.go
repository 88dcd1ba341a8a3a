package task

import "fmt"

// Status tracks the lifecycle of one rank's shard.
type Status uint8

const (
	// StatusNotStarted means the worker has not opened any file yet.
	StatusNotStarted Status = iota

	// StatusStarted means the worker opened at least one file but did not
	// exhaust its shard.
	StatusStarted

	// StatusComplete means every file of the shard was visited. Individual
	// files may still have failed; see Result.Failures.
	StatusComplete

	// StatusFailed means a shard-wide error stopped the worker.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not-started"
	case StatusStarted:
		return "started"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Shard is a contiguous index range [Begin, End) into the sorted corpus,
// owned exclusively by one rank.
type Shard struct {
	Rank  int
	Begin int
	End   int
}

// Len returns the number of files in the shard.
func (s Shard) Len() int { return s.End - s.Begin }

// Empty reports whether the shard holds no files.
func (s Shard) Empty() bool { return s.End <= s.Begin }

func (s Shard) String() string {
	return fmt.Sprintf("rank %d [%d, %d)", s.Rank, s.Begin, s.End)
}

// FileResult holds the matches found in one fully scanned file.
type FileResult struct {
	// Name is the corpus name of the file (no directory).
	Name string

	// Offsets are byte offsets of match starts, ascending.
	Offsets []int64
}

// Failure records a file that could not be scanned.
type Failure struct {
	Name  string
	Cause string
}

// Result is everything one worker produced for its shard. It is built by
// exactly one worker and handed off complete.
type Result struct {
	Rank   int
	Status Status

	// Cause explains StatusFailed.
	Cause string

	// Files lists fully scanned files in corpus order, including files
	// without matches.
	Files []FileResult

	// Failures lists skipped files in corpus order.
	Failures []Failure

	// BytesScanned is the total number of bytes fed to the matcher.
	BytesScanned int64
}

// Matches returns the number of offsets across all files.
func (r *Result) Matches() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Offsets)
	}
	return n
}
