package task

import "github.com/zeebo/errs"

var (
	// ErrEmptyCorpus is returned when there are no files to distribute.
	ErrEmptyCorpus = errs.Class("empty corpus")

	// ErrInvalidPlan is returned for impossible worker counts or ranks.
	ErrInvalidPlan = errs.Class("invalid plan")
)

// Plan splits a corpus of n files into one contiguous shard per worker. The
// first n%workers ranks receive one extra file.
func Plan(n, workers int) ([]Shard, error) {
	if err := check(n, workers); err != nil {
		return nil, err
	}

	shards := make([]Shard, workers)
	for rank := range shards {
		shards[rank] = bounds(n, workers, rank)
	}

	return shards, nil
}

// ShardFor returns the shard of a single rank. It needs no knowledge of other
// ranks, so every worker can compute its own share independently.
func ShardFor(n, workers, rank int) (Shard, error) {
	if err := check(n, workers); err != nil {
		return Shard{}, err
	}

	if rank < 0 || rank >= workers {
		return Shard{}, ErrInvalidPlan.New("rank %d out of range [0, %d)", rank, workers)
	}

	return bounds(n, workers, rank), nil
}

func check(n, workers int) error {
	if workers < 1 {
		return ErrInvalidPlan.New("worker count must be positive, got %d", workers)
	}

	if n < 0 {
		return ErrInvalidPlan.New("corpus size must not be negative, got %d", n)
	}

	if n == 0 {
		return ErrEmptyCorpus.New("no files to process")
	}

	return nil
}

func bounds(n, workers, rank int) Shard {
	base, rem := n/workers, n%workers

	begin := base*rank + min(rank, rem)
	size := base
	if rank < rem {
		size++
	}

	return Shard{Rank: rank, Begin: begin, End: begin + size}
}
