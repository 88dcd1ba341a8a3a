package master

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prxssh/shardgrep/internal/rpc"
	"github.com/prxssh/shardgrep/internal/task"
	"github.com/prxssh/shardgrep/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func submit(t *testing.T, m *Master, res task.Result) rpc.ReportReply {
	t.Helper()

	var reply rpc.ReportReply
	require.NoError(t, m.Report(&rpc.ReportArgs{WorkerID: uuid.New(), Result: res}, &reply))
	return reply
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	_, err = New(&Config{Workers: 0}, nil)
	assert.Error(t, err)
}

func TestWaitIsABarrier(t *testing.T) {
	m, err := New(&Config{Workers: 4}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	// Report in reverse rank order to show results are rank-indexed.
	for rank := 3; rank >= 0; rank-- {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			time.Sleep(time.Duration(rank) * time.Millisecond)
			submit(t, m, task.Result{Rank: rank, Status: task.StatusComplete})
		}(rank)
	}

	results, err := m.Wait(context.Background())
	require.NoError(t, err)
	wg.Wait()

	require.Len(t, results, 4)
	for rank, res := range results {
		assert.Equal(t, rank, res.Rank)
		assert.Equal(t, task.StatusComplete, res.Status)
	}
	assert.Equal(t, 4, m.Arrived())
}

func TestWaitBlocksUntilLastReport(t *testing.T) {
	m, err := New(&Config{Workers: 2}, nil)
	require.NoError(t, err)

	reply := submit(t, m, task.Result{Rank: 1, Status: task.StatusComplete})
	assert.Equal(t, rpc.ReportReply{Arrived: 1, Workers: 2}, reply)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	results, err := m.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, task.StatusNotStarted, results[0].Status)
	assert.Equal(t, "rank never reported", results[0].Cause)
	assert.Equal(t, task.StatusComplete, results[1].Status)

	submit(t, m, task.Result{Rank: 0, Status: task.StatusComplete})
	results, err = m.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, task.StatusComplete, results[0].Status)
}

func TestReportRejectsBadRanks(t *testing.T) {
	m, err := New(&Config{Workers: 2}, nil)
	require.NoError(t, err)

	var reply rpc.ReportReply
	err = m.Report(&rpc.ReportArgs{Result: task.Result{Rank: 2}}, &reply)
	assert.True(t, ErrBadReport.Has(err))

	err = m.Report(&rpc.ReportArgs{Result: task.Result{Rank: -1}}, &reply)
	assert.True(t, ErrBadReport.Has(err))

	submit(t, m, task.Result{Rank: 0, Status: task.StatusComplete})
	err = m.Report(&rpc.ReportArgs{Result: task.Result{Rank: 0}}, &reply)
	assert.True(t, ErrBadReport.Has(err))
	assert.Equal(t, 1, m.Arrived())
}

func TestServeOverRPC(t *testing.T) {
	m, err := New(&Config{Workers: 2}, nil)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- m.Serve(l) }()

	ctx := context.Background()
	remote := worker.NewRemote(ctx, l.Addr().String())
	for rank := 0; rank < 2; rank++ {
		var reply rpc.ReportReply
		err := remote.Report(&rpc.ReportArgs{
			WorkerID: uuid.New(),
			Result: task.Result{
				Rank:   rank,
				Status: task.StatusComplete,
				Files:  []task.FileResult{{Name: "f" + string(rune('0'+rank)), Offsets: []int64{int64(rank)}}},
			},
		}, &reply)
		require.NoError(t, err)
		assert.Equal(t, rank+1, reply.Arrived)
	}

	var reply rpc.ReportReply
	err = remote.Report(&rpc.ReportArgs{Result: task.Result{Rank: 1}}, &reply)
	assert.ErrorContains(t, err, "already reported")

	results, err := m.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []task.FileResult{{Name: "f1", Offsets: []int64{1}}}, results[1].Files)

	require.NoError(t, l.Close())
	assert.NoError(t, <-served)
}

func TestMerge(t *testing.T) {
	results := []task.Result{
		{Rank: 0, Status: task.StatusComplete, Files: []task.FileResult{
			{Name: "a.txt", Offsets: []int64{5, 9}},
			{Name: "b.txt"},
		}},
		{Rank: 1, Status: task.StatusStarted, Files: []task.FileResult{
			{Name: "c.txt", Offsets: []int64{0}},
		}},
		{Rank: 2, Status: task.StatusFailed, Cause: "disk gone", Files: []task.FileResult{
			{Name: "e.txt", Offsets: []int64{3}},
		}},
		{Rank: 3, Status: task.StatusNotStarted},
		{Rank: 4, Status: task.StatusComplete},
		{Rank: 5, Status: task.StatusComplete,
			Files:    []task.FileResult{{Name: "g.txt", Offsets: []int64{1, 2}}},
			Failures: []task.Failure{{Name: "f.txt", Cause: "denied"}},
		},
	}

	rep := Merge(results)

	var names []string
	for _, f := range rep.Files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "g.txt"}, names)
	assert.Equal(t, 5, rep.Matches())

	require.Len(t, rep.Diagnostics, 6)
	assert.Equal(t, "processing at rank 0 complete", rep.Diagnostics[0].Message)
	assert.Contains(t, rep.Diagnostics[1].Message, "processing at rank 1 incomplete")
	assert.Equal(t, "processing at rank 2 failed: disk gone", rep.Diagnostics[2].Message)
	assert.Equal(t, "no processing occurred at rank 3", rep.Diagnostics[3].Message)
	assert.Equal(t, "no processing occurred at rank 4", rep.Diagnostics[4].Message)
	assert.Equal(t, []task.Failure{{Name: "f.txt", Cause: "denied"}}, rep.Failures())

	again := Merge(results)
	assert.Equal(t, rep.Digest(), again.Digest())
}
