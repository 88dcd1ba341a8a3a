package worker

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/prxssh/shardgrep/internal/corpus"
	shardrpc "github.com/prxssh/shardgrep/internal/rpc"
	"github.com/prxssh/shardgrep/internal/task"
	"github.com/prxssh/shardgrep/pkg/fs"
	"github.com/prxssh/shardgrep/pkg/kmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newCorpus(t *testing.T, files map[string]string) (*fs.Memory, corpus.Corpus) {
	t.Helper()

	m := fs.NewMemoryStorage()
	for name, data := range files {
		m.Put("in/"+name, []byte(data))
	}

	c, err := corpus.Load(m, "in")
	require.NoError(t, err)
	return m, c
}

func newWorker(t *testing.T, storer *fs.Memory, pattern string, chunk int) *Worker {
	t.Helper()

	p, err := kmp.CompileString(pattern)
	require.NoError(t, err)

	w, err := New(storer, &Config{Rank: 0, Pattern: p, ChunkSize: chunk, OutputDir: "out"}, nil, nil)
	require.NoError(t, err)
	return w
}

func TestRunScansShard(t *testing.T) {
	storer, c := newCorpus(t, map[string]string{
		"a.txt": "the cat sat",
		"b.txt": "mat hat bat",
		"c.txt": "nothing here",
	})

	for chunk := 1; chunk <= 12; chunk++ {
		w := newWorker(t, storer, "at", chunk)
		res := w.Run(context.Background(), c)

		require.Equal(t, task.StatusComplete, res.Status, "chunk %d", chunk)
		require.Equal(t, []task.FileResult{
			{Name: "a.txt", Offsets: []int64{5, 9}},
			{Name: "b.txt", Offsets: []int64{1, 5, 9}},
			{Name: "c.txt"},
		}, res.Files, "chunk %d", chunk)
		assert.Equal(t, int64(34), res.BytesScanned)
		assert.Equal(t, 5, res.Matches())
	}

	out, ok := storer.Get("out/output-rank0.txt")
	require.True(t, ok)
	assert.Equal(t, "a.txt\n5 9\n\nb.txt\n1 5 9\n\n", string(out))
	assert.Equal(t, 0, storer.OpenReaders())
}

func TestRunMatchAcrossLines(t *testing.T) {
	storer, c := newCorpus(t, map[string]string{"log.txt": "first line ends with fo\no and more foo"})

	res := newWorker(t, storer, "fo\no", 4).Run(context.Background(), c)
	require.Equal(t, task.StatusComplete, res.Status)
	assert.Equal(t, []int64{21}, res.Files[0].Offsets)
}

func TestRunSkipsUnreadableFiles(t *testing.T) {
	storer, c := newCorpus(t, map[string]string{
		"a.txt": "atatat",
		"b.txt": "at the end",
		"c.txt": "cat",
	})
	boom := errors.New("disk on fire")
	storer.FailAfter("in/b.txt", 3, boom)
	storer.FailOpen("in/c.txt", boom)

	res := newWorker(t, storer, "at", 2).Run(context.Background(), c)

	require.Equal(t, task.StatusComplete, res.Status)
	assert.Equal(t, []task.FileResult{{Name: "a.txt", Offsets: []int64{0, 2, 4}}}, res.Files)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "b.txt", res.Failures[0].Name)
	assert.Equal(t, "c.txt", res.Failures[1].Name)
	assert.Contains(t, res.Failures[0].Cause, "disk on fire")
	assert.Equal(t, int64(9), res.BytesScanned)
	assert.Equal(t, 0, storer.OpenReaders(), "every stream must be closed")

	out, _ := storer.Get("out/output-rank0.txt")
	assert.Equal(t, "a.txt\n0 2 4\n\n", string(out))
}

func TestRunEmptyShard(t *testing.T) {
	storer := fs.NewMemoryStorage()

	res := newWorker(t, storer, "x", 0).Run(context.Background(), nil)
	assert.Equal(t, task.StatusComplete, res.Status)
	assert.Empty(t, res.Files)

	out, ok := storer.Get("out/output-rank0.txt")
	assert.True(t, ok)
	assert.Empty(t, out)
}

func TestRunInterrupted(t *testing.T) {
	storer, c := newCorpus(t, map[string]string{"a.txt": "aaa"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newWorker(t, storer, "a", 0).Run(ctx, c)
	assert.Equal(t, task.StatusNotStarted, res.Status)
	assert.Empty(t, res.Files)
}

type brokenSink struct {
	*fs.Memory
	openErr  error
	writeErr error
}

func (b *brokenSink) OpenWrite(path string) (io.WriteCloser, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return failingWriter{b.writeErr}, nil
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }
func (f failingWriter) Close() error              { return nil }

func TestRunPartialOutputFailures(t *testing.T) {
	mem, c := newCorpus(t, map[string]string{"a.txt": strings.Repeat("at", 10000)})
	p, err := kmp.CompileString("at")
	require.NoError(t, err)

	t.Run("cannot open sink", func(t *testing.T) {
		sink := &brokenSink{Memory: mem, openErr: errors.New("read-only")}
		w, err := New(sink, &Config{Rank: 3, Pattern: p}, nil, nil)
		require.NoError(t, err)

		res := w.Run(context.Background(), c)
		assert.Equal(t, task.StatusFailed, res.Status)
		assert.Equal(t, 3, res.Rank)
		assert.Contains(t, res.Cause, "read-only")
	})

	t.Run("cannot write sink", func(t *testing.T) {
		sink := &brokenSink{Memory: mem, writeErr: errors.New("quota")}
		w, err := New(sink, &Config{Rank: 1, Pattern: p}, nil, nil)
		require.NoError(t, err)

		res := w.Run(context.Background(), c)
		assert.Equal(t, task.StatusFailed, res.Status)
		assert.Contains(t, res.Cause, "quota")
		assert.Equal(t, 0, mem.OpenReaders())
	})
}

func TestNewValidates(t *testing.T) {
	p, err := kmp.CompileString("x")
	require.NoError(t, err)
	storer := fs.NewMemoryStorage()

	_, err = New(storer, nil, nil, nil)
	assert.Error(t, err)
	_, err = New(nil, &Config{Pattern: p}, nil, nil)
	assert.Error(t, err)
	_, err = New(storer, &Config{}, nil, nil)
	assert.Error(t, err)
	_, err = New(storer, &Config{Pattern: p, Rank: -1}, nil, nil)
	assert.Error(t, err)

	cfg := &Config{Pattern: p}
	_, err = New(storer, cfg, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, cfg.ChunkSize, "caller config is not modified")
}

type recordingReporter struct {
	got []shardrpc.ReportArgs
	err error
}

func (r *recordingReporter) Report(args *shardrpc.ReportArgs, reply *shardrpc.ReportReply) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, *args)
	reply.Arrived, reply.Workers = len(r.got), 2
	return nil
}

func TestSubmit(t *testing.T) {
	w := newWorker(t, fs.NewMemoryStorage(), "x", 0)
	rep := &recordingReporter{}

	reply, err := w.Submit(rep, task.Result{Rank: 0, Status: task.StatusComplete})
	require.NoError(t, err)
	assert.Equal(t, 1, reply.Arrived)
	require.Len(t, rep.got, 1)
	assert.Equal(t, w.ID(), rep.got[0].WorkerID)

	rep.err = errors.New("duplicate")
	_, err = w.Submit(rep, task.Result{Rank: 0})
	assert.ErrorContains(t, err, "duplicate")
}

func TestRemoteGivesUpWhenMasterIsDown(t *testing.T) {
	r := NewRemote(context.Background(), "127.0.0.1:1")
	r.Attempts, r.Delay = 2, 0

	err := r.Report(&shardrpc.ReportArgs{}, &shardrpc.ReportReply{})
	assert.ErrorContains(t, err, "failed to reach master")
}
