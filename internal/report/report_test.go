package report

import (
	"bytes"
	"testing"

	"github.com/prxssh/shardgrep/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderSkipsFilesWithoutMatches(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Encode(task.FileResult{Name: "a.txt", Offsets: []int64{5, 9}}))
	require.NoError(t, enc.Encode(task.FileResult{Name: "empty.txt"}))
	require.NoError(t, enc.Encode(task.FileResult{Name: "b.txt", Offsets: []int64{1}}))
	require.NoError(t, enc.Flush())

	assert.Equal(t, "a.txt\n5 9\n\nb.txt\n1\n\n", buf.String())
}

func TestReport(t *testing.T) {
	r := &Report{
		Files: []task.FileResult{
			{Name: "a.txt", Offsets: []int64{5, 9}},
			{Name: "b.txt", Offsets: []int64{1, 5, 9}},
			{Name: "c.txt"},
		},
		Diagnostics: []Diagnostic{
			{Rank: 0, Status: task.StatusComplete},
			{Rank: 1, Status: task.StatusComplete, Failures: []task.Failure{{Name: "d.txt", Cause: "denied"}}},
		},
	}

	var buf bytes.Buffer
	n, err := r.WriteTo(&buf)
	require.NoError(t, err)

	assert.Equal(t, "a.txt\n5 9\n\nb.txt\n1 5 9\n\n", buf.String())
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, 5, r.Matches())
	assert.Equal(t, []task.Failure{{Name: "d.txt", Cause: "denied"}}, r.Failures())

	same := &Report{Files: r.Files}
	assert.Equal(t, r.Digest(), same.Digest())
	assert.NotEqual(t, r.Digest(), (&Report{}).Digest())
}
