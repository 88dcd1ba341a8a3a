// Package report encodes search results in the block format shared by the
// per-rank partial outputs and the merged output:
//
//	<file name>
//	<offset> <offset> ...
//	<blank line>
//
// Files without matches produce no block.
package report

import (
	"bufio"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prxssh/shardgrep/internal/task"
	"github.com/prxssh/shardgrep/pkg/hash"
)

// Encoder writes result blocks to an underlying writer. Call Flush when done.
type Encoder struct {
	w   *bufio.Writer
	buf []byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes the block for f, or nothing when f has no matches.
func (e *Encoder) Encode(f task.FileResult) error {
	if len(f.Offsets) == 0 {
		return nil
	}

	e.buf = append(e.buf[:0], f.Name...)
	e.buf = append(e.buf, '\n')
	for i, off := range f.Offsets {
		if i > 0 {
			e.buf = append(e.buf, ' ')
		}
		e.buf = strconv.AppendInt(e.buf, off, 10)
	}
	e.buf = append(e.buf, '\n', '\n')

	_, err := e.w.Write(e.buf)
	return err
}

func (e *Encoder) Flush() error {
	return e.w.Flush()
}

// Diagnostic explains what happened at one rank. Diagnostics go to the
// operator log, never to the data output.
type Diagnostic struct {
	Rank    int
	Status  task.Status
	Message string

	// Failures lists files the rank skipped.
	Failures []task.Failure
}

// Report is the merged, rank-ordered result of a run.
type Report struct {
	RunID uuid.UUID

	// Files holds every scanned file in rank-major, corpus-minor order.
	Files []task.FileResult

	// Diagnostics holds one entry per rank, in rank order.
	Diagnostics []Diagnostic

	Elapsed time.Duration
}

// WriteTo writes the report blocks to w.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	enc := NewEncoder(cw)

	for _, f := range r.Files {
		if err := enc.Encode(f); err != nil {
			return cw.n, err
		}
	}

	err := enc.Flush()
	return cw.n, err
}

// Matches returns the total number of match records.
func (r *Report) Matches() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Offsets)
	}
	return n
}

// Failures returns every skipped file across ranks.
func (r *Report) Failures() []task.Failure {
	var out []task.Failure
	for _, d := range r.Diagnostics {
		out = append(out, d.Failures...)
	}
	return out
}

// Digest fingerprints the encoded report. Identical inputs give identical
// digests, so runs can be compared from their logs.
func (r *Report) Digest() uint64 {
	d := hash.NewDigest()
	r.WriteTo(d)
	return d.Sum64()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
