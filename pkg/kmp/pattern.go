// Package kmp implements Knuth-Morris-Pratt exact substring search over
// byte streams.
//
// A Pattern is compiled once and may be shared by any number of goroutines.
// Each goroutine scans with its own Matcher, which keeps the partial-match
// cursor between Feed calls so occurrences that straddle chunk boundaries are
// still found.
package kmp

import "github.com/zeebo/errs"

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errs.Class("invalid pattern")

// Pattern is an immutable search pattern paired with its failure table.
type Pattern struct {
	raw []byte

	// table[i] is the length of the longest proper prefix of raw[:i+1] that
	// is also a suffix of it.
	table []int
}

// Compile builds the failure table for pattern. The pattern bytes are copied,
// so the caller may reuse the slice.
func Compile(pattern []byte) (*Pattern, error) {
	table, err := FailureFunction(pattern)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, len(pattern))
	copy(raw, pattern)

	return &Pattern{raw: raw, table: table}, nil
}

// CompileString is Compile for a string pattern.
func CompileString(pattern string) (*Pattern, error) {
	return Compile([]byte(pattern))
}

// FailureFunction computes the LPS table of pattern in O(len(pattern)).
func FailureFunction(pattern []byte) ([]int, error) {
	if len(pattern) == 0 {
		return nil, ErrInvalidPattern.New("pattern must not be empty")
	}

	table := make([]int, len(pattern))
	border := 0

	for i := 1; i < len(pattern); {
		switch {
		case pattern[i] == pattern[border]:
			border++
			table[i] = border
			i++
		case border > 0:
			// Fall back to the next shorter border without advancing i.
			border = table[border-1]
		default:
			table[i] = 0
			i++
		}
	}

	return table, nil
}

// Len returns the pattern length in bytes.
func (p *Pattern) Len() int { return len(p.raw) }

// Bytes returns a copy of the pattern.
func (p *Pattern) Bytes() []byte {
	out := make([]byte, len(p.raw))
	copy(out, p.raw)
	return out
}

// Table returns a copy of the failure table.
func (p *Pattern) Table() []int {
	out := make([]int, len(p.table))
	copy(out, p.table)
	return out
}

func (p *Pattern) String() string { return string(p.raw) }
