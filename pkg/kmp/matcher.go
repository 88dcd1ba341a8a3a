package kmp

// Matcher is a streaming KMP scanner. It is not safe for concurrent use; give
// every goroutine its own Matcher over a shared Pattern.
type Matcher struct {
	p *Pattern

	// j is the number of pattern bytes matched so far, 0 <= j < p.Len().
	j int
}

// NewMatcher returns a Matcher positioned at the start of a stream.
func NewMatcher(p *Pattern) *Matcher {
	return &Matcher{p: p}
}

// Feed scans chunk, which begins at absolute offset base in the stream, and
// returns the absolute start offsets of every occurrence that ends inside
// chunk. Occurrences may begin in earlier chunks and may overlap.
func (m *Matcher) Feed(chunk []byte, base int64) []int64 {
	var found []int64

	pat, table := m.p.raw, m.p.table
	n := len(pat)
	j := m.j

	for i := 0; i < len(chunk); {
		if chunk[i] == pat[j] {
			i++
			j++

			if j == n {
				found = append(found, base+int64(i)-int64(n))
				j = table[j-1]
			}
			continue
		}

		if j > 0 {
			j = table[j-1]
		} else {
			i++
		}
	}

	m.j = j
	return found
}

// Reset forgets any partial match. Call it before scanning an unrelated
// stream.
func (m *Matcher) Reset() { m.j = 0 }

// State returns the length of the partial match carried into the next Feed.
func (m *Matcher) State() int { return m.j }

// Index returns every occurrence of p in text.
func Index(p *Pattern, text []byte) []int64 {
	return NewMatcher(p).Feed(text, 0)
}
