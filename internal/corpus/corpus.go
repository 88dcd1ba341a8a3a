package corpus

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/prxssh/shardgrep/api"
	"github.com/prxssh/shardgrep/internal/task"
)

// Entry is one file of the corpus.
type Entry struct {
	// Name is the file name, used as the sort key and in reports.
	Name string

	// Path is what the Storer opens.
	Path string
}

// Corpus is the ordered set of input files for one run.
type Corpus []Entry

// Load lists dir through fs and sorts the entries by name. The order depends
// on names alone, so every process that loads the same directory agrees on it.
func Load(fs api.Storer, dir string) (Corpus, error) {
	names, err := fs.List(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus: failed to list %s: %w", dir, err)
	}

	slices.Sort(names)
	names = slices.Compact(names)

	c := make(Corpus, len(names))
	for i, name := range names {
		c[i] = Entry{Name: name, Path: filepath.Join(dir, name)}
	}

	return c, nil
}

// Slice returns the entries owned by s.
func (c Corpus) Slice(s task.Shard) []Entry {
	if s.Empty() {
		return nil
	}
	return c[s.Begin:s.End]
}

// Names returns the entry names in corpus order.
func (c Corpus) Names() []string {
	names := make([]string, len(c))
	for i, e := range c {
		names[i] = e.Name
	}
	return names
}
