package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores everything on the local disk.
type Local struct{}

func NewLocalStorage() *Local {
	return &Local{}
}

func (l *Local) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		// Symlinks, directories and devices are not part of the corpus.
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}

	return names, nil
}

func (l *Local) OpenRead(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return f, nil
}

func (l *Local) OpenWrite(path string) (io.WriteCloser, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fs: failed to create directory %s: %w", dir, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return f, nil
}
