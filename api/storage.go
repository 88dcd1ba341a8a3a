package api

import (
	"io"
)

// Storer defines the contract for a storage backend holding the corpus and
// the search output.
//
// It abstracts away the details of the underlying file system (e.g., local
// disk, an in-memory fixture, a network mount), allowing workers to read
// corpus files and persist partial results agnostically.
type Storer interface {
	// List returns the names of the regular files directly inside dir.
	// The order is unspecified; callers sort.
	List(dir string) ([]string, error)

	// OpenRead opens a file for streaming reads. The caller must close it.
	//
	// Parameters:
	//   path - The file path or object key.
	//
	// Returns:
	//   A ReadCloser positioned at the first byte of the file.
	OpenRead(path string) (io.ReadCloser, error)

	// OpenWrite opens a file for writing, truncating any previous content.
	// This is used by workers to write their partial output and by the
	// coordinator to write the merged report.
	//
	// Parameters:
	//   path - The destination file path or object key.
	//
	// Returns:
	//   A WriteCloser that must be closed to flush data and ensure persistence.
	OpenWrite(path string) (io.WriteCloser, error)
}
