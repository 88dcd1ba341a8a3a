package fs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Memory is an in-memory Storer. It is safe for concurrent use and can inject
// read failures, which makes it the storage of choice for tests.
type Memory struct {
	mu     sync.Mutex
	files  map[string][]byte
	faults map[string]fault

	// open counts readers handed out and not yet closed.
	open int
}

type fault struct {
	after int64
	err   error
}

func NewMemoryStorage() *Memory {
	return &Memory{
		files:  make(map[string][]byte),
		faults: make(map[string]fault),
	}
}

// Put stores data at path, replacing any previous content.
func (m *Memory) Put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[filepath.Clean(path)] = bytes.Clone(data)
}

// Get returns the content stored at path.
func (m *Memory) Get(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[filepath.Clean(path)]
	return bytes.Clone(data), ok
}

// FailOpen makes every OpenRead of path fail with err.
func (m *Memory) FailOpen(path string, err error) {
	m.FailAfter(path, -1, err)
}

// FailAfter makes reads of path fail with err once n bytes have been
// delivered. A negative n fails the open itself.
func (m *Memory) FailAfter(path string, n int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.faults[filepath.Clean(path)] = fault{after: n, err: err}
}

// OpenReaders returns the number of readers that have not been closed.
func (m *Memory) OpenReaders() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.open
}

func (m *Memory) List(dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir = filepath.Clean(dir)

	var names []string
	found := false
	for path := range m.files {
		if filepath.Dir(path) != dir {
			continue
		}
		found = true
		names = append(names, filepath.Base(path))
	}

	if f, ok := m.faults[dir]; ok && f.after < 0 {
		return nil, f.err
	}
	if !found {
		return nil, &os.PathError{Op: "readdir", Path: dir, Err: os.ErrNotExist}
	}

	return names, nil
}

func (m *Memory) OpenRead(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)

	f, faulty := m.faults[path]
	if faulty && f.after < 0 {
		return nil, &os.PathError{Op: "open", Path: path, Err: f.err}
	}

	data, ok := m.files[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	var r io.Reader = bytes.NewReader(data)
	if faulty {
		r = io.MultiReader(io.LimitReader(r, f.after), errReader{f.err})
	}

	m.open++
	return &memReadCloser{r: r, m: m}, nil
}

func (m *Memory) OpenWrite(path string) (io.WriteCloser, error) {
	return &memWriteCloser{path: filepath.Clean(path), m: m}, nil
}

type memReadCloser struct {
	r      io.Reader
	m      *Memory
	closed bool
}

func (r *memReadCloser) Read(p []byte) (int, error) {
	return r.r.Read(p)
}

func (r *memReadCloser) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	r.m.mu.Lock()
	r.m.open--
	r.m.mu.Unlock()
	return nil
}

// memWriteCloser makes its content visible on Close.
type memWriteCloser struct {
	buf  bytes.Buffer
	path string
	m    *Memory
}

func (w *memWriteCloser) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriteCloser) Close() error {
	w.m.Put(w.path, w.buf.Bytes())
	return nil
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
