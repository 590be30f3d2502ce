package pager

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/vecscan/internal/mmap"
)

// Source is the random-access byte source a page file is read from.
type Source interface {
	io.ReaderAt
	io.Closer

	// Size returns the total length of the source in bytes.
	Size() int64
}

// OSFileSource serves reads straight from an open file descriptor.
type OSFileSource struct {
	f    *os.File
	size int64
}

// OpenOSFile opens path read-only as a Source.
func OpenOSFile(path string) (*OSFileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pager: failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("pager: failed to stat %s: %w", path, err)
	}

	return &OSFileSource{f: f, size: info.Size()}, nil
}

// ReadAt implements io.ReaderAt.
func (s *OSFileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

// Size implements Source.
func (s *OSFileSource) Size() int64 { return s.size }

// Close implements io.Closer.
func (s *OSFileSource) Close() error { return s.f.Close() }

// BytesSource serves a page file image held in memory.
type BytesSource struct {
	r *bytes.Reader
}

// NewBytesSource wraps b as a Source. The caller must not mutate b while
// the source is in use.
func NewBytesSource(b []byte) *BytesSource {
	return &BytesSource{r: bytes.NewReader(b)}
}

// ReadAt implements io.ReaderAt.
func (s *BytesSource) ReadAt(p []byte, off int64) (int, error) {
	return s.r.ReadAt(p, off)
}

// Size implements Source.
func (s *BytesSource) Size() int64 { return s.r.Size() }

// Close implements io.Closer.
func (s *BytesSource) Close() error { return nil }

// MmapSource maps a page file into memory and serves reads from the
// mapping, leaving residency decisions to the OS page cache.
type MmapSource struct {
	m *mmap.Mapping
}

// OpenMmap maps path read-only as a Source, advised for random access.
func OpenMmap(path string) (*MmapSource, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pager: failed to map %s: %w", path, err)
	}

	// Advice is best effort; some platforms ignore it.
	_ = m.Advise(mmap.AccessRandom)

	return &MmapSource{m: m}, nil
}

// ReadAt implements io.ReaderAt.
func (s *MmapSource) ReadAt(p []byte, off int64) (int, error) {
	return s.m.ReadAt(p, off)
}

// Size implements Source.
func (s *MmapSource) Size() int64 { return int64(s.m.Size()) }

// Close unmaps the file.
func (s *MmapSource) Close() error { return s.m.Close() }
