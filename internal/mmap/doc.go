// Package mmap provides read-only memory-mapped file access.
//
// A Mapping exposes file contents as a byte slice without copying through
// kernel buffers, implements io.ReaderAt, and accepts access-pattern hints
// (madvise on unix, no-op on Windows). Close is idempotent; callers must
// ensure no reads run concurrently with Close.
package mmap
