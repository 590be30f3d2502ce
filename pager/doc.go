// Package pager stores record payloads in fixed-size slotted pages and
// resolves RecordRefs back to payload bytes through page pins.
//
// A Writer streams pages into a single page file: a fixed header, the
// stored page images (optionally lz4 block compressed), a page directory
// and a footer locating the directory. File opens such a file over any
// Source (plain file, memory mapping, object storage) and serves pins
// from an LRU page cache. Pinned pages are never evicted; a pin holds the
// payload bytes stable until it is released.
//
// Memory is a self-contained pager for tests and memory-resident data.
package pager
