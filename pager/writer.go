package pager

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/vecscan/model"
	"github.com/pierrec/lz4/v4"
)

// Page file layout, all little endian:
//
//	header   magic "VPGF" | version u32 | page size u32 | flags u32
//	pages    stored page images, lz4 block compressed when it pays off
//	dir      per page: file offset u64 | stored length u32
//	footer   dir offset u64 | page count u32 | dir CRC32-C u32
//
// A stored length below the page size marks a compressed page. The footer
// sits at the end so the writer can stream to any io.Writer without
// seeking.
const (
	fileMagic      = "VPGF"
	fileVersion    = uint32(1)
	fileHeaderSize = 16
	fileFooterSize = 16
	dirEntrySize   = 12

	// flagCompressed marks a file that may contain lz4 compressed pages.
	flagCompressed = uint32(1 << 0)
)

type dirEntry struct {
	offset    uint64
	storedLen uint32
}

// WriterOptions configure a page file Writer.
type WriterOptions struct {
	// PageSize is the size of every page image. Defaults to
	// DefaultPageSize and must be within [512, 32768].
	PageSize int

	// Compression stores page images lz4 block compressed whenever that
	// is smaller than the raw image.
	Compression bool
}

// Writer streams records into a page file. Records are packed into pages
// in append order; Append returns the stable ref of each record. Close
// writes the directory and footer.
type Writer struct {
	w       io.Writer
	opts    WriterOptions
	builder *pageBuilder
	dir     []dirEntry
	off     uint64
	records int
	scratch []byte

	headerWritten bool
	closed        bool
}

// NewWriter creates a Writer emitting to w.
func NewWriter(w io.Writer, optFns ...func(o *WriterOptions)) (*Writer, error) {
	opts := WriterOptions{
		PageSize: DefaultPageSize,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.PageSize < minPageSize || opts.PageSize > maxPageSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, opts.PageSize)
	}

	pw := &Writer{
		w:       w,
		opts:    opts,
		builder: newPageBuilder(opts.PageSize),
	}

	if opts.Compression {
		pw.scratch = make([]byte, lz4.CompressBlockBound(opts.PageSize))
	}

	return pw, nil
}

// Append stores one payload and returns its ref. The ref stays valid for
// the lifetime of the written file.
func (w *Writer) Append(payload []byte) (model.RecordRef, error) {
	if w.closed {
		return model.RecordRef{}, ErrClosed
	}

	if len(payload) > maxRecordSize(w.opts.PageSize) {
		return model.RecordRef{}, fmt.Errorf("%w: %d bytes, page size %d", ErrRecordTooLarge, len(payload), w.opts.PageSize)
	}

	if !w.builder.fits(len(payload)) {
		if err := w.flushPage(); err != nil {
			return model.RecordRef{}, err
		}
	}

	ref := model.RecordRef{
		Page: model.PageID(len(w.dir)),
		Slot: w.builder.append(payload),
	}
	w.records++

	return ref, nil
}

// Records returns the number of records appended so far.
func (w *Writer) Records() int { return w.records }

// Pages returns the number of pages flushed so far. The page currently
// being filled is not counted until Close.
func (w *Writer) Pages() int { return len(w.dir) }

// Close flushes the final page and writes the directory and footer. It is
// idempotent; Append fails after Close.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.builder.slots > 0 {
		if err := w.flushPage(); err != nil {
			return err
		}
	}

	if err := w.ensureHeader(); err != nil {
		return err
	}

	dirOff := w.off
	dirBuf := make([]byte, dirEntrySize*len(w.dir))
	for i, ent := range w.dir {
		binary.LittleEndian.PutUint64(dirBuf[i*dirEntrySize:], ent.offset)
		binary.LittleEndian.PutUint32(dirBuf[i*dirEntrySize+8:], ent.storedLen)
	}

	if _, err := w.w.Write(dirBuf); err != nil {
		return fmt.Errorf("pager: failed to write directory: %w", err)
	}

	var footer [fileFooterSize]byte
	binary.LittleEndian.PutUint64(footer[0:8], dirOff)
	binary.LittleEndian.PutUint32(footer[8:12], uint32(len(w.dir)))
	binary.LittleEndian.PutUint32(footer[12:16], crc32.Checksum(dirBuf, crc32cTable))

	if _, err := w.w.Write(footer[:]); err != nil {
		return fmt.Errorf("pager: failed to write footer: %w", err)
	}

	return nil
}

func (w *Writer) ensureHeader() error {
	if w.headerWritten {
		return nil
	}

	var flags uint32
	if w.opts.Compression {
		flags |= flagCompressed
	}

	var header [fileHeaderSize]byte
	copy(header[0:4], fileMagic)
	binary.LittleEndian.PutUint32(header[4:8], fileVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(w.opts.PageSize))
	binary.LittleEndian.PutUint32(header[12:16], flags)

	if _, err := w.w.Write(header[:]); err != nil {
		return fmt.Errorf("pager: failed to write header: %w", err)
	}

	w.headerWritten = true
	w.off = fileHeaderSize

	return nil
}

func (w *Writer) flushPage() error {
	if err := w.ensureHeader(); err != nil {
		return err
	}

	img := w.builder.finish()

	out := img
	if w.opts.Compression {
		n, err := lz4.CompressBlock(img, w.scratch, nil)
		if err != nil {
			return fmt.Errorf("pager: failed to compress page %d: %w", len(w.dir), err)
		}
		// Incompressible pages are stored raw; the stored length tells
		// them apart on read.
		if n > 0 && n < len(img) {
			out = w.scratch[:n]
		}
	}

	if _, err := w.w.Write(out); err != nil {
		return fmt.Errorf("pager: failed to write page %d: %w", len(w.dir), err)
	}

	w.dir = append(w.dir, dirEntry{offset: w.off, storedLen: uint32(len(out))})
	w.off += uint64(len(out))
	w.builder.reset()

	return nil
}
