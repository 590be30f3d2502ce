package pager

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sync/atomic"

	"github.com/hupe1980/vecscan/internal/resource"
	"github.com/hupe1980/vecscan/model"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheBytes is the page cache capacity used when none is
// configured.
const DefaultCacheBytes = 4 << 20

// FileOptions configure OpenFile.
type FileOptions struct {
	// CacheBytes is the page cache capacity. Defaults to
	// DefaultCacheBytes.
	CacheBytes int64

	// Resources coordinates cache memory, read throughput and prefetch
	// fan-out across pagers. Nil enforces nothing.
	Resources *resource.Controller
}

// File serves record pins from a page file behind a Source. All methods
// are safe for concurrent use.
type File struct {
	src        Source
	pageSize   int
	compressed bool
	dir        []dirEntry
	cache      *pageCache
	rc         *resource.Controller
	closed     atomic.Bool
}

// OpenFile validates the page file behind src and prepares it for pins.
// The File takes ownership of src and closes it on Close.
func OpenFile(src Source, optFns ...func(o *FileOptions)) (*File, error) {
	opts := FileOptions{
		CacheBytes: DefaultCacheBytes,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.CacheBytes <= 0 {
		opts.CacheBytes = DefaultCacheBytes
	}

	size := src.Size()
	if size < fileHeaderSize+fileFooterSize {
		return nil, ErrInvalidFile
	}

	var header [fileHeaderSize]byte
	if _, err := src.ReadAt(header[:], 0); err != nil {
		return nil, fmt.Errorf("pager: failed to read header: %w", err)
	}

	if string(header[0:4]) != fileMagic {
		return nil, ErrInvalidFile
	}

	if v := binary.LittleEndian.Uint32(header[4:8]); v != fileVersion {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVersion, v)
	}

	pageSize := int(binary.LittleEndian.Uint32(header[8:12]))
	if pageSize < minPageSize || pageSize > maxPageSize {
		return nil, fmt.Errorf("%w: page size %d", ErrInvalidFile, pageSize)
	}

	flags := binary.LittleEndian.Uint32(header[12:16])
	compressed := flags&flagCompressed != 0

	var footer [fileFooterSize]byte
	if _, err := src.ReadAt(footer[:], size-fileFooterSize); err != nil {
		return nil, fmt.Errorf("pager: failed to read footer: %w", err)
	}

	dirOff := binary.LittleEndian.Uint64(footer[0:8])
	pageCount := int(binary.LittleEndian.Uint32(footer[8:12]))
	dirSum := binary.LittleEndian.Uint32(footer[12:16])

	if dirOff < fileHeaderSize || int64(dirOff)+int64(pageCount)*dirEntrySize+fileFooterSize != size {
		return nil, ErrInvalidFile
	}

	dirBuf := make([]byte, pageCount*dirEntrySize)
	if _, err := src.ReadAt(dirBuf, int64(dirOff)); err != nil {
		return nil, fmt.Errorf("pager: failed to read directory: %w", err)
	}

	if crc32.Checksum(dirBuf, crc32cTable) != dirSum {
		return nil, fmt.Errorf("%w: directory checksum mismatch", ErrInvalidFile)
	}

	dir := make([]dirEntry, pageCount)
	for i := range dir {
		dir[i] = dirEntry{
			offset:    binary.LittleEndian.Uint64(dirBuf[i*dirEntrySize:]),
			storedLen: binary.LittleEndian.Uint32(dirBuf[i*dirEntrySize+8:]),
		}

		if dir[i].storedLen == 0 || int(dir[i].storedLen) > pageSize {
			return nil, fmt.Errorf("%w: page %d stored length %d", ErrInvalidFile, i, dir[i].storedLen)
		}

		// Without compression every page image is stored at full size.
		if !compressed && int(dir[i].storedLen) != pageSize {
			return nil, fmt.Errorf("%w: page %d stored length %d", ErrInvalidFile, i, dir[i].storedLen)
		}

		if dir[i].offset < fileHeaderSize || dir[i].offset+uint64(dir[i].storedLen) > dirOff {
			return nil, fmt.Errorf("%w: page %d out of bounds", ErrInvalidFile, i)
		}
	}

	return &File{
		src:        src,
		pageSize:   pageSize,
		compressed: compressed,
		dir:        dir,
		cache:      newPageCache(opts.CacheBytes, opts.Resources),
		rc:         opts.Resources,
	}, nil
}

// PageCount returns the number of pages in the file.
func (f *File) PageCount() int { return len(f.dir) }

// PageSize returns the decoded page size in bytes.
func (f *File) PageSize() int { return f.pageSize }

// Compressed reports whether page images are stored lz4 compressed.
func (f *File) Compressed() bool { return f.compressed }

// CacheStats returns cumulative page cache hit and miss counts.
func (f *File) CacheStats() (hits, misses int64) {
	return f.cache.stats()
}

// Pin implements Pager. The returned payload stays stable until the pin
// is released; at most one page read per miss hits the source.
func (f *File) Pin(ctx context.Context, ref model.RecordRef) (*Pinned, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}

	if int(ref.Page) >= len(f.dir) {
		return nil, &ErrInvalidRef{Ref: ref}
	}

	data, cached, err := f.acquirePage(ctx, ref.Page)
	if err != nil {
		return nil, err
	}

	payload, err := page{data: data}.record(ref)
	if err != nil {
		if cached {
			f.cache.release(ref.Page)
		}
		return nil, err
	}

	release := func() {}
	if cached {
		id := ref.Page
		release = func() { f.cache.release(id) }
	}

	return &Pinned{ref: ref, data: payload, release: release}, nil
}

// Prefetch warms the page cache for the pages behind refs. Pages already
// resident are skipped and refs pointing outside the file are ignored;
// fan-out is bounded by the resource controller's worker budget.
func (f *File) Prefetch(ctx context.Context, refs []model.RecordRef) error {
	if f.closed.Load() {
		return ErrClosed
	}

	seen := make(map[model.PageID]struct{}, len(refs))
	pages := make([]model.PageID, 0, len(refs))
	for _, ref := range refs {
		if int(ref.Page) >= len(f.dir) {
			continue
		}
		if _, ok := seen[ref.Page]; ok {
			continue
		}
		seen[ref.Page] = struct{}{}
		pages = append(pages, ref.Page)
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(f.rc.Workers())

	for _, id := range pages {
		grp.Go(func() error {
			if _, ok := f.cache.acquire(id); ok {
				f.cache.release(id)
				return nil
			}

			data, err := f.readPage(ctx, id)
			if err != nil {
				return err
			}

			if _, cached := f.cache.admit(id, data); cached {
				f.cache.release(id)
			}
			return nil
		})
	}

	return grp.Wait()
}

// Close implements Pager. Outstanding pins are invalidated.
func (f *File) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	f.cache.close()
	return f.src.Close()
}

func (f *File) acquirePage(ctx context.Context, id model.PageID) ([]byte, bool, error) {
	if data, ok := f.cache.acquire(id); ok {
		return data, true, nil
	}

	data, err := f.readPage(ctx, id)
	if err != nil {
		return nil, false, err
	}

	data, cached := f.cache.admit(id, data)
	return data, cached, nil
}

// readPage fetches, decompresses and verifies one page image.
func (f *File) readPage(ctx context.Context, id model.PageID) ([]byte, error) {
	ent := f.dir[id]

	if err := f.rc.AcquireIO(ctx, int(ent.storedLen)); err != nil {
		return nil, err
	}

	raw := make([]byte, ent.storedLen)
	if _, err := f.src.ReadAt(raw, int64(ent.offset)); err != nil {
		return nil, fmt.Errorf("pager: failed to read page %d: %w", id, err)
	}

	img := raw
	if int(ent.storedLen) < f.pageSize {
		img = make([]byte, f.pageSize)

		n, err := lz4.UncompressBlock(raw, img)
		if err != nil {
			return nil, fmt.Errorf("pager: failed to decompress page %d: %w", id, err)
		}
		if n != f.pageSize {
			return nil, fmt.Errorf("pager: page %d decompressed to %d bytes, want %d", id, n, f.pageSize)
		}
	}

	p := page{data: img}
	if err := p.verify(id); err != nil {
		return nil, err
	}

	return img, nil
}
