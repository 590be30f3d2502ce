package pager

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/hupe1980/vecscan/model"
)

// Page image layout, all little endian:
//
//	[0:4)  CRC32-C over bytes [4:pageSize)
//	[4:6)  slot count
//	[6:8)  reserved
//	[8:)   slot directory, 4 bytes per slot: payload offset, length
//	...    payloads packed downward from the end of the page
const (
	// DefaultPageSize is the page size used when none is configured.
	DefaultPageSize = 8192

	// minPageSize and maxPageSize bound configurable page sizes; offsets
	// inside a page are 16 bit.
	minPageSize = 512
	maxPageSize = 1 << 15

	pageHeaderSize = 8
	slotEntrySize  = 4
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// maxRecordSize returns the largest payload a page of the given size can
// hold.
func maxRecordSize(pageSize int) int {
	return pageSize - pageHeaderSize - slotEntrySize
}

// page is a read-only view over one decoded page image.
type page struct {
	data []byte
}

func (p page) slotCount() int {
	return int(binary.LittleEndian.Uint16(p.data[4:6]))
}

// verify checks the stored checksum against the page contents.
func (p page) verify(id model.PageID) error {
	want := binary.LittleEndian.Uint32(p.data[0:4])
	got := crc32.Checksum(p.data[4:], crc32cTable)
	if got != want {
		return &ChecksumError{Page: id, Want: want, Got: got}
	}
	return nil
}

// record returns the payload stored in the given slot. The returned slice
// aliases the page image.
func (p page) record(ref model.RecordRef) ([]byte, error) {
	slot := int(ref.Slot)
	if slot >= p.slotCount() {
		return nil, &ErrInvalidRef{Ref: ref}
	}

	entry := pageHeaderSize + slotEntrySize*slot
	off := int(binary.LittleEndian.Uint16(p.data[entry : entry+2]))
	length := int(binary.LittleEndian.Uint16(p.data[entry+2 : entry+4]))

	if off < pageHeaderSize || off+length > len(p.data) {
		return nil, &ErrInvalidRef{Ref: ref}
	}

	return p.data[off : off+length], nil
}

// pageBuilder packs payloads into a page image: the slot directory grows
// from the header while payloads fill the page from the end downward.
type pageBuilder struct {
	data  []byte
	slots int
	top   int
}

func newPageBuilder(pageSize int) *pageBuilder {
	return &pageBuilder{
		data: make([]byte, pageSize),
		top:  pageSize,
	}
}

// fits reports whether a payload of n bytes still fits into the page.
func (b *pageBuilder) fits(n int) bool {
	dirEnd := pageHeaderSize + slotEntrySize*(b.slots+1)
	return dirEnd+n <= b.top
}

// append stores the payload and returns its slot. The caller must have
// checked fits.
func (b *pageBuilder) append(payload []byte) model.SlotNo {
	b.top -= len(payload)
	copy(b.data[b.top:], payload)

	entry := pageHeaderSize + slotEntrySize*b.slots
	binary.LittleEndian.PutUint16(b.data[entry:entry+2], uint16(b.top))
	binary.LittleEndian.PutUint16(b.data[entry+2:entry+4], uint16(len(payload)))

	slot := model.SlotNo(b.slots)
	b.slots++
	return slot
}

// finish seals the image with slot count and checksum and returns it. The
// slice is reused after reset.
func (b *pageBuilder) finish() []byte {
	binary.LittleEndian.PutUint16(b.data[4:6], uint16(b.slots))
	binary.LittleEndian.PutUint32(b.data[0:4], crc32.Checksum(b.data[4:], crc32cTable))
	return b.data
}

// reset zeroes the image so unused gaps stay deterministic across pages.
func (b *pageBuilder) reset() {
	clear(b.data)
	b.slots = 0
	b.top = len(b.data)
}
