package model

import (
	"fmt"
)

// PageID identifies a fixed-size page within a record file.
type PageID uint32

// SlotNo identifies a record slot within a page.
type SlotNo uint16

// RecordRef is the stable address of one stored record: a page number plus
// a slot within that page. Graph nodes hold ordered lists of RecordRefs and
// the pager resolves them to payload bytes.
type RecordRef struct {
	Page PageID
	Slot SlotNo
}

// String returns a compact "(page,slot)" form used in logs and errors.
func (r RecordRef) String() string {
	return fmt.Sprintf("(%d,%d)", r.Page, r.Slot)
}

// Pack encodes the ref into a single uint64, suitable as a bitmap key.
func (r RecordRef) Pack() uint64 {
	return uint64(r.Page)<<16 | uint64(r.Slot)
}

// UnpackRecordRef is the inverse of Pack.
func UnpackRecordRef(v uint64) RecordRef {
	return RecordRef{Page: PageID(v >> 16), Slot: SlotNo(v & 0xffff)}
}
