package pager

import (
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/vecscan/model"
)

var (
	// ErrClosed is returned when using a closed pager or writer.
	ErrClosed = errors.New("pager: closed")

	// ErrInvalidFile is returned when a source does not hold a well-formed
	// page file.
	ErrInvalidFile = errors.New("pager: not a page file")

	// ErrInvalidVersion is returned for page files written by an
	// unsupported format version.
	ErrInvalidVersion = errors.New("pager: unsupported page file version")

	// ErrInvalidPageSize is returned when a writer is configured with a
	// page size outside the supported range.
	ErrInvalidPageSize = errors.New("pager: invalid page size")

	// ErrRecordTooLarge is returned when a payload cannot fit into a
	// single page.
	ErrRecordTooLarge = errors.New("pager: record does not fit in a page")

	// ErrNotFound is returned by remote sources when the object behind a
	// page file does not exist.
	ErrNotFound = os.ErrNotExist
)

// ErrInvalidRef is returned when a record ref points outside the file.
type ErrInvalidRef struct {
	Ref model.RecordRef
}

func (e *ErrInvalidRef) Error() string {
	return fmt.Sprintf("pager: no record at %s", e.Ref)
}

// ChecksumError is returned when a page image fails checksum
// verification.
type ChecksumError struct {
	Page model.PageID
	Want uint32
	Got  uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("pager: page %d checksum mismatch: want 0x%08x, got 0x%08x", e.Page, e.Want, e.Got)
}
