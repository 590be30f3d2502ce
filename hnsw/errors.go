package hnsw

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEF is returned when a search is asked for a beam width
	// below one.
	ErrInvalidEF = errors.New("hnsw: ef must be at least 1")

	// ErrZeroVector is returned when a vector cannot be normalized for a
	// metric that requires unit length.
	ErrZeroVector = errors.New("hnsw: cannot normalize zero-length vector")

	// ErrDuplicateRecord is returned when a record ref is inserted twice.
	// A deleted ref stays reserved until Vacuum has run.
	ErrDuplicateRecord = errors.New("hnsw: record ref already indexed")

	// ErrInvalidSnapshot is returned when snapshot data does not start
	// with the expected magic bytes.
	ErrInvalidSnapshot = errors.New("hnsw: not a graph snapshot")

	// ErrSnapshotVersion is returned for snapshots written by an
	// unsupported format version.
	ErrSnapshotVersion = errors.New("hnsw: unsupported snapshot version")

	// ErrSnapshotChecksum is returned when the snapshot body does not
	// match its stored checksum.
	ErrSnapshotChecksum = errors.New("hnsw: snapshot checksum mismatch")
)

// ErrInvalidDimension is returned when a graph is created with a
// non-positive dimensionality.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("hnsw: invalid dimension %d, must be positive", e.Dimension)
}

// ErrDimensionMismatch is returned when a vector's length does not match
// the graph dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("hnsw: vector dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
