package vecscan

import (
	"errors"
)

var (
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine is closed")

	// ErrCursorClosed is returned by Next after the cursor was closed.
	ErrCursorClosed = errors.New("cursor is closed")

	// ErrMissingQuery is returned by Next when the cursor was never
	// rescanned with a query vector.
	ErrMissingQuery = errors.New("cursor has no query, call Rescan first")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidEFSearch is returned when the beam width is not positive.
	ErrInvalidEFSearch = errors.New("ef_search must be positive")
)
