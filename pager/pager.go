package pager

import (
	"context"
	"sync/atomic"

	"github.com/hupe1980/vecscan/model"
)

// Pager resolves record refs to payload bytes backed by pinned pages.
type Pager interface {
	// Pin resolves ref, pins the page backing it and returns the record
	// payload. The caller must release the pin when done with the bytes.
	Pin(ctx context.Context, ref model.RecordRef) (*Pinned, error)

	// Close releases the pager's resources. Outstanding pins must be
	// released before Close.
	Close() error
}

// Pinned is one record payload held stable by a page pin.
type Pinned struct {
	ref      model.RecordRef
	data     []byte
	release  func()
	released atomic.Bool
}

// Ref returns the record's address.
func (p *Pinned) Ref() model.RecordRef { return p.ref }

// Bytes returns the record payload. The slice aliases the pinned page and
// is only valid until Release.
func (p *Pinned) Bytes() []byte {
	if p.released.Load() {
		return nil
	}
	return p.data
}

// Release returns the pin. It is idempotent.
func (p *Pinned) Release() {
	if p.released.Swap(true) {
		return
	}
	if p.release != nil {
		p.release()
	}
}
