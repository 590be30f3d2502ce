package pager

import (
	"context"
	"slices"
	"sync"

	"github.com/hupe1980/vecscan/model"
)

// DefaultSlotsPerPage is the Memory pager's page granularity.
const DefaultSlotsPerPage = 64

// MemoryOptions configure a Memory pager.
type MemoryOptions struct {
	// SlotsPerPage sets how many records share one logical page. Defaults
	// to DefaultSlotsPerPage.
	SlotsPerPage int
}

// Memory is a self-contained Pager backed by plain byte slices. It keeps
// the same pin discipline as File, tracking pin balances per page, which
// makes it the reference pager for tests.
type Memory struct {
	mu           sync.Mutex
	slotsPerPage int
	pages        [][][]byte
	pins         map[model.PageID]int
	closed       bool
}

// NewMemory creates an empty Memory pager.
func NewMemory(optFns ...func(o *MemoryOptions)) *Memory {
	opts := MemoryOptions{
		SlotsPerPage: DefaultSlotsPerPage,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SlotsPerPage < 1 {
		opts.SlotsPerPage = DefaultSlotsPerPage
	}

	return &Memory{
		slotsPerPage: opts.SlotsPerPage,
		pins:         make(map[model.PageID]int),
	}
}

// Append stores a copy of payload and returns its ref.
func (m *Memory) Append(payload []byte) model.RecordRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pages) == 0 || len(m.pages[len(m.pages)-1]) >= m.slotsPerPage {
		m.pages = append(m.pages, make([][]byte, 0, m.slotsPerPage))
	}

	p := len(m.pages) - 1
	m.pages[p] = append(m.pages[p], slices.Clone(payload))

	return model.RecordRef{
		Page: model.PageID(p),
		Slot: model.SlotNo(len(m.pages[p]) - 1),
	}
}

// Pin implements Pager.
func (m *Memory) Pin(_ context.Context, ref model.RecordRef) (*Pinned, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	if int(ref.Page) >= len(m.pages) || int(ref.Slot) >= len(m.pages[ref.Page]) {
		return nil, &ErrInvalidRef{Ref: ref}
	}

	m.pins[ref.Page]++

	return &Pinned{
		ref:     ref,
		data:    m.pages[ref.Page][ref.Slot],
		release: func() { m.unpin(ref.Page) },
	}, nil
}

// OutstandingPins returns the total number of unreleased pins, which must
// drain to zero when every cursor is closed.
func (m *Memory) OutstandingPins() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, n := range m.pins {
		total += n
	}
	return total
}

// Close implements Pager.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *Memory) unpin(id model.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pins[id] > 0 {
		m.pins[id]--
		if m.pins[id] == 0 {
			delete(m.pins, id)
		}
	}
}
