package vecscan

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/vecscan/distance"
	"github.com/hupe1980/vecscan/hnsw"
	"github.com/hupe1980/vecscan/model"
	"github.com/hupe1980/vecscan/pager"
)

// Record is one scan result.
type Record struct {
	// Ref locates the payload in the page file.
	Ref model.RecordRef

	// Node is the graph node the record hangs off.
	Node hnsw.NodeID

	// Distance to the query under the graph's metric.
	Distance float32

	// Payload aliases the pinned page. It stays valid until the next
	// Next, Rescan, or Close. Clone it to retain.
	Payload []byte
}

// ScanStats counts the work performed since the last Rescan.
type ScanStats struct {
	NodesVisited         int
	DistanceComputations int
	RecordsReturned      int
	PagesPinned          int
}

// scanItem is one graph node worth of results. Items are held worst
// first so the cursor pops the nearest node off the tail.
type scanItem struct {
	node     hnsw.NodeID
	distance float32
	records  []model.RecordRef
}

// Cursor iterates records in ascending distance order. The graph search
// runs lazily on the first Next, and the page holding the current record
// stays pinned until the cursor moves on.
//
// A cursor is not safe for concurrent use.
type Cursor struct {
	engine   *Engine
	efSearch int

	query    []float32
	hasQuery bool
	nullKey  bool

	searched bool
	items    []scanItem
	current  Record
	pinned   *pager.Pinned
	stats    ScanStats
	err      error
	closed   bool
}

// Rescan resets the cursor with a new query vector. A nil query matches
// nothing, every Next returns false without error.
func (c *Cursor) Rescan(query []float32) error {
	if c.closed {
		return ErrCursorClosed
	}

	c.releasePin()
	c.items = nil
	c.searched = false
	c.current = Record{}
	c.stats = ScanStats{}
	c.err = nil

	c.hasQuery = true
	c.nullKey = query == nil
	c.query = slices.Clone(query)

	c.engine.metrics.RecordRescan()
	c.engine.logger.LogRescan(context.Background(), len(query), c.nullKey)

	return nil
}

// Next advances to the next record in ascending distance order. It
// returns false when the scan is exhausted or failed, check Err after
// the loop. Errors are sticky, a failed cursor stays failed until the
// next Rescan.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.closed {
		if c.err == nil {
			c.err = ErrCursorClosed
		}
		return false
	}

	if c.err != nil {
		return false
	}

	if !c.hasQuery {
		c.err = ErrMissingQuery
		return false
	}

	if c.nullKey {
		return false
	}

	if !c.searched {
		if err := c.runSearch(ctx); err != nil {
			c.err = err
			return false
		}
	}

	for {
		n := len(c.items)
		if n == 0 {
			// Exhausted. The last pin is held until Close or Rescan.
			return false
		}

		tail := &c.items[n-1]
		if len(tail.records) == 0 {
			c.items = c.items[:n-1]
			continue
		}

		ref := tail.records[len(tail.records)-1]
		tail.records = tail.records[:len(tail.records)-1]

		if !c.pinRecord(ctx, ref, tail.node, tail.distance) {
			return false
		}

		return true
	}
}

// runSearch performs the graph descent and snapshots the record refs of
// every candidate. Items are kept worst first.
func (c *Cursor) runSearch(ctx context.Context) error {
	c.searched = true

	g := c.engine.graph
	if d := g.Dimension(); len(c.query) != d {
		return &hnsw.ErrDimensionMismatch{Expected: d, Actual: len(c.query)}
	}

	query := c.query
	if distance.NeedsNormalization(c.engine.metric) {
		normalized, ok := distance.NormalizeL2Copy(query)
		if !ok {
			// A zero vector has no direction, the scan matches nothing.
			return nil
		}
		query = normalized
	}

	s := hnsw.GetSearcher()
	defer hnsw.PutSearcher(s)

	candidates, err := hnsw.Search(ctx, g, query, c.efSearch, c.engine.distFn, s)
	if err != nil {
		return err
	}

	c.stats.NodesVisited += s.Stats.NodesVisited
	c.stats.DistanceComputations += s.Stats.DistanceComputations

	c.items = make([]scanItem, 0, len(candidates))
	for _, cand := range candidates {
		records := g.Records(cand.Node)
		if len(records) == 0 {
			continue
		}

		c.items = append(c.items, scanItem{
			node:     cand.Node.ID,
			distance: cand.Distance,
			records:  records,
		})
	}

	return nil
}

// pinRecord swaps the held pin for the page behind ref and publishes the
// record. At most one pin is held at any time.
func (c *Cursor) pinRecord(ctx context.Context, ref model.RecordRef, node hnsw.NodeID, dist float32) bool {
	c.releasePin()

	start := time.Now()
	pinned, err := c.engine.records.Pin(ctx, ref)
	c.engine.metrics.RecordPin(time.Since(start), err)

	if err != nil {
		c.engine.logger.LogPin(ctx, ref, err)
		c.err = fmt.Errorf("failed to pin record %s: %w", ref, err)
		return false
	}

	c.pinned = pinned
	c.stats.PagesPinned++
	c.stats.RecordsReturned++

	c.current = Record{
		Ref:      ref,
		Node:     node,
		Distance: dist,
		Payload:  pinned.Bytes(),
	}

	return true
}

// Record returns the current record. It is only valid after Next
// returned true.
func (c *Cursor) Record() Record {
	return c.current
}

// Err returns the first error encountered by Next, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Stats returns the scan counters accumulated since the last Rescan.
func (c *Cursor) Stats() ScanStats {
	return c.stats
}

// Close releases the held pin. Closing twice is a no-op.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true
	c.releasePin()
	c.items = nil
	c.current = Record{}

	return nil
}

func (c *Cursor) releasePin() {
	if c.pinned != nil {
		c.pinned.Release()
		c.pinned = nil
	}
}
