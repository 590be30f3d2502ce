package hnsw

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/vecscan/internal/queue"
)

const (
	// defaultVisitedBits sizes the visited set of a fresh Searcher. The
	// bitset grows on demand for larger graphs.
	defaultVisitedBits = 1 << 16

	// defaultScratchCapacity sizes the frontier, the result queue and the
	// candidate arena of a fresh Searcher.
	defaultScratchCapacity = 128
)

// SearchStats counts the work performed since the last Reset.
type SearchStats struct {
	// NodesVisited is the number of distinct nodes marked visited.
	NodesVisited int

	// DistanceComputations is the number of distance kernel evaluations.
	DistanceComputations int
}

// Searcher holds the scratch state of one graph traversal: the visited
// set, the exploration frontier, the bounded result queue and the arena
// the queues reference candidates through. A Searcher is not safe for
// concurrent use. Obtain one from GetSearcher and return it with
// PutSearcher so allocations are reused across queries.
type Searcher struct {
	visited  *bitset.BitSet
	dirty    []uint // bits set since the last reset, cleared individually
	frontier *queue.PriorityQueue
	results  *queue.PriorityQueue
	arena    []*Node

	// Stats accumulates across layers until Reset.
	Stats SearchStats
}

var searcherPool = sync.Pool{
	New: func() any {
		return NewSearcher()
	},
}

// NewSearcher creates an unpooled Searcher.
func NewSearcher() *Searcher {
	return &Searcher{
		visited:  bitset.New(defaultVisitedBits),
		dirty:    make([]uint, 0, defaultScratchCapacity),
		frontier: queue.NewMin(defaultScratchCapacity),
		results:  queue.NewMax(defaultScratchCapacity),
		arena:    make([]*Node, 0, defaultScratchCapacity),
	}
}

// GetSearcher returns a reset Searcher from the shared pool.
func GetSearcher() *Searcher {
	s, _ := searcherPool.Get().(*Searcher)
	s.Reset()
	return s
}

// PutSearcher returns a Searcher to the shared pool. The Searcher must not
// be used afterwards.
func PutSearcher(s *Searcher) {
	if s == nil {
		return
	}
	searcherPool.Put(s)
}

// Reset clears scratch state and stats, keeping allocations.
func (s *Searcher) Reset() {
	s.resetScratch()
	s.Stats = SearchStats{}
}

// resetScratch clears per-layer state but keeps accumulated stats. Clearing
// only the dirty bits keeps the reset proportional to the nodes actually
// visited instead of the graph size.
func (s *Searcher) resetScratch() {
	for _, u := range s.dirty {
		s.visited.Clear(u)
	}
	s.dirty = s.dirty[:0]
	s.frontier.Reset()
	s.results.Reset()
	clear(s.arena)
	s.arena = s.arena[:0]
}

// visit marks id visited, reporting whether it was unvisited before.
func (s *Searcher) visit(id NodeID) bool {
	u := uint(id)
	if s.visited.Test(u) {
		return false
	}
	s.visited.Set(u)
	s.dirty = append(s.dirty, u)
	s.Stats.NodesVisited++
	return true
}

// hold parks a node in the arena and returns its slot for queue items.
func (s *Searcher) hold(n *Node) uint32 {
	s.arena = append(s.arena, n)
	return uint32(len(s.arena) - 1)
}
