package hnsw

import (
	"cmp"
	"context"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/vecscan/distance"
	"github.com/hupe1980/vecscan/model"
)

const (
	// DefaultM is the default number of bidirectional links per node on
	// the upper layers. Layer 0 allows twice as many.
	DefaultM = 16

	// DefaultEFConstruction is the default beam width used while linking
	// a newly inserted node.
	DefaultEFConstruction = 200

	// layerNormalizationBase is the numerator of the level multiplier in
	// the exponential layer distribution.
	layerNormalizationBase = 1.0

	minM            = 2
	mmax0Multiplier = 2
)

// GraphOptions configure a MemoryGraph.
type GraphOptions struct {
	// Metric selects the distance metric vectors are indexed under.
	Metric distance.Metric

	// M is the number of bidirectional links per node on the upper
	// layers; layer 0 allows 2*M.
	M int

	// EFConstruction is the candidate beam width used while linking a
	// newly inserted node.
	EFConstruction int

	// Heuristic enables the spread-out neighbor selection instead of
	// plain closest-M.
	Heuristic bool

	// RandomSeed fixes the level generator for reproducible graphs.
	// Nil seeds from the clock.
	RandomSeed *int64
}

// MemoryGraph is an in-process Graph with insertion, record tombstoning
// and snapshot persistence. All methods are safe for concurrent use.
// Mutations take an exclusive lock, so running searches observe the graph
// only between inserts.
type MemoryGraph struct {
	mu sync.RWMutex

	dimension int
	opts      GraphOptions
	distFn    distance.Func

	maxM            int
	maxM0           int
	layerMultiplier float64
	rng             *rand.Rand

	nodes    []*Node      // dense, indexed by NodeID
	links    [][][]NodeID // links[id][layer]
	entry    NodeID
	hasEntry bool
	maxLevel int

	live       *roaring64.Bitmap // packed refs currently addressable
	tombstones *roaring64.Bitmap // packed refs deleted but not vacuumed
}

// NewMemoryGraph creates an empty graph for vectors of the given
// dimensionality.
func NewMemoryGraph(dimension int, optFns ...func(o *GraphOptions)) (*MemoryGraph, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}

	opts := GraphOptions{
		Metric:         distance.MetricL2,
		M:              DefaultM,
		EFConstruction: DefaultEFConstruction,
		Heuristic:      true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < minM {
		opts.M = minM
	}

	if opts.EFConstruction <= 0 {
		opts.EFConstruction = DefaultEFConstruction
	}

	distFn, err := distance.ForMetric(opts.Metric)
	if err != nil {
		return nil, err
	}

	var rng *rand.Rand
	if opts.RandomSeed != nil {
		rng = rand.New(rand.NewSource(*opts.RandomSeed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &MemoryGraph{
		dimension:       dimension,
		opts:            opts,
		distFn:          distFn,
		maxM:            opts.M,
		maxM0:           mmax0Multiplier * opts.M,
		layerMultiplier: layerNormalizationBase / math.Log(float64(opts.M)),
		rng:             rng,
		live:            roaring64.New(),
		tombstones:      roaring64.New(),
	}, nil
}

// Insert indexes vector under ref and returns the node it landed on. A
// vector equal to an already indexed one chains its ref onto the existing
// node instead of allocating a new vertex. Refs stay unavailable for
// reuse until a delete of them has been vacuumed.
func (g *MemoryGraph) Insert(ctx context.Context, vector []float32, ref model.RecordRef) (NodeID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if len(vector) != g.dimension {
		return 0, &ErrDimensionMismatch{Expected: g.dimension, Actual: len(vector)}
	}

	vec := slices.Clone(vector)
	if distance.NeedsNormalization(g.opts.Metric) {
		if !distance.NormalizeL2InPlace(vec) {
			return 0, ErrZeroVector
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	packed := ref.Pack()
	if g.live.Contains(packed) || g.tombstones.Contains(packed) {
		return 0, ErrDuplicateRecord
	}

	level := g.randomLevel()

	if !g.hasEntry {
		id := g.allocNode(vec, ref, level)
		g.entry = id
		g.hasEntry = true
		g.maxLevel = level
		g.live.Add(packed)
		return id, nil
	}

	s := GetSearcher()
	defer PutSearcher(s)

	view := lockedView{g: g}
	ep := g.nodes[g.entry]
	frontier := []Candidate{{Node: ep, Distance: g.distFn(vec, ep.Vector)}}

	var err error
	for layer := g.maxLevel; layer > level; layer-- {
		frontier, err = SearchLayer(ctx, view, vec, frontier, 1, layer, g.distFn, s)
		if err != nil {
			return 0, err
		}
	}

	top := min(level, g.maxLevel)
	layerCands := make([][]Candidate, top+1)
	for layer := top; layer >= 0; layer-- {
		frontier, err = SearchLayer(ctx, view, vec, frontier, g.opts.EFConstruction, layer, g.distFn, s)
		if err != nil {
			return 0, err
		}
		layerCands[layer] = frontier
	}

	// Duplicate vectors collapse into the existing node, best candidates
	// first since the tail of the beam is closest.
	for i := len(layerCands[0]) - 1; i >= 0; i-- {
		c := layerCands[0][i]
		if slices.Equal(c.Node.Vector, vec) {
			c.Node.Records = append(c.Node.Records, ref)
			g.live.Add(packed)
			return c.Node.ID, nil
		}
	}

	id := g.allocNode(vec, ref, level)
	g.live.Add(packed)

	for layer := top; layer >= 0; layer-- {
		m := g.maxM
		if layer == 0 {
			m = g.maxM0
		}

		for _, nb := range g.selectNeighbors(layerCands[layer], m) {
			g.links[id][layer] = append(g.links[id][layer], nb)
			g.addLink(nb, id, layer)
		}
	}

	if level > g.maxLevel {
		g.maxLevel = level
		g.entry = id
	}

	return id, nil
}

// DeleteRecord tombstones one record, reporting whether it was live. The
// node keeps serving as a traversal waypoint until Vacuum.
func (g *MemoryGraph) DeleteRecord(ref model.RecordRef) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	packed := ref.Pack()
	if !g.live.Contains(packed) {
		return false
	}

	g.live.Remove(packed)
	g.tombstones.Add(packed)

	return true
}

// Vacuum drops tombstoned records from their nodes and frees their refs
// for reuse. Nodes left without any records remain as traversal
// waypoints. Returns the number of records removed.
func (g *MemoryGraph) Vacuum() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tombstones.IsEmpty() {
		return 0
	}

	removed := int(g.tombstones.GetCardinality())

	for _, n := range g.nodes {
		if len(n.Records) == 0 {
			continue
		}

		kept := n.Records[:0]
		for _, ref := range n.Records {
			if !g.tombstones.Contains(ref.Pack()) {
				kept = append(kept, ref)
			}
		}
		n.Records = kept
	}

	g.tombstones = roaring64.New()

	return removed
}

// EntryPoint implements Graph.
func (g *MemoryGraph) EntryPoint(_ context.Context) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasEntry {
		return nil, nil
	}

	return g.nodes[g.entry], nil
}

// Neighbors implements Graph.
func (g *MemoryGraph) Neighbors(_ context.Context, node *Node, layer int) ([]*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.neighborsLocked(node, layer), nil
}

// Records implements Graph, filtering out tombstoned refs.
func (g *MemoryGraph) Records(node *Node) []model.RecordRef {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.recordsLocked(node)
}

// Dimension implements Graph.
func (g *MemoryGraph) Dimension() int { return g.dimension }

// Metric implements Graph.
func (g *MemoryGraph) Metric() distance.Metric { return g.opts.Metric }

// Len returns the number of graph nodes, including record-less waypoints.
func (g *MemoryGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// GraphStats describes the shape and occupancy of a MemoryGraph.
type GraphStats struct {
	// Nodes is the total vertex count, waypoints included.
	Nodes int

	// Records is the number of live records.
	Records uint64

	// Tombstones is the number of deleted records awaiting Vacuum.
	Tombstones uint64

	// MaxLevel is the highest populated layer.
	MaxLevel int

	// LevelNodes counts nodes by their top level, index 0 first.
	LevelNodes []int
}

// Stats returns a consistent snapshot of the graph shape.
func (g *MemoryGraph) Stats() GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	st := GraphStats{
		Nodes:      len(g.nodes),
		Records:    g.live.GetCardinality(),
		Tombstones: g.tombstones.GetCardinality(),
		MaxLevel:   g.maxLevel,
	}

	if len(g.nodes) > 0 {
		st.LevelNodes = make([]int, g.maxLevel+1)
		for _, n := range g.nodes {
			st.LevelNodes[n.Level]++
		}
	}

	return st
}

func (g *MemoryGraph) allocNode(vec []float32, ref model.RecordRef, level int) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &Node{
		ID:      id,
		Level:   level,
		Vector:  vec,
		Records: []model.RecordRef{ref},
	})
	g.links = append(g.links, make([][]NodeID, level+1))

	return id
}

func (g *MemoryGraph) randomLevel() int {
	return int(math.Floor(-math.Log(g.rng.Float64()) * g.layerMultiplier))
}

func (g *MemoryGraph) neighborsLocked(node *Node, layer int) []*Node {
	if int(node.ID) >= len(g.links) {
		return nil
	}

	layers := g.links[node.ID]
	if layer < 0 || layer >= len(layers) {
		return nil
	}

	ids := layers[layer]
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id]
	}

	return out
}

func (g *MemoryGraph) recordsLocked(node *Node) []model.RecordRef {
	if g.tombstones.IsEmpty() {
		return slices.Clone(node.Records)
	}

	out := make([]model.RecordRef, 0, len(node.Records))
	for _, ref := range node.Records {
		if !g.tombstones.Contains(ref.Pack()) {
			out = append(out, ref)
		}
	}

	return out
}

// selectNeighbors picks up to m link targets from worst-first candidates.
func (g *MemoryGraph) selectNeighbors(cands []Candidate, m int) []NodeID {
	if g.opts.Heuristic && len(cands) > m {
		return g.selectNeighborsHeuristic(cands, m)
	}

	n := min(m, len(cands))
	out := make([]NodeID, 0, n)
	for i := len(cands) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, cands[i].Node.ID)
	}

	return out
}

// selectNeighborsHeuristic keeps a candidate only if it is closer to the
// new node than to every neighbor already kept, which spreads links
// across clusters instead of packing them into the nearest one.
func (g *MemoryGraph) selectNeighborsHeuristic(cands []Candidate, m int) []NodeID {
	out := make([]NodeID, 0, m)
	kept := make([]*Node, 0, m)

	for i := len(cands) - 1; i >= 0 && len(out) < m; i-- {
		c := cands[i]

		good := true
		for _, k := range kept {
			if g.distFn(c.Node.Vector, k.Vector) < c.Distance {
				good = false
				break
			}
		}

		if good {
			out = append(out, c.Node.ID)
			kept = append(kept, c.Node)
		}
	}

	// Fill up with the skipped candidates, closest first.
	for i := len(cands) - 1; i >= 0 && len(out) < m; i-- {
		if !slices.Contains(out, cands[i].Node.ID) {
			out = append(out, cands[i].Node.ID)
		}
	}

	return out
}

// addLink adds a backlink from id to target, pruning to the layer's link
// budget when the node is over capacity.
func (g *MemoryGraph) addLink(id, target NodeID, layer int) {
	conns := g.links[id][layer]
	if slices.Contains(conns, target) {
		return
	}

	m := g.maxM
	if layer == 0 {
		m = g.maxM0
	}

	if len(conns) < m {
		g.links[id][layer] = append(conns, target)
		return
	}

	src := g.nodes[id]
	cands := make([]Candidate, 0, len(conns)+1)
	for _, c := range conns {
		n := g.nodes[c]
		cands = append(cands, Candidate{Node: n, Distance: g.distFn(src.Vector, n.Vector)})
	}
	t := g.nodes[target]
	cands = append(cands, Candidate{Node: t, Distance: g.distFn(src.Vector, t.Vector)})

	// selectNeighbors consumes worst-first input with the best at the
	// tail, smaller IDs winning ties.
	slices.SortFunc(cands, func(a, b Candidate) int {
		if a.Distance != b.Distance {
			return cmp.Compare(b.Distance, a.Distance)
		}
		return cmp.Compare(b.Node.ID, a.Node.ID)
	})

	g.links[id][layer] = g.selectNeighbors(cands, m)
}

// lockedView exposes the graph's unlocked internals through the Graph
// interface so the insert path can reuse SearchLayer while already
// holding the write lock.
type lockedView struct {
	g *MemoryGraph
}

func (v lockedView) EntryPoint(_ context.Context) (*Node, error) {
	if !v.g.hasEntry {
		return nil, nil
	}
	return v.g.nodes[v.g.entry], nil
}

func (v lockedView) Neighbors(_ context.Context, node *Node, layer int) ([]*Node, error) {
	return v.g.neighborsLocked(node, layer), nil
}

func (v lockedView) Records(node *Node) []model.RecordRef {
	return v.g.recordsLocked(node)
}

func (v lockedView) Dimension() int { return v.g.dimension }

func (v lockedView) Metric() distance.Metric { return v.g.opts.Metric }
