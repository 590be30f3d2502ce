package hnsw

import (
	"context"
	"testing"

	"github.com/hupe1980/vecscan/distance"
	"github.com/hupe1980/vecscan/model"
	"github.com/hupe1980/vecscan/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRef(i int) model.RecordRef {
	return model.RecordRef{Page: model.PageID(i / 64), Slot: model.SlotNo(i % 64)}
}

func buildGraph(t *testing.T, vectors [][]float32, optFns ...func(o *GraphOptions)) *MemoryGraph {
	t.Helper()

	seed := int64(42)
	withSeed := func(o *GraphOptions) {
		o.RandomSeed = &seed
	}

	g, err := NewMemoryGraph(len(vectors[0]), append([]func(o *GraphOptions){withSeed}, optFns...)...)
	require.NoError(t, err)

	for i, v := range vectors {
		_, err := g.Insert(context.Background(), v, testRef(i))
		require.NoError(t, err)
	}

	return g
}

func TestSearchEmptyGraph(t *testing.T) {
	g, err := NewMemoryGraph(4)
	require.NoError(t, err)

	s := GetSearcher()
	defer PutSearcher(s)

	got, err := Search(context.Background(), g, []float32{1, 2, 3, 4}, 10, distance.SquaredL2, s)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchInvalidEF(t *testing.T) {
	g, err := NewMemoryGraph(4)
	require.NoError(t, err)

	s := GetSearcher()
	defer PutSearcher(s)

	_, err = Search(context.Background(), g, []float32{1, 2, 3, 4}, 0, distance.SquaredL2, s)
	assert.ErrorIs(t, err, ErrInvalidEF)
}

func TestSearchLayerEmptyFrontier(t *testing.T) {
	rng := testutil.NewRNG(1)
	g := buildGraph(t, rng.UniformVectors(10, 4))

	s := GetSearcher()
	defer PutSearcher(s)

	got, err := SearchLayer(context.Background(), g, []float32{0, 0, 0, 0}, nil, 4, 0, distance.SquaredL2, s)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchWorstFirstOrdering(t *testing.T) {
	rng := testutil.NewRNG(2)
	vectors := rng.UniformVectors(500, 8)
	g := buildGraph(t, vectors)

	query := rng.UniformVectors(1, 8)[0]

	s := GetSearcher()
	defer PutSearcher(s)

	got, err := Search(context.Background(), g, query, 32, distance.SquaredL2, s)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 32)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Distance, got[i].Distance, "index %d", i)
	}
}

func TestSearchLayerVisitsEachNodeOnce(t *testing.T) {
	rng := testutil.NewRNG(9)
	vectors := rng.UniformVectors(60, 4)
	g := buildGraph(t, vectors)

	ctx := context.Background()

	ep, err := g.EntryPoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, ep)

	s := GetSearcher()
	defer PutSearcher(s)

	query := []float32{0.5, 0.5, 0.5, 0.5}
	seeds := []Candidate{{Node: ep, Distance: distance.SquaredL2(query, ep.Vector)}}

	// Layer 0 links are bidirectional, so the layer is full of cycles. A
	// beam wider than the graph explores everything reachable, marking
	// each node at most once.
	got, err := SearchLayer(ctx, g, query, seeds, 128, 0, distance.SquaredL2, s)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	assert.LessOrEqual(t, s.Stats.NodesVisited, len(vectors))
}

func TestSearchUnderfilledResult(t *testing.T) {
	rng := testutil.NewRNG(3)
	g := buildGraph(t, rng.UniformVectors(3, 4))

	s := GetSearcher()
	defer PutSearcher(s)

	got, err := Search(context.Background(), g, []float32{0.5, 0.5, 0.5, 0.5}, 10, distance.SquaredL2, s)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSearchTieBreakBySmallerID(t *testing.T) {
	// All four vectors are at distance 1 from the origin.
	vectors := [][]float32{
		{1, 0},
		{0, 1},
		{-1, 0},
		{0, -1},
	}
	g := buildGraph(t, vectors)

	s := GetSearcher()
	defer PutSearcher(s)

	got, err := Search(context.Background(), g, []float32{0, 0}, 4, distance.SquaredL2, s)
	require.NoError(t, err)
	require.Len(t, got, 4)

	// Worst-first with equal distances orders descending by ID, leaving
	// the smallest ID in the best (tail) position.
	want := []NodeID{3, 2, 1, 0}
	for i, c := range got {
		assert.Equal(t, want[i], c.Node.ID)
		assert.InDelta(t, 1.0, c.Distance, 1e-6)
	}
}

func TestSearchDeterministic(t *testing.T) {
	rng := testutil.NewRNG(4)
	vectors := rng.UniformVectors(300, 8)
	g := buildGraph(t, vectors)

	query := rng.UniformVectors(1, 8)[0]

	run := func() []NodeID {
		s := GetSearcher()
		defer PutSearcher(s)

		got, err := Search(context.Background(), g, query, 16, distance.SquaredL2, s)
		require.NoError(t, err)

		ids := make([]NodeID, len(got))
		for i, c := range got {
			ids[i] = c.Node.ID
		}
		return ids
	}

	assert.Equal(t, run(), run())
}

func TestSearchDescentImproves(t *testing.T) {
	rng := testutil.NewRNG(5)
	vectors := rng.UniformVectors(2000, 8)
	g := buildGraph(t, vectors)

	require.GreaterOrEqual(t, g.Stats().MaxLevel, 1, "graph too flat for a descent test")

	query := rng.UniformVectors(1, 8)[0]
	ctx := context.Background()

	ep, err := g.EntryPoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, ep)

	s := GetSearcher()
	defer PutSearcher(s)

	frontier := []Candidate{{Node: ep, Distance: distance.SquaredL2(query, ep.Vector)}}
	prev := frontier[0].Distance

	for layer := ep.Level; layer >= 1; layer-- {
		frontier, err = SearchLayer(ctx, g, query, frontier, 1, layer, distance.SquaredL2, s)
		require.NoError(t, err)
		require.Len(t, frontier, 1)

		assert.LessOrEqual(t, frontier[0].Distance, prev, "layer %d", layer)
		prev = frontier[0].Distance
	}
}

func TestSearchRecall(t *testing.T) {
	rng := testutil.NewRNG(6)
	vectors := rng.UniformVectors(1000, 16)
	g := buildGraph(t, vectors)

	queries := rng.UniformVectors(20, 16)

	var recallSum float64
	for _, query := range queries {
		s := GetSearcher()
		got, err := Search(context.Background(), g, query, 100, distance.SquaredL2, s)
		PutSearcher(s)
		require.NoError(t, err)

		approx := make([]testutil.SearchResult, 0, 10)
		for i := len(got) - 1; i >= 0 && len(approx) < 10; i-- {
			approx = append(approx, testutil.SearchResult{
				ID:       uint64(got[i].Node.ID),
				Distance: got[i].Distance,
			})
		}

		exact := testutil.BruteForceSearch(vectors, query, 10, distance.SquaredL2)
		recallSum += testutil.ComputeRecall(exact, approx)
	}

	avgRecall := recallSum / float64(len(queries))
	assert.GreaterOrEqual(t, avgRecall, 0.9, "recall@10 too low: %.3f", avgRecall)
}

func TestSearchCanceledContext(t *testing.T) {
	rng := testutil.NewRNG(7)
	g := buildGraph(t, rng.UniformVectors(50, 4))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := GetSearcher()
	defer PutSearcher(s)

	_, err := Search(ctx, g, []float32{0, 0, 0, 0}, 4, distance.SquaredL2, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearcherReuseAcrossGraphs(t *testing.T) {
	rng := testutil.NewRNG(8)
	big := buildGraph(t, rng.UniformVectors(400, 4))
	small := buildGraph(t, rng.UniformVectors(5, 4))

	s := GetSearcher()
	defer PutSearcher(s)

	query := []float32{0.5, 0.5, 0.5, 0.5}

	_, err := Search(context.Background(), big, query, 20, distance.SquaredL2, s)
	require.NoError(t, err)
	assert.Positive(t, s.Stats.NodesVisited)
	assert.Positive(t, s.Stats.DistanceComputations)

	// Visited state from the first graph must not leak into the second.
	s.Reset()
	assert.Zero(t, s.Stats.NodesVisited)

	got, err := Search(context.Background(), small, query, 10, distance.SquaredL2, s)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}
