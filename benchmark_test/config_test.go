package benchmark_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/vecscan"
	"github.com/hupe1980/vecscan/hnsw"
	"github.com/hupe1980/vecscan/pager"
	"github.com/hupe1980/vecscan/testutil"
)

// ============================================================================
// Benchmark Configuration
// ============================================================================

// Standard dimensions used across benchmarks for consistency.
const (
	dimSmall  = 32  // Fast CI benchmarks
	dimMedium = 128 // Sentence-transformer scale
	dimLarge  = 768 // OpenAI text-embedding-3-small, Cohere v3
)

// Standard dataset sizes.
const (
	sizeSmall  = 1_000  // Quick iteration
	sizeMedium = 10_000 // Default CI
)

// Seed for deterministic benchmarks - enables reproducible comparisons.
const benchSeed = 42

// ============================================================================
// Benchmark Fixtures
// ============================================================================

// benchFixture holds a built engine plus the raw vectors and query set, so
// benchmarks can compute recall against a brute-force oracle.
type benchFixture struct {
	engine  *vecscan.Engine
	vectors [][]float32
	queries [][]float32
}

var (
	fixtureMu    sync.Mutex
	fixtureCache = map[string]*benchFixture{}
)

// openBenchFixture builds (or reuses) an in-memory engine over num random
// vectors. Fixtures are cached for the process lifetime, building a graph
// dominates benchmark startup otherwise.
func openBenchFixture(b *testing.B, num, dim int) *benchFixture {
	b.Helper()

	key := fmt.Sprintf("%d-%d", num, dim)

	fixtureMu.Lock()
	defer fixtureMu.Unlock()

	if f, ok := fixtureCache[key]; ok {
		return f
	}

	ctx := context.Background()

	g, err := hnsw.NewMemoryGraph(dim, func(o *hnsw.GraphOptions) {
		seed := int64(benchSeed)
		o.RandomSeed = &seed
	})
	if err != nil {
		b.Fatalf("failed to create graph: %v", err)
	}

	mem := pager.NewMemory()

	rng := testutil.NewRNG(benchSeed)
	vectors := rng.UniformVectors(num, dim)

	for i, v := range vectors {
		ref := mem.Append(fmt.Appendf(nil, "item-%d", i))
		if _, err := g.Insert(ctx, v, ref); err != nil {
			b.Fatalf("failed to insert vector %d: %v", i, err)
		}
	}

	e, err := vecscan.New(g, mem)
	if err != nil {
		b.Fatalf("failed to create engine: %v", err)
	}

	f := &benchFixture{
		engine:  e,
		vectors: vectors,
		queries: rng.UniformVectors(100, dim),
	}
	fixtureCache[key] = f

	return f
}

// drainSearch runs one full Search and returns the number of records seen.
func drainSearch(b *testing.B, f *benchFixture, query []float32, k, efSearch int) int {
	var count int
	for _, err := range f.engine.Search(context.Background(), query, k, func(o *vecscan.ScanOptions) {
		o.EFSearch = efSearch
	}) {
		if err != nil {
			b.Fatal(err)
		}
		count++
	}
	return count
}
