package integration_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecscan"
	"github.com/hupe1980/vecscan/distance"
	"github.com/hupe1980/vecscan/hnsw"
	"github.com/hupe1980/vecscan/manifest"
	"github.com/hupe1980/vecscan/pager"
	"github.com/hupe1980/vecscan/testutil"
)

const (
	testDim  = 16
	testSize = 500
	testK    = 10
)

// buildIndex persists a page file and a graph snapshot for num random
// vectors, registers both in a manifest store, and returns the vectors.
func buildIndex(t *testing.T, dir string, num, dim int) [][]float32 {
	t.Helper()
	ctx := context.Background()

	rng := testutil.NewRNG(1)
	vectors := rng.UniformVectors(num, dim)

	g, err := hnsw.NewMemoryGraph(dim, func(o *hnsw.GraphOptions) {
		seed := int64(1)
		o.RandomSeed = &seed
	})
	require.NoError(t, err)

	f, err := os.Create(filepath.Join(dir, "records.vpg"))
	require.NoError(t, err)
	defer f.Close()

	w, err := pager.NewWriter(f, func(o *pager.WriterOptions) {
		o.Compression = true
	})
	require.NoError(t, err)

	for i, v := range vectors {
		ref, err := w.Append([]byte(fmt.Sprintf("item-%04d", i)))
		require.NoError(t, err)

		_, err = g.Insert(ctx, v, ref)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	require.NoError(t, g.SaveSnapshot(filepath.Join(dir, "graph.vsnap")))

	store, err := manifest.NewFileStore(filepath.Join(dir, "manifests"))
	require.NoError(t, err)

	stats := g.Stats()
	require.NoError(t, store.Create(ctx, &manifest.Manifest{
		Name:           "docs",
		Dimension:      dim,
		Metric:         distance.MetricL2,
		M:              hnsw.DefaultM,
		EFConstruction: hnsw.DefaultEFConstruction,
		GraphKey:       "graph.vsnap",
		PagesKey:       "records.vpg",
		RecordCount:    stats.Records,
	}))

	return vectors
}

// openFromManifest reloads the persisted index by looking up its manifest,
// building the pager over the given source kind.
func openFromManifest(t *testing.T, dir, sourceKind string) *vecscan.Engine {
	t.Helper()
	ctx := context.Background()

	store, err := manifest.NewFileStore(filepath.Join(dir, "manifests"))
	require.NoError(t, err)

	m, err := store.Get(ctx, "docs")
	require.NoError(t, err)

	g, err := hnsw.LoadSnapshot(filepath.Join(dir, m.GraphKey))
	require.NoError(t, err)
	assert.Equal(t, m.Dimension, g.Dimension())
	assert.Equal(t, m.Metric, g.Metric())
	assert.Equal(t, m.RecordCount, g.Stats().Records)

	pagePath := filepath.Join(dir, m.PagesKey)

	var src pager.Source
	switch sourceKind {
	case "osfile":
		src, err = pager.OpenOSFile(pagePath)
	case "mmap":
		src, err = pager.OpenMmap(pagePath)
	case "bytes":
		var data []byte
		data, err = os.ReadFile(pagePath)
		if err == nil {
			src = pager.NewBytesSource(data)
		}
	default:
		t.Fatalf("unknown source kind %q", sourceKind)
	}
	require.NoError(t, err)

	file, err := pager.OpenFile(src)
	require.NoError(t, err)

	e, err := vecscan.New(g, file, vecscan.WithEFSearch(64))
	require.NoError(t, err)

	return e
}

func searchAll(t require.TestingT, e *vecscan.Engine, query []float32, k int) []vecscan.Record {
	var records []vecscan.Record
	for rec, err := range e.Search(context.Background(), query, k) {
		require.NoError(t, err)
		rec.Payload = append([]byte(nil), rec.Payload...)
		records = append(records, rec)
	}
	return records
}

// TestScanLifecycle builds an index, persists every artifact, and reloads it
// through all page sources. Results must agree across sources and stay close
// to the brute-force oracle.
func TestScanLifecycle(t *testing.T) {
	dir := t.TempDir()
	vectors := buildIndex(t, dir, testSize, testDim)

	rng := testutil.NewRNG(2)
	queries := rng.UniformVectors(20, testDim)

	var baseline [][]vecscan.Record

	for _, sourceKind := range []string{"osfile", "mmap", "bytes"} {
		t.Run(sourceKind, func(t *testing.T) {
			e := openFromManifest(t, dir, sourceKind)
			defer func() { require.NoError(t, e.Close()) }()

			var totalRecall float64

			for qi, q := range queries {
				records := searchAll(t, e, q, testK)
				require.Len(t, records, testK)

				for i := 1; i < len(records); i++ {
					assert.LessOrEqual(t, records[i-1].Distance, records[i].Distance)
				}

				if baseline == nil || qi >= len(baseline) {
					baseline = append(baseline, records)
				} else {
					// Same graph, same beam: every source must agree.
					require.Equal(t, len(baseline[qi]), len(records))
					for i := range records {
						assert.Equal(t, baseline[qi][i].Ref, records[i].Ref)
						assert.Equal(t, baseline[qi][i].Payload, records[i].Payload)
					}
				}

				got := make([]testutil.SearchResult, len(records))
				for i, rec := range records {
					got[i] = testutil.SearchResult{ID: rec.Ref.Pack(), Distance: rec.Distance}
				}

				truth := testutil.BruteForceSearch(vectors, q, testK, distance.SquaredL2)
				totalRecall += recallByDistance(truth, got)
			}

			recall := totalRecall / float64(len(queries))
			assert.GreaterOrEqual(t, recall, 0.9, "recall %f too low", recall)
		})
	}
}

// TestConcurrentCursors runs many goroutines against one engine, each with
// its own cursor. Cursors are single-threaded, the engine underneath is not.
func TestConcurrentCursors(t *testing.T) {
	dir := t.TempDir()
	buildIndex(t, dir, testSize, testDim)

	e := openFromManifest(t, dir, "osfile")
	defer e.Close()

	rng := testutil.NewRNG(3)
	queries := rng.UniformVectors(32, testDim)

	g, ctx := errgroup.WithContext(context.Background())

	for w := 0; w < 8; w++ {
		g.Go(func() error {
			cursor, err := e.Open()
			if err != nil {
				return err
			}
			defer cursor.Close()

			for _, q := range queries {
				if err := cursor.Rescan(q); err != nil {
					return err
				}

				var prev float32 = -1
				for i := 0; i < testK && cursor.Next(ctx); i++ {
					rec := cursor.Record()
					if rec.Distance < prev {
						return fmt.Errorf("distance went backwards: %f after %f", rec.Distance, prev)
					}
					prev = rec.Distance

					if len(rec.Payload) == 0 {
						return fmt.Errorf("empty payload for %s", rec.Ref)
					}
				}

				if err := cursor.Err(); err != nil {
					return err
				}
			}

			return nil
		})
	}

	require.NoError(t, g.Wait())
}

// TestDeleteAndRescan deletes records out-of-band and verifies no cursor
// returns them afterwards, including across a snapshot round trip.
func TestDeleteAndRescan(t *testing.T) {
	dir := t.TempDir()
	buildIndex(t, dir, testSize, testDim)

	e := openFromManifest(t, dir, "osfile")
	defer e.Close()

	rng := testutil.NewRNG(4)
	query := rng.UniformVectors(1, testDim)[0]

	before := searchAll(t, e, query, testK)
	require.Len(t, before, testK)

	// Drop the two nearest records.
	g := e.Graph().(*hnsw.MemoryGraph)
	require.True(t, g.DeleteRecord(before[0].Ref))
	require.True(t, g.DeleteRecord(before[1].Ref))

	after := searchAll(t, e, query, testK)
	require.Len(t, after, testK)

	for _, rec := range after {
		assert.NotEqual(t, before[0].Ref, rec.Ref)
		assert.NotEqual(t, before[1].Ref, rec.Ref)
	}

	// The rest of the top results shift up by two.
	assert.Equal(t, before[2].Ref, after[0].Ref)
	assert.Equal(t, before[3].Ref, after[1].Ref)

	// Tombstones survive a snapshot round trip.
	snapPath := filepath.Join(dir, "graph-deleted.vsnap")
	require.NoError(t, g.SaveSnapshot(snapPath))

	g2, err := hnsw.LoadSnapshot(snapPath)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "records.vpg"))
	require.NoError(t, err)

	file, err := pager.OpenFile(pager.NewBytesSource(data))
	require.NoError(t, err)

	e2, err := vecscan.New(g2, file, vecscan.WithEFSearch(64))
	require.NoError(t, err)
	defer e2.Close()

	reloaded := searchAll(t, e2, query, testK)
	require.Len(t, reloaded, testK)
	assert.Equal(t, after[0].Ref, reloaded[0].Ref)
}

// recallByDistance matches results by distance value. Brute-force IDs are
// vector indexes while engine results carry packed refs, distances are
// comparable across both.
func recallByDistance(truth, got []testutil.SearchResult) float64 {
	if len(truth) == 0 {
		return 0
	}

	matches := 0
	used := make([]bool, len(got))

	for _, tr := range truth {
		for j, g := range got {
			if !used[j] && g.Distance == tr.Distance {
				used[j] = true
				matches++
				break
			}
		}
	}

	return float64(matches) / float64(len(truth))
}
