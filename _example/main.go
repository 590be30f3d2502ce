package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/vecscan"
	"github.com/hupe1980/vecscan/distance"
	"github.com/hupe1980/vecscan/hnsw"
	"github.com/hupe1980/vecscan/pager"
	"github.com/hupe1980/vecscan/testutil"
)

func main() {
	seed := int64(4711)
	dim := 32
	size := 50000
	k := 10

	dir, err := os.MkdirTemp("", "vecscan-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	rng := testutil.NewRNG(seed)
	vectors := rng.UniformVectors(size, dim)
	query := rng.UniformVectors(1, dim)[0]

	fmt.Println("--- Build ---")
	fmt.Println("Dimension:", dim)
	fmt.Println("Size:", size)

	pagePath := filepath.Join(dir, "records.vpg")

	f, err := os.Create(pagePath)
	if err != nil {
		log.Fatal(err)
	}

	w, err := pager.NewWriter(f, func(o *pager.WriterOptions) {
		o.Compression = true
	})
	if err != nil {
		log.Fatal(err)
	}

	graph, err := hnsw.NewMemoryGraph(dim, func(o *hnsw.GraphOptions) {
		o.M = 32
		o.RandomSeed = &seed
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	start := time.Now()

	for i, v := range vectors {
		ref, err := w.Append(fmt.Appendf(nil, "item-%d", i))
		if err != nil {
			log.Fatal(err)
		}

		if _, err := graph.Insert(ctx, v, ref); err != nil {
			log.Fatal(err)
		}
	}

	if err := w.Close(); err != nil {
		log.Fatal(err)
	}

	if err := f.Close(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Seconds: %.2f\n\n", time.Since(start).Seconds())

	stats := graph.Stats()
	fmt.Println("Nodes:", stats.Nodes)
	fmt.Println("Records:", stats.Records)
	fmt.Println("MaxLevel:", stats.MaxLevel)
	fmt.Println()

	src, err := pager.OpenOSFile(pagePath)
	if err != nil {
		log.Fatal(err)
	}

	file, err := pager.OpenFile(src)
	if err != nil {
		log.Fatal(err)
	}

	engine, err := vecscan.New(graph, file)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	fmt.Println("--- Scan ---")

	start = time.Now()

	for rec, err := range engine.Search(ctx, query, k, func(o *vecscan.ScanOptions) {
		o.EFSearch = 80
	}) {
		if err != nil {
			log.Fatal(err)
		}

		fmt.Printf("Ref: %s, Distance: %.4f, Payload: %s\n", rec.Ref, rec.Distance, rec.Payload)
	}

	fmt.Printf("Seconds: %.8f\n\n", time.Since(start).Seconds())

	fmt.Println("--- Brute ---")

	start = time.Now()

	truth := testutil.BruteForceSearch(vectors, query, k, distance.SquaredL2)

	for _, r := range truth {
		fmt.Printf("ID: %d, Distance: %.4f\n", r.ID, r.Distance)
	}

	fmt.Printf("Seconds: %.8f\n", time.Since(start).Seconds())
}
