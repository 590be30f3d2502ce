// Package testutil provides testing utilities for vecscan.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors, computing exact
// nearest neighbors, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vectors := rng.UniformVectors(1000, 128) // uniform [0, 1)
//	sphere := rng.UnitVectors(1000, 128)     // L2-normalized
//
// # Exact Search (Ground Truth)
//
//	exact := testutil.BruteForceSearch(vectors, query, k, distance.SquaredL2)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(exact, approximate)
package testutil
