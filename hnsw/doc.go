// Package hnsw implements search over a hierarchical navigable small world
// graph: a greedy descent through the upper layers followed by a bounded
// best-first beam search on the base layer.
//
// The package separates the traversal from the graph representation. Search
// and SearchLayer run against any Graph implementation; MemoryGraph is the
// built-in in-process implementation with insertion, record tombstoning and
// snapshot persistence.
//
// Results are returned worst-first so that consumers delivering one record
// at a time can pop the best candidate from the tail without re-sorting.
package hnsw
