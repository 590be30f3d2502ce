package hnsw

import (
	"context"

	"github.com/hupe1980/vecscan/distance"
	"github.com/hupe1980/vecscan/model"
)

// NodeID identifies a graph node. IDs are assigned densely in insertion
// order and double as the deterministic tie-break between candidates at
// equal distance.
type NodeID uint64

// Node is one vertex of the layered graph. A node appears on every layer
// from 0 up to its Level. Nodes are shared between concurrent searches and
// must be treated as read-only by traversal code.
type Node struct {
	ID NodeID

	// Level is the highest layer the node appears on.
	Level int

	// Vector is the indexed value, already normalized when the graph
	// metric requires it.
	Vector []float32

	// Records holds the stable addresses of all stored items carrying this
	// vector value, oldest first. More than one entry means duplicate
	// vectors were collapsed into a single vertex.
	Records []model.RecordRef
}

// Graph is the read side of a layered proximity graph. Implementations
// must allow concurrent readers; Search never mutates graph state through
// this interface.
type Graph interface {
	// EntryPoint returns the node the descent starts from, or nil with a
	// nil error when the graph is empty.
	EntryPoint(ctx context.Context) (*Node, error)

	// Neighbors returns the adjacency of node on the given layer.
	Neighbors(ctx context.Context, node *Node, layer int) ([]*Node, error)

	// Records returns the live record references of node. The returned
	// slice is owned by the caller; tombstoned records are filtered out.
	Records(node *Node) []model.RecordRef

	// Dimension returns the vector dimensionality of the graph.
	Dimension() int

	// Metric returns the distance metric the graph was built under.
	Metric() distance.Metric
}

// Candidate pairs a node with its distance to the current query vector.
// Candidates never outlive the search that produced them.
type Candidate struct {
	Node     *Node
	Distance float32
}
