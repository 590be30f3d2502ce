package hnsw

import (
	"context"

	"github.com/hupe1980/vecscan/distance"
	"github.com/hupe1980/vecscan/internal/queue"
)

// SearchLayer runs one bounded best-first traversal of a single graph
// layer. Starting from the seed candidates it repeatedly expands the
// closest frontier member until no member is closer than the worst of the
// ef best candidates found so far, then returns those candidates ordered
// worst-first: the last element is the best match. Consumers that deliver
// results one at a time pop from the tail.
//
// Equal distances break ties toward the smaller NodeID, so repeated
// searches over an unchanged graph return identical orderings.
//
// The seed distances must already be computed against query. An empty seed
// slice yields an empty result. The query must have the graph's
// dimensionality; ef must be at least 1.
func SearchLayer(ctx context.Context, g Graph, query []float32, seeds []Candidate, ef, layer int, dist distance.Func, s *Searcher) ([]Candidate, error) {
	if ef < 1 {
		return nil, ErrInvalidEF
	}

	if len(seeds) == 0 {
		return nil, nil
	}

	s.resetScratch()

	for _, c := range seeds {
		if !s.visit(c.Node.ID) {
			continue
		}

		item := queue.Item{ID: uint64(c.Node.ID), Distance: c.Distance, Ref: s.hold(c.Node)}
		s.frontier.PushItem(item)
		s.results.PushItemBounded(item, ef)
	}

	for s.frontier.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		curr, _ := s.frontier.PopItem()

		// The closest unexpanded node is no closer than the worst kept
		// result: nothing reachable can improve the result set.
		if worst, ok := s.results.TopItem(); ok && s.results.Len() >= ef && curr.Distance > worst.Distance {
			break
		}

		neighbors, err := g.Neighbors(ctx, s.arena[curr.Ref], layer)
		if err != nil {
			return nil, err
		}

		for _, n := range neighbors {
			if !s.visit(n.ID) {
				continue
			}

			d := dist(query, n.Vector)
			s.Stats.DistanceComputations++

			// A neighbor that cannot enter the full result set would only
			// grow the frontier with dead ends.
			if worst, ok := s.results.TopItem(); ok && s.results.Len() >= ef && d > worst.Distance {
				continue
			}

			item := queue.Item{ID: uint64(n.ID), Distance: d, Ref: s.hold(n)}
			s.frontier.PushItem(item)
			s.results.PushItemBounded(item, ef)
		}
	}

	// Draining the max-heap pops the farthest candidate first, which is
	// exactly the worst-first ordering the caller consumes from the tail.
	out := make([]Candidate, s.results.Len())
	for i := range out {
		item, _ := s.results.PopItem()
		out[i] = Candidate{Node: s.arena[item.Ref], Distance: item.Distance}
	}

	return out, nil
}

// Search answers one query against the graph: a greedy descent from the
// entry point with a beam of 1 through every layer above the base, then
// the wide beam search on layer 0 with efSearch candidates.
//
// The result follows the SearchLayer ordering contract, worst-first with
// the best candidate at the tail. An empty graph yields an empty result
// and no error. When layer 0 holds fewer than efSearch reachable nodes the
// result is simply shorter; callers must not treat that as a failure.
func Search(ctx context.Context, g Graph, query []float32, efSearch int, dist distance.Func, s *Searcher) ([]Candidate, error) {
	if efSearch < 1 {
		return nil, ErrInvalidEF
	}

	ep, err := g.EntryPoint(ctx)
	if err != nil {
		return nil, err
	}

	if ep == nil {
		return nil, nil
	}

	s.Stats.DistanceComputations++
	frontier := []Candidate{{Node: ep, Distance: dist(query, ep.Vector)}}

	for layer := ep.Level; layer >= 1; layer-- {
		frontier, err = SearchLayer(ctx, g, query, frontier, 1, layer, dist, s)
		if err != nil {
			return nil, err
		}
	}

	return SearchLayer(ctx, g, query, frontier, efSearch, 0, dist, s)
}
