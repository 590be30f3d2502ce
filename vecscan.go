package vecscan

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/hupe1980/vecscan/distance"
	"github.com/hupe1980/vecscan/hnsw"
	"github.com/hupe1980/vecscan/pager"
)

// DefaultEFSearch is the default beam width for layer-zero search.
const DefaultEFSearch = 40

// Engine answers nearest-neighbor queries over a graph and the page file
// holding the indexed payloads. The graph orders candidates, the pager
// resolves their record refs to bytes.
type Engine struct {
	graph    hnsw.Graph
	records  pager.Pager
	distFn   distance.Func
	metric   distance.Metric
	efSearch int
	logger   *Logger
	metrics  MetricsCollector
	closed   atomic.Bool
}

// New creates an engine over a graph and a pager. The distance function
// follows the graph's metric.
func New(graph hnsw.Graph, records pager.Pager, optFns ...Option) (*Engine, error) {
	if graph == nil {
		return nil, errors.New("graph must not be nil")
	}

	if records == nil {
		return nil, errors.New("pager must not be nil")
	}

	o := applyOptions(optFns)
	if o.efSearch < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidEFSearch, o.efSearch)
	}

	distFn, err := distance.ForMetric(graph.Metric())
	if err != nil {
		return nil, err
	}

	return &Engine{
		graph:    graph,
		records:  records,
		distFn:   distFn,
		metric:   graph.Metric(),
		efSearch: o.efSearch,
		logger:   o.logger,
		metrics:  o.metricsCollector,
	}, nil
}

// ScanOptions contains per-cursor options.
type ScanOptions struct {
	// EFSearch overrides the engine's beam width for this cursor.
	// Zero keeps the engine default.
	EFSearch int
}

// Open returns a cursor without a query. Call Rescan to set one before
// the first Next.
func (e *Engine) Open(optFns ...func(o *ScanOptions)) (*Cursor, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	opts := ScanOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.EFSearch == 0 {
		opts.EFSearch = e.efSearch
	}

	if opts.EFSearch < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidEFSearch, opts.EFSearch)
	}

	return &Cursor{
		engine:   e,
		efSearch: opts.EFSearch,
	}, nil
}

// Search streams the k nearest records for query. It opens a cursor,
// drains up to k records, and closes the cursor when the loop ends, so
// each yielded Payload is only valid for one iteration.
//
// The beam width is raised to k when it is smaller, otherwise the result
// could not fill up.
//
//	for rec, err := range e.Search(ctx, query, 10) {
//	    if err != nil {
//	        return err
//	    }
//	    use(rec.Ref, rec.Distance)
//	}
func (e *Engine) Search(ctx context.Context, query []float32, k int, optFns ...func(o *ScanOptions)) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		start := time.Now()

		if e.closed.Load() {
			yield(Record{}, ErrClosed)
			return
		}

		if k <= 0 {
			err := fmt.Errorf("%w: got %d", ErrInvalidK, k)
			e.metrics.RecordScan(k, time.Since(start), err)
			e.logger.LogScan(ctx, k, 0, err)
			yield(Record{}, err)
			return
		}

		opts := ScanOptions{EFSearch: e.efSearch}
		for _, fn := range optFns {
			fn(&opts)
		}

		if opts.EFSearch < k {
			opts.EFSearch = k
		}

		cursor, err := e.Open(func(o *ScanOptions) { *o = opts })
		if err != nil {
			yield(Record{}, err)
			return
		}
		defer cursor.Close()

		if err := cursor.Rescan(query); err != nil {
			yield(Record{}, err)
			return
		}

		var count int
		for count < k && cursor.Next(ctx) {
			count++
			if !yield(cursor.Record(), nil) {
				// Early termination
				e.metrics.RecordScan(k, time.Since(start), nil)
				e.logger.LogScan(ctx, k, count, nil)
				return
			}
		}

		if err := cursor.Err(); err != nil {
			e.metrics.RecordScan(k, time.Since(start), err)
			e.logger.LogScan(ctx, k, count, err)
			yield(Record{}, err)
			return
		}

		e.metrics.RecordScan(k, time.Since(start), nil)
		e.logger.LogScan(ctx, k, count, nil)
	}
}

// Metric returns the graph's distance metric.
func (e *Engine) Metric() distance.Metric {
	return e.metric
}

// Graph returns the graph the engine scans. Mutations through it are
// visible to subsequent scans.
func (e *Engine) Graph() hnsw.Graph {
	return e.graph
}

// Close releases the pager. Open cursors must be closed first, their
// pins point into pages the pager is about to drop.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}

	if err := e.records.Close(); err != nil {
		return fmt.Errorf("failed to close pager: %w", err)
	}

	return nil
}
