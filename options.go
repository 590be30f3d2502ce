package vecscan

import (
	"log/slog"
)

type options struct {
	efSearch         int
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures engine constructor behavior.
type Option func(*options)

// WithEFSearch sets the default beam width for layer-zero search.
// Individual cursors can override it through ScanOptions.
//
// Larger values improve recall and cost more distance computations.
func WithEFSearch(efSearch int) Option {
	return func(o *options) {
		o.efSearch = efSearch
	}
}

// WithMetricsCollector configures a metrics collector for monitoring scans.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecscan.BasicMetricsCollector{}
//	e, _ := vecscan.New(graph, records, vecscan.WithMetricsCollector(metrics))
//	// ... scan ...
//	stats := metrics.GetStats()
//	fmt.Printf("Scans: %d, Avg latency: %dns\n", stats.ScanCount, stats.ScanAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecscan.NewJSONLogger(slog.LevelInfo)
//	e, _ := vecscan.New(graph, records, vecscan.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		efSearch:         DefaultEFSearch,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
