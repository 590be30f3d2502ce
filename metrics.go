package vecscan

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    scanCounter   prometheus.Counter
//	    pinHistogram  prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordScan(k int, duration time.Duration, err error) {
//	    p.scanCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordScan is called after each completed scan.
	// k is the number of results requested, duration is the time taken,
	// err is nil if successful.
	RecordScan(k int, duration time.Duration, err error)

	// RecordRescan is called whenever a cursor is reset with a new query.
	RecordRescan()

	// RecordPin is called after each page pin.
	// duration is the time taken, err is nil if successful.
	RecordPin(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordScan(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordRescan()                        {}
func (NoopMetricsCollector) RecordPin(time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ScanCount      atomic.Int64
	ScanErrors     atomic.Int64
	ScanTotalNanos atomic.Int64
	RescanCount    atomic.Int64
	PinCount       atomic.Int64
	PinErrors      atomic.Int64
	PinTotalNanos  atomic.Int64
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(k int, duration time.Duration, err error) {
	b.ScanCount.Add(1)
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScanErrors.Add(1)
	}
}

// RecordRescan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRescan() {
	b.RescanCount.Add(1)
}

// RecordPin implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPin(duration time.Duration, err error) {
	b.PinCount.Add(1)
	b.PinTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PinErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ScanCount:    b.ScanCount.Load(),
		ScanErrors:   b.ScanErrors.Load(),
		ScanAvgNanos: b.getAvgScanNanos(),
		RescanCount:  b.RescanCount.Load(),
		PinCount:     b.PinCount.Load(),
		PinErrors:    b.PinErrors.Load(),
		PinAvgNanos:  b.getAvgPinNanos(),
	}
}

func (b *BasicMetricsCollector) getAvgScanNanos() int64 {
	count := b.ScanCount.Load()
	if count == 0 {
		return 0
	}
	return b.ScanTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgPinNanos() int64 {
	count := b.PinCount.Load()
	if count == 0 {
		return 0
	}
	return b.PinTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ScanCount    int64
	ScanErrors   int64
	ScanAvgNanos int64
	RescanCount  int64
	PinCount     int64
	PinErrors    int64
	PinAvgNanos  int64
}
