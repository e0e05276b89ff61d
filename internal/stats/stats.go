// Package stats aggregates per-session usage records into run-wide
// statistics and cost estimates.
package stats

import (
	"math"
	"sync"

	"sessionq/internal/usage"
)

const bytesPerMB = 1024 * 1024

// Projections extrapolate the average session size linearly, in MB.
type Projections struct {
	Per100   float64 `json:"per_100" yaml:"per_100"`
	Per1000  float64 `json:"per_1000" yaml:"per_1000"`
	Per10000 float64 `json:"per_10000" yaml:"per_10000"`
}

// AggregateStats is a point-in-time view of an Aggregator. MB values are
// rounded to two decimals for display.
type AggregateStats struct {
	Count              int             `json:"count" yaml:"count"`
	TotalBytes         uint64          `json:"total_bytes" yaml:"total_bytes"`
	TotalMB            float64         `json:"total_mb" yaml:"total_mb"`
	AvgMB              float64         `json:"avg_mb" yaml:"avg_mb"`
	MaxMB              float64         `json:"max_mb" yaml:"max_mb"`
	MinMB              float64         `json:"min_mb" yaml:"min_mb"`
	P50MB              float64         `json:"p50_mb" yaml:"p50_mb"`
	P90MB              float64         `json:"p90_mb" yaml:"p90_mb"`
	P99MB              float64         `json:"p99_mb" yaml:"p99_mb"`
	TotalRequests      uint64          `json:"total_requests" yaml:"total_requests"`
	AvgRequests        int             `json:"avg_requests" yaml:"avg_requests"`
	AvgDurationSeconds int             `json:"avg_duration_seconds" yaml:"avg_duration_seconds"`
	Breakdown          usage.Breakdown `json:"breakdown" yaml:"breakdown"`
	Projections        Projections     `json:"projections" yaml:"projections"`
}

// Aggregator holds running usage statistics. It is safe for concurrent use.
type Aggregator struct {
	mu sync.Mutex

	count         int
	totalBytes    uint64
	minBytes      uint64
	maxBytes      uint64
	totalRequests uint64
	totalDuration uint64
	breakdown     usage.Breakdown

	sizes *SafeHistogram
}

func NewAggregator() *Aggregator {
	return &Aggregator{sizes: NewSafeHistogram()}
}

// Ingest adds one session record. Sums are kept in raw bytes so rounding
// never compounds across sessions.
func (a *Aggregator) Ingest(rec usage.Record) {
	a.mu.Lock()
	if a.count == 0 || rec.TotalBytes < a.minBytes {
		a.minBytes = rec.TotalBytes
	}
	if a.count == 0 || rec.TotalBytes > a.maxBytes {
		a.maxBytes = rec.TotalBytes
	}
	a.count++
	a.totalBytes += rec.TotalBytes
	a.totalRequests += uint64(rec.RequestCount)
	a.totalDuration += uint64(rec.DurationSeconds)
	a.breakdown.Document += rec.Breakdown.Document
	a.breakdown.Script += rec.Breakdown.Script
	a.breakdown.Stylesheet += rec.Breakdown.Stylesheet
	a.breakdown.Image += rec.Breakdown.Image
	a.breakdown.Other += rec.Breakdown.Other
	// percentiles must cover exactly the records counted above
	a.sizes.RecordValue(int64(math.Ceil(float64(rec.TotalBytes) / 1024)))
	a.mu.Unlock()
}

// Count returns the number of ingested records.
func (a *Aggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Snapshot returns the current statistics, or false if nothing has been
// ingested yet.
func (a *Aggregator) Snapshot() (AggregateStats, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.count == 0 {
		return AggregateStats{}, false
	}

	n := float64(a.count)
	avgMB := float64(a.totalBytes) / n / bytesPerMB

	return AggregateStats{
		Count:              a.count,
		TotalBytes:         a.totalBytes,
		TotalMB:            BytesToMB(a.totalBytes),
		AvgMB:              Round2(avgMB),
		MaxMB:              BytesToMB(a.maxBytes),
		MinMB:              BytesToMB(a.minBytes),
		P50MB:              kbToMB(a.sizes.ValueAtQuantile(50)),
		P90MB:              kbToMB(a.sizes.ValueAtQuantile(90)),
		P99MB:              kbToMB(a.sizes.ValueAtQuantile(99)),
		TotalRequests:      a.totalRequests,
		AvgRequests:        int(math.Round(float64(a.totalRequests) / n)),
		AvgDurationSeconds: int(math.Round(float64(a.totalDuration) / n)),
		Breakdown:          a.breakdown,
		Projections: Projections{
			Per100:   Round2(avgMB * 100),
			Per1000:  Round2(avgMB * 1000),
			Per10000: Round2(avgMB * 10000),
		},
	}, true
}

// Reset discards everything ingested so far.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count = 0
	a.totalBytes = 0
	a.minBytes = 0
	a.maxBytes = 0
	a.totalRequests = 0
	a.totalDuration = 0
	a.breakdown = usage.Breakdown{}
	a.sizes.Reset()
}

// BytesToMB converts bytes to MB rounded to two decimals.
func BytesToMB(b uint64) float64 {
	return Round2(float64(b) / bytesPerMB)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func kbToMB(kb int64) float64 {
	return Round2(float64(kb) / 1024)
}
