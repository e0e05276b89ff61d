package stats

import (
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// maxSessionKB is the largest per-session size tracked by the histogram (10 GiB).
const maxSessionKB = 10 * 1024 * 1024

// SafeHistogram is a thread-safe wrapper around hdrhistogram
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

// NewSafeHistogram tracks per-session sizes in kilobytes, 1KB to 10GiB, 3 significant figures.
func NewSafeHistogram() *SafeHistogram {
	return &SafeHistogram{hist: hdrhistogram.New(1, maxSessionKB, 3)}
}

// RecordValue records a value, clamped to the tracked range.
func (h *SafeHistogram) RecordValue(v int64) error {
	if v < 1 {
		v = 1
	}
	if v > maxSessionKB {
		v = maxSessionKB
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.RecordValue(v)
}

func (h *SafeHistogram) ValueAtQuantile(q float64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.ValueAtQuantile(q)
}

func (h *SafeHistogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}

func (h *SafeHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hist.Reset()
}
