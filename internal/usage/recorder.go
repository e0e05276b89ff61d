package usage

import (
	"math"
	"time"
)

// EventKind distinguishes requests from responses.
type EventKind int

const (
	KindRequest EventKind = iota + 1
	KindResponse
)

// UnknownLength marks a transfer whose byte length was not reported.
const UnknownLength int64 = -1

// maxTrail bounds the number of events kept for debugging.
const maxTrail = 256

// TransferEvent is one observed request or response during a session.
type TransferEvent struct {
	Kind     EventKind
	Category Category
	URL      string
	// Length is the measured size in bytes, or UnknownLength.
	Length int64
	// Err is set when measuring the transfer failed; the size is then estimated.
	Err error
}

// Recorder accumulates the usage of a single session. It is owned by one
// attempt and is not safe for concurrent use.
type Recorder struct {
	start     time.Time
	now       func() time.Time
	requests  uint32
	responses uint32
	breakdown Breakdown
	trail     []TransferEvent
}

// NewRecorder starts recording at the current time.
func NewRecorder() *Recorder {
	return newRecorderAt(time.Now)
}

func newRecorderAt(now func() time.Time) *Recorder {
	return &Recorder{start: now(), now: now}
}

// Observe accounts one transfer event. Requests and responses are counted
// regardless of whether their size can be determined. A non-nil error is
// always a *MeasurementError and never invalidates the running totals.
func (r *Recorder) Observe(ev TransferEvent) error {
	r.remember(ev)

	switch ev.Kind {
	case KindRequest:
		r.requests = incr(r.requests)
		return nil
	case KindResponse:
		r.responses = incr(r.responses)
	default:
		return &MeasurementError{URL: ev.URL, Category: ev.Category, Reason: "unknown event kind"}
	}

	n := ev.Length
	var merr *MeasurementError
	switch {
	case ev.Err != nil:
		n, _ = Estimate(ev.Category, ev.URL)
		merr = &MeasurementError{URL: ev.URL, Category: ev.Category, Reason: "size unavailable", Err: ev.Err}
	case ev.Length == UnknownLength:
		n, _ = Estimate(ev.Category, ev.URL)
	case ev.Length < 0:
		n, _ = Estimate(ev.Category, ev.URL)
		merr = &MeasurementError{URL: ev.URL, Category: ev.Category, Reason: "negative length"}
	}

	r.breakdown.Add(ev.Category, uint64(n))
	if merr != nil {
		merr.Estimated = n
		return merr
	}
	return nil
}

func (r *Recorder) remember(ev TransferEvent) {
	if len(r.trail) == maxTrail {
		copy(r.trail, r.trail[1:])
		r.trail = r.trail[:maxTrail-1]
	}
	r.trail = append(r.trail, ev)
}

// Events returns the most recent observed events, oldest first.
func (r *Recorder) Events() []TransferEvent {
	out := make([]TransferEvent, len(r.trail))
	copy(out, r.trail)
	return out
}

// Finalize produces the session's Record. TotalBytes is always the sum of
// the breakdown.
func (r *Recorder) Finalize() Record {
	elapsed := r.now().Sub(r.start).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return Record{
		TotalBytes:      r.breakdown.Sum(),
		RequestCount:    r.requests,
		ResponseCount:   r.responses,
		Breakdown:       r.breakdown,
		DurationSeconds: uint32(math.Min(math.Round(elapsed), math.MaxUint32)),
	}
}

func incr(v uint32) uint32 {
	if v == math.MaxUint32 {
		return v
	}
	return v + 1
}
