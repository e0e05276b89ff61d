package usage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestRecorder_AccumulatesBreakdownAndTotal(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	r := newRecorderAt(clock.now)

	events := []TransferEvent{
		{Kind: KindRequest, Category: Document, URL: "https://example.com/"},
		{Kind: KindResponse, Category: Document, URL: "https://example.com/", Length: 2048},
		{Kind: KindRequest, Category: Script, URL: "https://example.com/app.js"},
		{Kind: KindResponse, Category: Script, URL: "https://example.com/app.js", Length: 4096},
		{Kind: KindRequest, Category: Font, URL: "https://example.com/f.woff2"},
		{Kind: KindResponse, Category: Font, URL: "https://example.com/f.woff2", Length: 100},
	}
	for _, ev := range events {
		require.NoError(t, r.Observe(ev))
	}

	clock.t = clock.t.Add(2600 * time.Millisecond)
	rec := r.Finalize()

	assert.Equal(t, uint64(2048), rec.Breakdown.Document)
	assert.Equal(t, uint64(4096), rec.Breakdown.Script)
	assert.Equal(t, uint64(100), rec.Breakdown.Other)
	assert.Equal(t, uint64(6244), rec.TotalBytes)
	assert.Equal(t, uint32(3), rec.RequestCount)
	assert.Equal(t, uint32(3), rec.ResponseCount)
	assert.Equal(t, uint32(3), rec.DurationSeconds)
	assert.NoError(t, rec.Validate())
}

func TestRecorder_UnknownLengthUsesEstimate(t *testing.T) {
	r := NewRecorder()

	require.NoError(t, r.Observe(TransferEvent{
		Kind: KindResponse, Category: Image, URL: "https://example.com/logo.png", Length: UnknownLength,
	}))

	rec := r.Finalize()
	assert.Equal(t, uint64(EstimateImage), rec.Breakdown.Image)
	assert.Equal(t, uint64(EstimateImage), rec.TotalBytes)
}

func TestRecorder_MeasurementFailureFallsBack(t *testing.T) {
	r := NewRecorder()
	bodyErr := errors.New("connection reset")

	err := r.Observe(TransferEvent{
		Kind: KindResponse, Category: Script, URL: "https://example.com/bundle", Length: 12, Err: bodyErr,
	})

	var merr *MeasurementError
	require.ErrorAs(t, err, &merr)
	assert.ErrorIs(t, err, bodyErr)
	assert.Equal(t, EstimateScript, merr.Estimated)

	rec := r.Finalize()
	assert.Equal(t, uint32(1), rec.ResponseCount)
	assert.Equal(t, uint64(EstimateScript), rec.Breakdown.Script)
	assert.NoError(t, rec.Validate())
}

func TestRecorder_MalformedEventsDoNotCorruptTotals(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Observe(TransferEvent{Kind: KindResponse, Category: Document, URL: "/", Length: 500}))

	err := r.Observe(TransferEvent{Kind: EventKind(42), Category: Document, URL: "/", Length: 1 << 40})
	var merr *MeasurementError
	require.ErrorAs(t, err, &merr)
	assert.Zero(t, merr.Estimated)

	err = r.Observe(TransferEvent{Kind: KindResponse, Category: Stylesheet, URL: "/s", Length: -7})
	require.ErrorAs(t, err, &merr)

	rec := r.Finalize()
	assert.Equal(t, uint64(500), rec.Breakdown.Document)
	assert.Equal(t, uint64(EstimateStylesheet), rec.Breakdown.Stylesheet)
	assert.Equal(t, uint32(2), rec.ResponseCount)
	assert.Zero(t, rec.RequestCount)
	assert.NoError(t, rec.Validate())
}

func TestRecorder_EventTrailIsBounded(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < maxTrail+10; i++ {
		_ = r.Observe(TransferEvent{Kind: KindRequest, Category: Other, URL: "/x"})
	}

	assert.Len(t, r.Events(), maxTrail)
	assert.Equal(t, uint32(maxTrail+10), r.Finalize().RequestCount)
}

func TestRecord_ValidateDetectsMismatch(t *testing.T) {
	rec := Record{TotalBytes: 10, Breakdown: Breakdown{Image: 4}}
	assert.Error(t, rec.Validate())
}
