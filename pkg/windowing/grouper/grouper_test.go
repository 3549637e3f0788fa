package grouper

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/windowcore/pkg/aggregate"
	"github.com/flowmesh/windowcore/pkg/operator/optest"
	"github.com/flowmesh/windowcore/pkg/windowing"
)

type event struct {
	ts    int64
	key   string
	delta int
}

func newTestGrouper(t *testing.T) *Grouper[event, string, int64, int64] {
	t.Helper()
	g, err := New[event, string, int64, int64](Config[event, string, int64, int64]{
		FrameLength:      10,
		BucketCount:      3,
		ExtractTimestamp: func(e event) int64 { return e.ts },
		ExtractKey:       func(e event) string { return e.key },
		Aggregator:       aggregate.Count[event](),
	})
	require.NoError(t, err)
	return g
}

// Scenario D: frame grouper summing.
func TestGrouper_ScenarioD_Summing(t *testing.T) {
	g := newTestGrouper(t)
	in := optest.NewQueue[event](0)
	out := optest.NewQueue[windowing.Frame[string, int64]](0)

	for _, e := range []event{{5, "k", 1}, {12, "k", 1}, {14, "k", 1}, {27, "k", 1}} {
		in.PushData(e)
	}
	in.PushWatermark(100)

	items := optest.Run[event, windowing.Frame[string, int64]](g, in, out, 10000)

	var frames []windowing.Frame[string, int64]
	for _, item := range items {
		if !item.IsWatermark {
			frames = append(frames, item.Data)
		}
	}
	require.Len(t, frames, 3)
	assert.Equal(t, windowing.Frame[string, int64]{FrameSeq: 0, Key: "k", Value: 1}, frames[0])
	assert.Equal(t, windowing.Frame[string, int64]{FrameSeq: 10, Key: "k", Value: 2}, frames[1])
	assert.Equal(t, windowing.Frame[string, int64]{FrameSeq: 20, Key: "k", Value: 1}, frames[2])
}

// Scenario F: late event drop.
func TestGrouper_ScenarioF_LateEventDropped(t *testing.T) {
	g := newTestGrouper(t)
	in := optest.NewQueue[event](0)
	out := optest.NewQueue[windowing.Frame[string, int64]](0)

	in.PushData(event{ts: 100, key: "k", delta: 1})
	in.PushData(event{ts: 50, key: "k", delta: 1}) // frame 50 <= currentFrameSeq(100) - bucketCount(3)
	in.PushWatermark(200)

	items := optest.Run[event, windowing.Frame[string, int64]](g, in, out, 10000)

	var total int64
	for _, item := range items {
		if !item.IsWatermark {
			total += item.Data.Value
		}
	}
	// Only the on-time event at t=100 (frame 100) contributes; the event
	// at t=50 lands in frame 50, more than bucketCount frames behind
	// frame 100 and is dropped.
	assert.Equal(t, int64(1), total)
}

// Testable property 2: sum conservation for on-time events.
func TestGrouper_Property_SumConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g, err := New[event, string, int64, int64](Config[event, string, int64, int64]{
		FrameLength:      10,
		BucketCount:      5,
		ExtractTimestamp: func(e event) int64 { return e.ts },
		ExtractKey:       func(e event) string { return e.key },
		Aggregator:       aggregate.Sum[event, int64](func(e event) int64 { return int64(e.delta) }),
	})
	require.NoError(t, err)

	in := optest.NewQueue[event](0)
	out := optest.NewQueue[windowing.Frame[string, int64]](0)

	var expected int64
	ts := int64(0)
	for i := 0; i < 200; i++ {
		ts += int64(rng.Intn(8)) // monotonic non-decreasing, so nothing is late
		delta := rng.Intn(5) + 1
		in.PushData(event{ts: ts, key: "k", delta: delta})
		expected += int64(delta)
	}
	in.PushWatermark(ts + 1000)

	items := optest.Run[event, windowing.Frame[string, int64]](g, in, out, 100000)

	var got int64
	for _, item := range items {
		if !item.IsWatermark {
			got += item.Data.Value
		}
	}
	assert.Equal(t, expected, got)
}

func TestGrouper_BoundedStateAfterComplete(t *testing.T) {
	g := newTestGrouper(t)
	in := optest.NewQueue[event](0)
	out := optest.NewQueue[windowing.Frame[string, int64]](0)

	in.PushData(event{ts: 5, key: "k", delta: 1})
	in.PushData(event{ts: 25, key: "k", delta: 1})
	in.PushWatermark(100)

	optest.Run[event, windowing.Frame[string, int64]](g, in, out, 10000)

	_, ok := g.OldestOpenFrame()
	assert.False(t, ok)
}

func TestGrouper_ConstructionValidation(t *testing.T) {
	_, err := New[event, string, int64, int64](Config[event, string, int64, int64]{
		FrameLength: 0,
		BucketCount: 0,
	})
	assert.Error(t, err)
}

func TestGrouper_ConstructionValidation_MissingExtractor(t *testing.T) {
	_, err := New[event, string, int64, int64](Config[event, string, int64, int64]{
		FrameLength: 10,
		BucketCount: 3,
		ExtractKey:  func(e event) string { return e.key },
		Aggregator:  aggregate.Count[event](),
	})
	require.ErrorIs(t, err, windowing.ErrMissingExtractor)
}

// TestGrouper_WatermarkNotDuplicatedUnderBackpressure guards against a
// resumed ProcessWatermark call re-enqueuing the watermark item after a
// prior call already queued it but couldn't fully flush.
func TestGrouper_WatermarkNotDuplicatedUnderBackpressure(t *testing.T) {
	g := newTestGrouper(t)
	in := optest.NewQueue[event](0)
	out := optest.NewQueue[windowing.Frame[string, int64]](1) // capacity 1 forces retries

	for _, e := range []event{{5, "k", 1}, {12, "k", 1}, {14, "k", 1}, {27, "k", 1}} {
		in.PushData(e)
	}
	in.PushWatermark(100)

	items := optest.Run[event, windowing.Frame[string, int64]](g, in, out, 10000)

	var watermarks int
	for _, item := range items {
		if item.IsWatermark {
			watermarks++
		}
	}
	assert.Equal(t, 1, watermarks)
}
