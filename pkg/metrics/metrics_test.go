package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.LateEventDropped(5)
		r.WindowEmitted()
		r.BackpressureRetried()
		r.SetOpenState(3)
		_ = r.RecentLateEvents()
	})
}

func TestRecorder_RecentLateEvents(t *testing.T) {
	r := NewRecorder("grouper", "instance-1", 2)
	r.LateEventDropped(10)
	r.LateEventDropped(20)
	r.LateEventDropped(30) // evicts 10, capacity is 2

	got := r.RecentLateEvents()
	assert.Len(t, got, 2)
	assert.NotContains(t, got, int64(10))
}

func TestRecorder_SampleCapZeroDisablesSampling(t *testing.T) {
	r := NewRecorder("session", "instance-2", 0)
	r.LateEventDropped(1)
	assert.Empty(t, r.RecentLateEvents())
}

func TestNoOp_NeverPanics(t *testing.T) {
	r := NoOp()
	assert.NotPanics(t, func() {
		r.LateEventDropped(1)
		r.WindowEmitted()
		r.BackpressureRetried()
		r.SetOpenState(1)
	})
}

func TestRecorder_OpenState_ReflectsLastSet(t *testing.T) {
	r := NewRecorder("sliding", "instance-3", 0)
	assert.Equal(t, int64(0), r.OpenState())

	r.SetOpenState(7)
	assert.Equal(t, int64(7), r.OpenState())

	r.SetOpenState(2)
	assert.Equal(t, int64(2), r.OpenState())
}

func TestRecorder_OpenState_NilSafe(t *testing.T) {
	var r *Recorder
	assert.Equal(t, int64(0), r.OpenState())
}
