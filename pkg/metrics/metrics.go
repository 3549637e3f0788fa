// Package metrics instruments the windowing operators. It is deliberately
// small: the core never starts an HTTP listener or scrape endpoint (that is
// the host's job), it only exposes Prometheus collectors that a host
// registers on its own registry, and a Recorder that operators call into.
package metrics

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"
)

const (
	LabelOperator = "operator" // "grouper", "sliding", "session"
	LabelInstance = "instance" // per-operator-instance id, see operator.NewInstanceID
)

var (
	// LateEventsDropped counts events whose frame/session deadline had
	// already been evicted by the time they arrived.
	LateEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "windowcore",
		Name:      "late_events_dropped_total",
		Help:      "Number of input events dropped because their window had already been evicted.",
	}, []string{LabelOperator, LabelInstance})

	// WindowsEmitted counts finalized window/frame/session results sent
	// downstream.
	WindowsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "windowcore",
		Name:      "windows_emitted_total",
		Help:      "Number of finalized window results emitted downstream.",
	}, []string{LabelOperator, LabelInstance})

	// BackpressureRetries counts offers rejected by a full outbox.
	BackpressureRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "windowcore",
		Name:      "backpressure_retries_total",
		Help:      "Number of times an operator had to retry an emission because the outbox was full.",
	}, []string{LabelOperator, LabelInstance})

	// OpenState tracks the live size of an operator's in-memory state
	// (distinct keys held in any open frame/window/session).
	OpenState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "windowcore",
		Name:      "open_state_size",
		Help:      "Number of live entries (keys x open frames/sessions) currently held by the operator.",
	}, []string{LabelOperator, LabelInstance})
)

// Recorder is the per-operator-instance handle handed to the windowing
// operators. It exists so operator code never touches the global
// Prometheus vectors directly (making it trivial to swap in a no-op
// recorder for tests) and so a bounded sample of recently dropped late
// events is available for diagnostics without unbounded memory growth.
type Recorder struct {
	operator string
	instance string

	openState atomic.Int64

	lateSamples *lru.Cache[int64, struct{}]
}

// NewRecorder builds a Recorder bound to one operator kind and instance id.
// sampleCap bounds the number of distinct late-event timestamps retained
// for RecentLateEvents; 0 disables sampling entirely.
func NewRecorder(operatorKind, instanceID string, sampleCap int) *Recorder {
	r := &Recorder{operator: operatorKind, instance: instanceID}
	if sampleCap > 0 {
		cache, err := lru.New[int64, struct{}](sampleCap)
		if err == nil {
			r.lateSamples = cache
		}
	}
	return r
}

// NoOp returns a Recorder labelled "noop" for both operator and instance
// and with late-event sampling disabled. Its counters and gauge still
// update the global Prometheus vectors, under those "noop" labels.
func NoOp() *Recorder {
	return &Recorder{operator: "noop", instance: "noop"}
}

func (r *Recorder) LateEventDropped(ts int64) {
	if r == nil {
		return
	}
	LateEventsDropped.WithLabelValues(r.operator, r.instance).Inc()
	if r.lateSamples != nil {
		r.lateSamples.Add(ts, struct{}{})
	}
}

func (r *Recorder) WindowEmitted() {
	if r == nil {
		return
	}
	WindowsEmitted.WithLabelValues(r.operator, r.instance).Inc()
}

func (r *Recorder) BackpressureRetried() {
	if r == nil {
		return
	}
	BackpressureRetries.WithLabelValues(r.operator, r.instance).Inc()
}

// SetOpenState updates the live-state-size gauge and the Recorder's own
// copy of the value. Only ever called from the operator's own single
// processing goroutine; the copy is an atomic rather than a plain int
// because OpenState may read it from other goroutines. The Prometheus
// gauge keeps its own value for scrapes.
func (r *Recorder) SetOpenState(n int) {
	if r == nil {
		return
	}
	r.openState.Store(int64(n))
	OpenState.WithLabelValues(r.operator, r.instance).Set(float64(n))
}

// OpenState returns the most recently recorded live-state size. Unlike the
// Prometheus gauge, this value is reachable from process-local code that
// has no scrape endpoint to query, such as a host's own health check or
// admission-control decision (e.g. refusing new keys once state size
// crosses a threshold) without round-tripping through a metrics registry.
func (r *Recorder) OpenState() int64 {
	if r == nil {
		return 0
	}
	return r.openState.Load()
}

// RecentLateEvents returns the timestamps of the most recently dropped
// late events still held in the bounded sample ring. Diagnostics only;
// never consulted by operator logic.
func (r *Recorder) RecentLateEvents() []int64 {
	if r == nil || r.lateSamples == nil {
		return nil
	}
	keys := r.lateSamples.Keys()
	out := make([]int64, len(keys))
	copy(out, keys)
	return out
}
