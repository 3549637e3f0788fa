// Package sliding implements the sliding window combiner: it assembles the
// per-frame accumulators produced by the frame grouper into overlapping
// windows of width frameLength*framesPerWindow, using constant-time
// deduct-based maintenance when the aggregator supports it and falling
// back to a full recompute otherwise. See spec section 4.3.
package sliding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/flowmesh/windowcore/pkg/aggregate"
	"github.com/flowmesh/windowcore/pkg/metrics"
	"github.com/flowmesh/windowcore/pkg/operator"
	"github.com/flowmesh/windowcore/pkg/shared/logging"
	"github.com/flowmesh/windowcore/pkg/windowing"
)

// Ops is the subset of the Aggregator contract the combiner needs: it
// never calls Accumulate (that already happened in the frame grouper), it
// only combines, optionally deducts, and finishes already-partial
// accumulators.
type Ops[A, R any] struct {
	Create  func() A
	Combine func(a, b A) A
	Deduct  func(a, b A) A
	Finish  func(acc A) R
	Equal   func(a, b A) bool
}

// FromAggregator projects the fields of a full Aggregator that the
// combiner needs, letting a caller share one Aggregator value between the
// grouper and the combiner.
func FromAggregator[T, A, R any](agg aggregate.Aggregator[T, A, R]) Ops[A, R] {
	return Ops[A, R]{
		Create:  agg.Create,
		Combine: agg.Combine,
		Deduct:  agg.Deduct,
		Finish:  agg.Finish,
		Equal:   agg.Equal,
	}
}

// Config configures a Sliding combiner.
type Config[K comparable, A, R any] struct {
	// FrameLength must match the frame grouper that feeds this combiner.
	FrameLength int64
	// FramesPerWindow is the number of frames spanned by one window.
	FramesPerWindow int64
	Ops             Ops[A, R]
	Logger          *zap.SugaredLogger
	Recorder        *metrics.Recorder
}

func (c Config[K, A, R]) validate() error {
	var errs []error
	if err := windowing.ValidatePositive("frameLength", c.FrameLength); err != nil {
		errs = append(errs, err)
	}
	if err := windowing.ValidateAtLeastOne("framesPerWindow", c.FramesPerWindow); err != nil {
		errs = append(errs, err)
	}
	if c.Ops.Create == nil || c.Ops.Combine == nil || c.Ops.Finish == nil {
		errs = append(errs, fmt.Errorf("aggregator is required (Create/Combine/Finish)"))
	}
	if c.Ops.Deduct != nil && c.Ops.Equal == nil {
		errs = append(errs, fmt.Errorf("aggregator supplies Deduct but not Equal; Equal is required for deduct mode"))
	}
	return windowing.Combine(errs...)
}

// Sliding is the stateful sliding window combiner operator.
type Sliding[K comparable, A, R any] struct {
	cfg Config[K, A, R]

	seqToKeyToAcc *windowing.OrderedSeqMap[map[K]A]
	slidingWindow map[K]A // only used in deduct mode
	deductCapable bool

	hasNext            bool
	nextFrameSeqToEmit int64
	completed          bool
	// activeWatermark, when non-nil, marks that computeEmissions already
	// ran for this watermark value and a resumed call only needs to
	// retry flushPending.
	activeWatermark *int64

	outbox  operator.Outbox[windowing.Frame[K, R]]
	pending []operator.Item[windowing.Frame[K, R]]

	logger *zap.SugaredLogger
}

// New constructs a Sliding combiner, validating cfg eagerly.
func New[K comparable, A, R any](cfg Config[K, A, R]) (*Sliding[K, A, R], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	instanceID := operator.NewInstanceID()
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NewRecorder("sliding", instanceID, 64)
	}
	deductCapable := cfg.Ops.Deduct != nil && cfg.Ops.Equal != nil
	s := &Sliding[K, A, R]{
		cfg:           cfg,
		seqToKeyToAcc: windowing.NewOrderedSeqMap[map[K]A](),
		deductCapable: deductCapable,
		logger:        logging.Tag(cfg.Logger, "sliding", instanceID),
	}
	if deductCapable {
		s.slidingWindow = make(map[K]A)
	}
	return s, nil
}

func (s *Sliding[K, A, R]) Init(outbox operator.Outbox[windowing.Frame[K, R]]) {
	s.outbox = outbox
}

func (s *Sliding[K, A, R]) flushPending() bool {
	for len(s.pending) > 0 {
		if !s.outbox.Offer(s.pending[0]) {
			s.cfg.Recorder.BackpressureRetried()
			return false
		}
		s.pending = s.pending[1:]
	}
	return true
}

// ProcessItem merges incoming frame tuples into seqToKeyToAcc, stopping
// (without consuming) when the inbox head is a watermark.
func (s *Sliding[K, A, R]) ProcessItem(ordinal int, inbox operator.Inbox[windowing.Frame[K, A]]) bool {
	if !s.flushPending() {
		return false
	}
	for {
		item, ok := inbox.Peek()
		if !ok {
			return true
		}
		if item.IsWatermark {
			return true
		}
		inbox.Poll()
		s.ingest(item.Data)
	}
}

func (s *Sliding[K, A, R]) ingest(frame windowing.Frame[K, A]) {
	keyToAcc := s.seqToKeyToAcc.GetOrCreate(frame.FrameSeq, func() map[K]A { return make(map[K]A) })
	if cur, ok := keyToAcc[frame.Key]; ok {
		keyToAcc[frame.Key] = s.cfg.Ops.Combine(cur, frame.Value)
	} else {
		keyToAcc[frame.Key] = frame.Value
	}
	s.cfg.Recorder.SetOpenState(s.openStateSize())
}

func (s *Sliding[K, A, R]) openStateSize() int {
	n := len(s.slidingWindow)
	// seqToKeyToAcc entries are counted separately from the len call
	// site since Len() only reports frame count, not key count; walk is
	// bounded by framesPerWindow in steady state.
	first, ok := s.seqToKeyToAcc.FirstSeq()
	if !ok {
		return n
	}
	last, _ := s.seqToKeyToAcc.LastSeq()
	for _, seq := range s.seqToKeyToAcc.SeqsInRange(first-1, last) {
		keyToAcc, _ := s.seqToKeyToAcc.Get(seq)
		n += len(keyToAcc)
	}
	return n
}

// ProcessWatermark emits every window ending in [nextFrameSeqToEmit,
// higherFrameBoundary(wm)) and forwards wm downstream last, per spec
// section 4.3.
func (s *Sliding[K, A, R]) ProcessWatermark(wm int64) bool {
	if !s.flushPending() {
		return false
	}
	if !s.watermarkInFlight(wm) {
		s.computeEmissions(wm)
	}
	ok := s.flushPending()
	if ok {
		s.activeWatermark = nil
	}
	return ok
}

func (s *Sliding[K, A, R]) watermarkInFlight(wm int64) bool {
	return s.activeWatermark != nil && *s.activeWatermark == wm
}

func (s *Sliding[K, A, R]) computeEmissions(wm int64) {
	if !s.hasNext {
		first, ok := s.seqToKeyToAcc.FirstSeq()
		if ok && first < wm {
			s.nextFrameSeqToEmit = first
		} else {
			s.nextFrameSeqToEmit = wm
		}
		s.hasNext = true
	}
	windowLength := windowing.WindowLength(s.cfg.FrameLength, s.cfg.FramesPerWindow)
	endExclusive := windowing.HigherFrameBoundary(wm, s.cfg.FrameLength)
	for e := s.nextFrameSeqToEmit; e < endExclusive; e += s.cfg.FrameLength {
		s.emitWindow(e, windowLength)
	}
	s.nextFrameSeqToEmit = endExclusive
	wmCopy := wm
	s.activeWatermark = &wmCopy
	s.pending = append(s.pending, operator.WatermarkItem[windowing.Frame[K, R]](wm))
}

func (s *Sliding[K, A, R]) emitWindow(e, windowLength int64) {
	leaving, hadLeaving := s.seqToKeyToAcc.Remove(e - windowLength)
	entering, _ := s.seqToKeyToAcc.Get(e)

	if s.deductCapable {
		for k, v := range entering {
			cur, ok := s.slidingWindow[k]
			if !ok {
				cur = s.cfg.Ops.Create()
			}
			s.slidingWindow[k] = s.cfg.Ops.Combine(cur, v)
		}
		if hadLeaving {
			empty := s.cfg.Ops.Create()
			for k, v := range leaving {
				cur, ok := s.slidingWindow[k]
				if !ok {
					continue
				}
				result := s.cfg.Ops.Deduct(cur, v)
				if s.cfg.Ops.Equal(result, empty) {
					delete(s.slidingWindow, k)
				} else {
					s.slidingWindow[k] = result
				}
			}
		}
		for k, acc := range s.slidingWindow {
			s.emit(e, k, acc)
		}
		return
	}

	fresh := s.recompute(e, windowLength)
	for k, acc := range fresh {
		s.emit(e, k, acc)
	}
}

func (s *Sliding[K, A, R]) emit(e int64, k K, acc A) {
	s.pending = append(s.pending, operator.DataItem(windowing.Frame[K, R]{FrameSeq: e, Key: k, Value: s.cfg.Ops.Finish(acc)}))
	s.cfg.Recorder.WindowEmitted()
}

// recompute rebuilds a fresh window from scratch by combining every stored
// frame entry with sequence in (e-windowLength, e], used when the
// aggregator has no deduct.
func (s *Sliding[K, A, R]) recompute(e, windowLength int64) map[K]A {
	result := make(map[K]A)
	for _, seq := range s.seqToKeyToAcc.SeqsInRange(e-windowLength, e) {
		keyToAcc, _ := s.seqToKeyToAcc.Get(seq)
		for k, v := range keyToAcc {
			cur, ok := result[k]
			if !ok {
				cur = s.cfg.Ops.Create()
			}
			result[k] = s.cfg.Ops.Combine(cur, v)
		}
	}
	return result
}

// Complete drains every remaining window as if an infinite watermark had
// arrived, without emitting a trailing watermark item (end of stream is a
// distinct signal from the operator contract, not a watermark value).
func (s *Sliding[K, A, R]) Complete() bool {
	if !s.flushPending() {
		return false
	}
	if !s.completed {
		s.drainAll()
		s.completed = true
	}
	return s.flushPending()
}

func (s *Sliding[K, A, R]) drainAll() {
	last, ok := s.seqToKeyToAcc.LastSeq()
	if !ok {
		return
	}
	windowLength := windowing.WindowLength(s.cfg.FrameLength, s.cfg.FramesPerWindow)
	if !s.hasNext {
		first, _ := s.seqToKeyToAcc.FirstSeq()
		s.nextFrameSeqToEmit = first
		s.hasNext = true
	}
	end := windowing.HigherFrameBoundary(last, s.cfg.FrameLength)
	for e := s.nextFrameSeqToEmit; e < end; e += s.cfg.FrameLength {
		s.emitWindow(e, windowLength)
	}
	s.nextFrameSeqToEmit = end
}

// OldestPendingSeq returns the smallest frame sequence still held in
// state, or (0, false) if empty. Diagnostics only.
func (s *Sliding[K, A, R]) OldestPendingSeq() (int64, bool) {
	return s.seqToKeyToAcc.FirstSeq()
}

var _ operator.Operator[windowing.Frame[int, int], windowing.Frame[int, int]] = (*Sliding[int, int, int])(nil)
