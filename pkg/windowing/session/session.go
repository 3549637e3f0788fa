// Package session implements the session window operator: it groups
// per-key events into variable-length sessions delimited by an idle gap
// (maxGap) and emits one aggregated result per session once a watermark
// passes its expiry deadline. See spec section 4.4.
package session

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/flowmesh/windowcore/pkg/aggregate"
	"github.com/flowmesh/windowcore/pkg/metrics"
	"github.com/flowmesh/windowcore/pkg/operator"
	"github.com/flowmesh/windowcore/pkg/shared/logging"
	"github.com/flowmesh/windowcore/pkg/windowing"
)

// Result is one finished session: Start is the timestamp of its first
// event, End is its last event's timestamp extended by maxGap (the
// boundary beyond which no later event could still belong to it).
type Result[K comparable, R any] struct {
	Key   K
	Start int64
	End   int64
	Value R
}

// Config configures a Session operator.
type Config[T any, K comparable, A, R any] struct {
	// MaxGap is the largest idle gap, in timestamp units, tolerated
	// within one session.
	MaxGap           int64
	ExtractTimestamp func(T) int64
	ExtractKey       func(T) K
	Aggregator       aggregate.Aggregator[T, A, R]
	Logger           *zap.SugaredLogger
	Recorder         *metrics.Recorder
}

func (c Config[T, K, A, R]) validate() error {
	var errs []error
	if err := windowing.ValidateNonNegative("maxGap", c.MaxGap); err != nil {
		errs = append(errs, err)
	}
	if c.ExtractTimestamp == nil {
		errs = append(errs, windowing.ErrMissingExtractor)
	}
	if c.Aggregator.Create == nil || c.Aggregator.Accumulate == nil || c.Aggregator.Combine == nil {
		errs = append(errs, fmt.Errorf("aggregator is required (Create/Accumulate/Combine)"))
	}
	return windowing.Combine(errs...)
}

// Session is the stateful session window operator.
type Session[T any, K comparable, A, R any] struct {
	cfg Config[T, K, A, R]

	keyToIvToAcc   map[K]*windowing.OrderedIntervalMap[A]
	deadlineToKeys *windowing.OrderedSeqMap[map[K]struct{}]

	activeWatermark *int64
	completed       bool

	outbox  operator.Outbox[Result[K, R]]
	pending []operator.Item[Result[K, R]]

	logger *zap.SugaredLogger
}

// New constructs a Session operator, validating cfg eagerly.
func New[T any, K comparable, A, R any](cfg Config[T, K, A, R]) (*Session[T, K, A, R], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	instanceID := operator.NewInstanceID()
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NewRecorder("session", instanceID, 64)
	}
	return &Session[T, K, A, R]{
		cfg:            cfg,
		keyToIvToAcc:   make(map[K]*windowing.OrderedIntervalMap[A]),
		deadlineToKeys: windowing.NewOrderedSeqMap[map[K]struct{}](),
		logger:         logging.Tag(cfg.Logger, "session", instanceID),
	}, nil
}

func (s *Session[T, K, A, R]) Init(outbox operator.Outbox[Result[K, R]]) {
	s.outbox = outbox
}

func (s *Session[T, K, A, R]) flushPending() bool {
	for len(s.pending) > 0 {
		if !s.outbox.Offer(s.pending[0]) {
			s.cfg.Recorder.BackpressureRetried()
			return false
		}
		s.pending = s.pending[1:]
	}
	return true
}

// ProcessItem drains data items from inbox, stopping (without consuming)
// when the head is a watermark.
func (s *Session[T, K, A, R]) ProcessItem(ordinal int, inbox operator.Inbox[T]) bool {
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

func (s *Session[T, K, A, R]) ivMapFor(key K) *windowing.OrderedIntervalMap[A] {
	m, ok := s.keyToIvToAcc[key]
	if !ok {
		m = windowing.NewOrderedIntervalMap[A]()
		s.keyToIvToAcc[key] = m
	}
	return m
}

func (s *Session[T, K, A, R]) indexDeadline(key K, iv windowing.Interval) {
	deadline := iv.End + s.cfg.MaxGap
	set := s.deadlineToKeys.GetOrCreate(deadline, func() map[K]struct{} { return make(map[K]struct{}) })
	set[key] = struct{}{}
}

func (s *Session[T, K, A, R]) removeDeadline(key K, iv windowing.Interval) {
	deadline := iv.End + s.cfg.MaxGap
	set, ok := s.deadlineToKeys.Get(deadline)
	if !ok {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		s.deadlineToKeys.Remove(deadline)
	}
}

// ingest folds one event into the per-key interval map, per spec section
// 4.4's four cases.
func (s *Session[T, K, A, R]) ingest(event T) {
	t := s.cfg.ExtractTimestamp(event)
	var key K
	if s.cfg.ExtractKey != nil {
		key = s.cfg.ExtractKey(event)
	}
	ivMap := s.ivMapFor(key)
	leftIdx, hasLeft, rightIdx, hasRight := ivMap.Neighbors(t, s.cfg.MaxGap)

	switch {
	case !hasLeft && !hasRight:
		acc := s.cfg.Aggregator.Accumulate(s.cfg.Aggregator.Create(), event)
		iv := windowing.Interval{Start: t, End: t}
		ivMap.Insert(iv, acc)
		s.indexDeadline(key, iv)

	case hasLeft && !hasRight:
		s.extendAt(ivMap, key, leftIdx, t, event)

	case hasRight && !hasLeft:
		s.extendAt(ivMap, key, rightIdx, t, event)

	default:
		leftIv, leftAcc := ivMap.At(leftIdx)
		rightIv, rightAcc := ivMap.At(rightIdx)
		s.removeDeadline(key, rightIv)
		ivMap.RemoveAt(rightIdx)
		s.removeDeadline(key, leftIv)

		merged := windowing.Interval{Start: min(leftIv.Start, rightIv.Start), End: max(leftIv.End, rightIv.End)}
		acc := s.cfg.Aggregator.Combine(leftAcc, rightAcc)
		acc = s.cfg.Aggregator.Accumulate(acc, event)
		ivMap.Update(leftIdx, merged, acc)
		s.indexDeadline(key, merged)
	}

	s.cfg.Recorder.SetOpenState(s.openStateSize())
}

func (s *Session[T, K, A, R]) extendAt(ivMap *windowing.OrderedIntervalMap[A], key K, idx int, t int64, event T) {
	iv, acc := ivMap.At(idx)
	extended := windowing.Interval{Start: min(iv.Start, t), End: max(iv.End, t)}
	acc = s.cfg.Aggregator.Accumulate(acc, event)
	if extended != iv {
		s.removeDeadline(key, iv)
		s.indexDeadline(key, extended)
	}
	ivMap.Update(idx, extended, acc)
}

func (s *Session[T, K, A, R]) openStateSize() int {
	n := 0
	for _, m := range s.keyToIvToAcc {
		n += m.Len()
	}
	return n
}

func (s *Session[T, K, A, R]) watermarkInFlight(wm int64) bool {
	return s.activeWatermark != nil && *s.activeWatermark == wm
}

// ProcessWatermark expires every session whose deadline has passed and
// forwards wm downstream last.
func (s *Session[T, K, A, R]) ProcessWatermark(wm int64) bool {
	if !s.flushPending() {
		return false
	}
	if !s.watermarkInFlight(wm) {
		s.expireThrough(wm)
		s.pending = append(s.pending, operator.WatermarkItem[Result[K, R]](wm))
		wmCopy := wm
		s.activeWatermark = &wmCopy
	}
	ok := s.flushPending()
	if ok {
		s.activeWatermark = nil
	}
	return ok
}

// expireThrough walks deadlineToKeys in ascending order emitting every
// session whose deadline is <= threshold, per spec section 4.4. RemoveBelow
// takes an exclusive bound, so threshold+1 is passed to make the cutoff
// inclusive of deadlines equal to threshold. For threshold math.MaxInt64,
// where threshold+1 would wrap around, the bound is math.MaxInt64.
func (s *Session[T, K, A, R]) expireThrough(threshold int64) {
	bound := threshold + 1
	if threshold == math.MaxInt64 {
		bound = math.MaxInt64
	}
	for _, due := range s.deadlineToKeys.RemoveBelow(bound) {
		for key := range due.Value {
			ivMap := s.keyToIvToAcc[key]
			iv, acc := ivMap.At(0)
			ivMap.RemoveAt(0)
			s.pending = append(s.pending, operator.DataItem(Result[K, R]{
				Key:   key,
				Start: iv.Start,
				End:   iv.End + s.cfg.MaxGap,
				Value: s.cfg.Aggregator.Finish(acc),
			}))
			s.cfg.Recorder.WindowEmitted()
			if ivMap.Len() == 0 {
				delete(s.keyToIvToAcc, key)
			}
		}
	}
}

// Complete emits every remaining open session as if an infinite watermark
// had arrived.
func (s *Session[T, K, A, R]) Complete() bool {
	if !s.flushPending() {
		return false
	}
	if !s.completed {
		s.expireThrough(math.MaxInt64)
		s.completed = true
	}
	return s.flushPending()
}

// OpenSessionCount returns the number of currently open (unexpired)
// sessions. Diagnostics only.
func (s *Session[T, K, A, R]) OpenSessionCount() int {
	return s.openStateSize()
}

// OldestOpenDeadline returns the smallest expiry deadline still pending,
// or (0, false) if no session is open. Diagnostics only.
func (s *Session[T, K, A, R]) OldestOpenDeadline() (int64, bool) {
	return s.deadlineToKeys.FirstSeq()
}

var _ operator.Operator[int, Result[int, int]] = (*Session[int, int, int, int])(nil)
