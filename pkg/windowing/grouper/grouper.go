// Package grouper implements the frame grouper: a ring of bucketCount
// per-frame key->accumulator maps that bins events into fixed-length
// frames and emits partial per-frame aggregates on eviction. See spec
// section 4.2.
package grouper

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/flowmesh/windowcore/pkg/aggregate"
	"github.com/flowmesh/windowcore/pkg/metrics"
	"github.com/flowmesh/windowcore/pkg/operator"
	"github.com/flowmesh/windowcore/pkg/shared/logging"
	"github.com/flowmesh/windowcore/pkg/windowing"
)

// Config configures a Grouper. T is the event type, K the grouping key,
// A the aggregator's accumulator type, R its finished result type (R is
// unused by the grouper itself, which emits raw accumulators downstream,
// but is carried so callers can share one Aggregator value between the
// grouper and the sliding combiner).
type Config[T any, K comparable, A, R any] struct {
	// FrameLength is the frame width in timestamp units.
	FrameLength int64
	// BucketCount is the ring size (framesPerWindow).
	BucketCount int64
	// ExtractTimestamp pulls the event-time timestamp from an event.
	ExtractTimestamp func(T) int64
	// ExtractKey pulls the grouping key from an event. Nil means every
	// event shares the zero-value singleton key.
	ExtractKey func(T) K
	// Aggregator is the aggregation contract applied per key per frame.
	Aggregator aggregate.Aggregator[T, A, R]
	// Logger, if nil, defaults to logging.NewLogger().
	Logger *zap.SugaredLogger
	// Recorder, if nil, gets a fresh metrics.Recorder.
	Recorder *metrics.Recorder
}

func (c Config[T, K, A, R]) validate() error {
	var errs []error
	if err := windowing.ValidatePositive("frameLength", c.FrameLength); err != nil {
		errs = append(errs, err)
	}
	if err := windowing.ValidateAtLeastOne("bucketCount", c.BucketCount); err != nil {
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

// Grouper is the stateful frame grouper operator.
type Grouper[T any, K comparable, A, R any] struct {
	cfg Config[T, K, A, R]

	ring            []map[K]A
	currentFrameSeq int64
	frameSeqBase    int64
	hasFirst        bool
	completed       bool
	// activeWatermark, when non-nil, marks that the ring has already been
	// advanced for this watermark value and a resumed call only needs to
	// retry flushPending, not redo the advance and re-enqueue the item.
	activeWatermark *int64

	outbox  operator.Outbox[windowing.Frame[K, A]]
	pending []operator.Item[windowing.Frame[K, A]]

	logger *zap.SugaredLogger
}

// New constructs a Grouper, validating cfg eagerly.
func New[T any, K comparable, A, R any](cfg Config[T, K, A, R]) (*Grouper[T, K, A, R], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	instanceID := operator.NewInstanceID()
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NewRecorder("grouper", instanceID, 64)
	}
	return &Grouper[T, K, A, R]{
		cfg:    cfg,
		ring:   make([]map[K]A, cfg.BucketCount),
		logger: logging.Tag(cfg.Logger, "grouper", instanceID),
	}, nil
}

func (g *Grouper[T, K, A, R]) Init(outbox operator.Outbox[windowing.Frame[K, A]]) {
	g.outbox = outbox
}

func (g *Grouper[T, K, A, R]) flushPending() bool {
	for len(g.pending) > 0 {
		if !g.outbox.Offer(g.pending[0]) {
			g.cfg.Recorder.BackpressureRetried()
			return false
		}
		g.pending = g.pending[1:]
	}
	return true
}

// ProcessItem drains data items from inbox, stopping (without consuming)
// when the head is a watermark, per spec section 5's ordering guarantee.
func (g *Grouper[T, K, A, R]) ProcessItem(ordinal int, inbox operator.Inbox[T]) bool {
	if !g.flushPending() {
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
		g.ingest(item.Data)
		if !g.flushPending() {
			return false
		}
	}
}

func (g *Grouper[T, K, A, R]) ingest(event T) {
	ts := g.cfg.ExtractTimestamp(event)
	f := windowing.FloorToFrame(ts, g.cfg.FrameLength)

	var key K
	if g.cfg.ExtractKey != nil {
		key = g.cfg.ExtractKey(event)
	}

	if !g.hasFirst {
		g.currentFrameSeq = f
		g.frameSeqBase = f
		g.hasFirst = true
	}

	if f <= g.currentFrameSeq-g.cfg.BucketCount {
		g.logger.Debugw("dropping late event", "frameSeq", f, "currentFrameSeq", g.currentFrameSeq)
		g.cfg.Recorder.LateEventDropped(ts)
		return
	}

	if f > g.currentFrameSeq {
		g.advance(f)
	}

	idx := windowing.Mod(f, g.cfg.BucketCount)
	slot := g.ring[idx]
	if slot == nil {
		slot = make(map[K]A)
		g.ring[idx] = slot
	}
	acc, ok := slot[key]
	if !ok {
		acc = g.cfg.Aggregator.Create()
	}
	slot[key] = g.cfg.Aggregator.Accumulate(acc, event)

	g.cfg.Recorder.SetOpenState(g.openStateSize())
}

// advance evicts every frame in [max(frameSeqBase, currentFrameSeq-
// bucketCount+1), f-bucketCount+1) and moves currentFrameSeq to f, per
// spec section 4.2 step 4.
func (g *Grouper[T, K, A, R]) advance(f int64) {
	lo := g.currentFrameSeq - g.cfg.BucketCount + 1
	if g.frameSeqBase > lo {
		lo = g.frameSeqBase
	}
	hi := f - g.cfg.BucketCount + 1
	for seq := lo; seq < hi; seq++ {
		g.evictSlot(seq)
	}
	g.currentFrameSeq = f
}

func (g *Grouper[T, K, A, R]) evictSlot(seq int64) {
	idx := windowing.Mod(seq, g.cfg.BucketCount)
	slot := g.ring[idx]
	if slot == nil {
		return
	}
	for k, acc := range slot {
		g.pending = append(g.pending, operator.DataItem(windowing.Frame[K, A]{FrameSeq: seq, Key: k, Value: acc}))
		g.cfg.Recorder.WindowEmitted()
	}
	g.ring[idx] = nil
}

func (g *Grouper[T, K, A, R]) openStateSize() int {
	n := 0
	for _, slot := range g.ring {
		n += len(slot)
	}
	return n
}

// ProcessWatermark advances the ring as if an event had arrived at the
// largest frame strictly below wm, then forwards wm downstream. Per spec
// section 4.2's watermark rule.
func (g *Grouper[T, K, A, R]) ProcessWatermark(wm int64) bool {
	if !g.flushPending() {
		return false
	}
	if !g.watermarkInFlight(wm) {
		if g.hasFirst {
			virtual := windowing.FloorToFrame(wm-1, g.cfg.FrameLength)
			if virtual > g.currentFrameSeq {
				g.advance(virtual)
			}
		} else {
			g.frameSeqBase = windowing.FloorToFrame(wm-1, g.cfg.FrameLength)
			g.currentFrameSeq = g.frameSeqBase
			g.hasFirst = true
		}
		g.cfg.Recorder.SetOpenState(g.openStateSize())
		g.pending = append(g.pending, operator.WatermarkItem[windowing.Frame[K, A]](wm))
		wmCopy := wm
		g.activeWatermark = &wmCopy
	}
	ok := g.flushPending()
	if ok {
		g.activeWatermark = nil
	}
	return ok
}

func (g *Grouper[T, K, A, R]) watermarkInFlight(wm int64) bool {
	return g.activeWatermark != nil && *g.activeWatermark == wm
}

// Complete emits every remaining accumulator exactly once (idempotent
// across repeated calls under backpressure) and reports done once the
// outbox has accepted everything.
func (g *Grouper[T, K, A, R]) Complete() bool {
	if !g.flushPending() {
		return false
	}
	if !g.completed {
		if g.hasFirst {
			for seq := g.oldestLiveSeq(); seq <= g.currentFrameSeq; seq++ {
				g.evictSlot(seq)
			}
		}
		g.completed = true
	}
	return g.flushPending()
}

// OldestOpenFrame returns the oldest frame sequence still holding state,
// or (0, false) if the ring is empty. Diagnostics only.
func (g *Grouper[T, K, A, R]) OldestOpenFrame() (int64, bool) {
	if !g.hasFirst {
		return 0, false
	}
	for seq := g.oldestLiveSeq(); seq <= g.currentFrameSeq; seq++ {
		idx := windowing.Mod(seq, g.cfg.BucketCount)
		if g.ring[idx] != nil {
			return seq, true
		}
	}
	return 0, false
}

// oldestLiveSeq is the lower bound of the sequences the ring can still hold,
// max(frameSeqBase, currentFrameSeq-bucketCount+1), the same bound advance
// starts evicting from. Within [oldestLiveSeq, currentFrameSeq] every
// sequence maps to a distinct ring slot.
func (g *Grouper[T, K, A, R]) oldestLiveSeq() int64 {
	lo := g.currentFrameSeq - g.cfg.BucketCount + 1
	if g.frameSeqBase > lo {
		lo = g.frameSeqBase
	}
	return lo
}

var _ operator.Operator[int, windowing.Frame[int, int]] = (*Grouper[int, int, int, int])(nil)
