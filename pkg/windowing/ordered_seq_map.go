package windowing

import "sort"

// OrderedSeqMap is an ordered map keyed by ascending int64 sequence number,
// modeled directly on the teacher's SortedWindowList: a sorted slice probed
// with sort.Search rather than a balanced tree, since insertions
// overwhelmingly land near the tail (the newest frame/deadline) and the
// worst-case O(n) shift is rare in practice for the same reason the
// teacher's window list documents.
type OrderedSeqMap[V any] struct {
	entries []seqEntry[V]
}

type seqEntry[V any] struct {
	seq int64
	val V
}

// NewOrderedSeqMap returns an empty ordered map.
func NewOrderedSeqMap[V any]() *OrderedSeqMap[V] {
	return &OrderedSeqMap[V]{}
}

func (m *OrderedSeqMap[V]) search(seq int64) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].seq >= seq
	})
}

// Get returns the value stored at seq, if present.
func (m *OrderedSeqMap[V]) Get(seq int64) (V, bool) {
	i := m.search(seq)
	if i < len(m.entries) && m.entries[i].seq == seq {
		return m.entries[i].val, true
	}
	var zero V
	return zero, false
}

// GetOrCreate returns the value stored at seq, creating it via create() and
// inserting it in sorted position if absent.
func (m *OrderedSeqMap[V]) GetOrCreate(seq int64, create func() V) V {
	i := m.search(seq)
	if i < len(m.entries) && m.entries[i].seq == seq {
		return m.entries[i].val
	}
	v := create()
	m.insertAt(i, seq, v)
	return v
}

// Set stores val at seq, inserting in sorted position if absent.
func (m *OrderedSeqMap[V]) Set(seq int64, val V) {
	i := m.search(seq)
	if i < len(m.entries) && m.entries[i].seq == seq {
		m.entries[i].val = val
		return
	}
	m.insertAt(i, seq, val)
}

func (m *OrderedSeqMap[V]) insertAt(i int, seq int64, val V) {
	m.entries = append(m.entries, seqEntry[V]{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = seqEntry[V]{seq: seq, val: val}
}

// Remove deletes and returns the value at seq, if present.
func (m *OrderedSeqMap[V]) Remove(seq int64) (V, bool) {
	i := m.search(seq)
	if i < len(m.entries) && m.entries[i].seq == seq {
		v := m.entries[i].val
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
		return v, true
	}
	var zero V
	return zero, false
}

// LastSeq returns the largest stored sequence.
func (m *OrderedSeqMap[V]) LastSeq() (int64, bool) {
	if len(m.entries) == 0 {
		return 0, false
	}
	return m.entries[len(m.entries)-1].seq, true
}

// FirstSeq returns the smallest stored sequence.
func (m *OrderedSeqMap[V]) FirstSeq() (int64, bool) {
	if len(m.entries) == 0 {
		return 0, false
	}
	return m.entries[0].seq, true
}

// Len returns the number of stored entries.
func (m *OrderedSeqMap[V]) Len() int {
	return len(m.entries)
}

// RemoveBelow removes and returns every entry with seq strictly less than
// bound, in ascending order.
func (m *OrderedSeqMap[V]) RemoveBelow(bound int64) []Frame[int64, V] {
	i := m.search(bound)
	removed := make([]Frame[int64, V], i)
	for j := 0; j < i; j++ {
		removed[j] = Frame[int64, V]{FrameSeq: m.entries[j].seq, Value: m.entries[j].val}
	}
	m.entries = m.entries[i:]
	return removed
}

// SeqsInRange returns the sequences in (lowExclusive, highInclusive], in
// ascending order.
func (m *OrderedSeqMap[V]) SeqsInRange(lowExclusive, highInclusive int64) []int64 {
	lo := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].seq > lowExclusive })
	hi := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].seq > highInclusive })
	out := make([]int64, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, m.entries[i].seq)
	}
	return out
}
