package windowing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderedIntervalMap_NeighborsNeitherPresent(t *testing.T) {
	m := NewOrderedIntervalMap[int]()
	_, hasLeft, _, hasRight := m.Neighbors(5, 2)
	assert.False(t, hasLeft)
	assert.False(t, hasRight)
}

func TestOrderedIntervalMap_NeighborsWithinGap(t *testing.T) {
	m := NewOrderedIntervalMap[int]()
	m.Insert(Interval{Start: 0, End: 10}, 1)
	m.Insert(Interval{Start: 30, End: 40}, 2)

	// t = 15 is within maxGap=10 of the left interval (End=10) but not
	// within maxGap of the right interval (Start=30).
	leftIdx, hasLeft, _, hasRight := m.Neighbors(15, 10)
	assert.True(t, hasLeft)
	assert.False(t, hasRight)
	iv, val := m.At(leftIdx)
	assert.Equal(t, Interval{Start: 0, End: 10}, iv)
	assert.Equal(t, 1, val)

	// t = 20 is within maxGap=10 of both (10+10 and 30-10).
	_, hasLeft, _, hasRight = m.Neighbors(20, 10)
	assert.True(t, hasLeft)
	assert.True(t, hasRight)

	// t = 60 touches neither.
	_, hasLeft, _, hasRight = m.Neighbors(60, 10)
	assert.False(t, hasLeft)
	assert.False(t, hasRight)
}

func TestOrderedIntervalMap_UpdateResortsOnStartMove(t *testing.T) {
	m := NewOrderedIntervalMap[int]()
	m.Insert(Interval{Start: 0, End: 5}, 1)
	m.Insert(Interval{Start: 20, End: 25}, 2)

	m.Update(0, Interval{Start: -5, End: 5}, 1)
	items := m.Items()
	assert.Equal(t, Interval{Start: -5, End: 5}, items[0])
	assert.Equal(t, Interval{Start: 20, End: 25}, items[1])
}

func TestOrderedIntervalMap_RemoveAt(t *testing.T) {
	m := NewOrderedIntervalMap[int]()
	m.Insert(Interval{Start: 0, End: 5}, 1)
	m.Insert(Interval{Start: 20, End: 25}, 2)

	iv, val := m.RemoveAt(0)
	assert.Equal(t, Interval{Start: 0, End: 5}, iv)
	assert.Equal(t, 1, val)
	assert.Equal(t, 1, m.Len())
}
