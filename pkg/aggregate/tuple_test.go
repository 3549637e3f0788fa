package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTuple_DeductCapableWhenAllConstituentsAre(t *testing.T) {
	sum := Sum[int, int](func(v int) int { return v })
	count := Count[int]()

	tuple := NewTuple[int](Erase[int, int, int](sum), Erase[int, int64, int64](count))
	assert.True(t, tuple.SupportsDeduct())

	acc := tuple.Create()
	for _, v := range []int{1, 2, 3} {
		acc = tuple.Accumulate(acc, v)
	}
	result := tuple.Finish(acc)
	assert.Equal(t, 6, result[0])
	assert.Equal(t, int64(3), result[1])
}

func TestNewTuple_NotDeductCapableWhenOneConstituentIsnt(t *testing.T) {
	sum := Sum[int, int](func(v int) int { return v })
	minAgg := Min[int, int](func(v int) int { return v })

	tuple := NewTuple[int](Erase[int, int, int](sum), Erase[int, minMaxAcc[int], int](minAgg))
	assert.False(t, tuple.SupportsDeduct())
}

func TestNewTuple_CombineMergesElementwise(t *testing.T) {
	sum := Sum[int, int](func(v int) int { return v })
	tuple := NewTuple[int](Erase[int, int, int](sum))

	a := tuple.Accumulate(tuple.Create(), 3)
	b := tuple.Accumulate(tuple.Create(), 4)
	combined := tuple.Combine(a, b)

	assert.Equal(t, 7, tuple.Finish(combined)[0])
}
