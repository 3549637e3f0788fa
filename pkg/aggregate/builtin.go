package aggregate

// Numeric is the set of types the built-in numeric aggregators accept.
type Numeric interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Ordered is the set of types Min/Max can compare.
type Ordered interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64 | ~string
}

// Sum returns a deduct-capable aggregator that totals a numeric field
// extracted from each event.
func Sum[T any, N Numeric](extract func(T) N) Aggregator[T, N, N] {
	return Aggregator[T, N, N]{
		Create:     func() N { return 0 },
		Accumulate: func(acc N, event T) N { return acc + extract(event) },
		Combine:    func(a, b N) N { return a + b },
		Deduct:     func(a, b N) N { return a - b },
		Finish:     func(acc N) N { return acc },
		Equal:      func(a, b N) bool { return a == b },
	}
}

// Count returns a deduct-capable aggregator counting events, ignoring
// their content.
func Count[T any]() Aggregator[T, int64, int64] {
	return Aggregator[T, int64, int64]{
		Create:     func() int64 { return 0 },
		Accumulate: func(acc int64, _ T) int64 { return acc + 1 },
		Combine:    func(a, b int64) int64 { return a + b },
		Deduct:     func(a, b int64) int64 { return a - b },
		Finish:     func(acc int64) int64 { return acc },
		Equal:      func(a, b int64) bool { return a == b },
	}
}

// minMaxAcc tracks a value plus whether any event has been seen, since the
// zero value of an ordered type is not a safe "no data yet" sentinel.
type minMaxAcc[N Ordered] struct {
	value N
	set   bool
}

// Min returns an aggregator with no inverse: there is no way to "unsee" the
// minimum contributor once other values have merged in, so this
// deliberately exercises the sliding combiner's recompute path.
func Min[T any, N Ordered](extract func(T) N) Aggregator[T, minMaxAcc[N], N] {
	return Aggregator[T, minMaxAcc[N], N]{
		Create: func() minMaxAcc[N] { return minMaxAcc[N]{} },
		Accumulate: func(acc minMaxAcc[N], event T) minMaxAcc[N] {
			v := extract(event)
			if !acc.set || v < acc.value {
				return minMaxAcc[N]{value: v, set: true}
			}
			return acc
		},
		Combine: func(a, b minMaxAcc[N]) minMaxAcc[N] {
			if !a.set {
				return b
			}
			if !b.set {
				return a
			}
			if b.value < a.value {
				return b
			}
			return a
		},
		Finish: func(acc minMaxAcc[N]) N { return acc.value },
	}
}

// Reduce returns a generic reducing aggregator: it starts from identity
// and folds each event's mapped value into the running result via
// combineF, which must be commutative and associative. deductF is
// optional; when supplied, it must be combineF's left inverse
// (deductF(combineF(acc, v), v) == acc for all acc, v), enabling the
// sliding combiner's O(1) maintenance path.
func Reduce[T any, U comparable](identity U, mapF func(T) U, combineF func(a, b U) U, deductF func(a, b U) U) Aggregator[T, U, U] {
	agg := Aggregator[T, U, U]{
		Create:     func() U { return identity },
		Accumulate: func(acc U, event T) U { return combineF(acc, mapF(event)) },
		Combine:    combineF,
		Finish:     func(acc U) U { return acc },
	}
	if deductF != nil {
		agg.Deduct = deductF
		agg.Equal = func(a, b U) bool { return a == b }
	}
	return agg
}

// linTrendAcc holds the running sums LinearTrend needs to fit a
// least-squares line through (x, y) pairs: count, the two first moments,
// and the cross and squared-x second moments. Every field is a plain sum,
// so Combine/Deduct are pairwise addition/subtraction.
type linTrendAcc struct {
	count         int64
	sumX, sumY    int64
	sumXY, sumXSq int64
}

// LinearTrend returns a deduct-capable aggregator that approximates the
// rate of change of y as a function of x, where x and y are int64
// quantities extracted from each event by getX/getY. Finish returns 0 for
// fewer than two points or a degenerate (zero-variance) x range.
func LinearTrend[T any](getX, getY func(T) int64) Aggregator[T, linTrendAcc, float64] {
	combine := func(a, b linTrendAcc) linTrendAcc {
		return linTrendAcc{
			count:  a.count + b.count,
			sumX:   a.sumX + b.sumX,
			sumY:   a.sumY + b.sumY,
			sumXY:  a.sumXY + b.sumXY,
			sumXSq: a.sumXSq + b.sumXSq,
		}
	}
	return Aggregator[T, linTrendAcc, float64]{
		Create: func() linTrendAcc { return linTrendAcc{} },
		Accumulate: func(acc linTrendAcc, event T) linTrendAcc {
			x, y := getX(event), getY(event)
			acc.count++
			acc.sumX += x
			acc.sumY += y
			acc.sumXY += x * y
			acc.sumXSq += x * x
			return acc
		},
		Combine: combine,
		Deduct: func(a, b linTrendAcc) linTrendAcc {
			return linTrendAcc{
				count:  a.count - b.count,
				sumX:   a.sumX - b.sumX,
				sumY:   a.sumY - b.sumY,
				sumXY:  a.sumXY - b.sumXY,
				sumXSq: a.sumXSq - b.sumXSq,
			}
		},
		Finish: func(acc linTrendAcc) float64 {
			if acc.count < 2 {
				return 0
			}
			n := float64(acc.count)
			denom := n*float64(acc.sumXSq) - float64(acc.sumX)*float64(acc.sumX)
			if denom == 0 {
				return 0
			}
			return (n*float64(acc.sumXY) - float64(acc.sumX)*float64(acc.sumY)) / denom
		},
		Equal: func(a, b linTrendAcc) bool { return a == b },
	}
}

// Max is the dual of Min, equally non-deduct-capable.
func Max[T any, N Ordered](extract func(T) N) Aggregator[T, minMaxAcc[N], N] {
	return Aggregator[T, minMaxAcc[N], N]{
		Create: func() minMaxAcc[N] { return minMaxAcc[N]{} },
		Accumulate: func(acc minMaxAcc[N], event T) minMaxAcc[N] {
			v := extract(event)
			if !acc.set || v > acc.value {
				return minMaxAcc[N]{value: v, set: true}
			}
			return acc
		},
		Combine: func(a, b minMaxAcc[N]) minMaxAcc[N] {
			if !a.set {
				return b
			}
			if !b.set {
				return a
			}
			if b.value > a.value {
				return b
			}
			return a
		},
		Finish: func(acc minMaxAcc[N]) N { return acc.value },
	}
}
