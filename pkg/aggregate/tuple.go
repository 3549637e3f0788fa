package aggregate

// AnyAggregator is an Aggregator whose accumulator and result types have
// been erased to any, the shape NewTuple's constituents must share so they
// can be stored in a single slice.
type AnyAggregator[T any] Aggregator[T, any, any]

// Erase adapts a concrete Aggregator[T, A, R] to an AnyAggregator[T] so it
// can be passed to NewTuple alongside constituents of different
// accumulator types. The accumulator crossing the any boundary is always
// the one Erase itself produced (via the wrapped Create/Combine/Deduct),
// so the type assertions here never fail.
func Erase[T, A, R any](agg Aggregator[T, A, R]) AnyAggregator[T] {
	out := AnyAggregator[T]{
		Create:     func() any { return agg.Create() },
		Accumulate: func(acc any, event T) any { return agg.Accumulate(acc.(A), event) },
		Combine:    func(a, b any) any { return agg.Combine(a.(A), b.(A)) },
		Finish:     func(acc any) any { return agg.Finish(acc.(A)) },
	}
	if agg.Deduct != nil {
		out.Deduct = func(a, b any) any { return agg.Deduct(a.(A), b.(A)) }
	}
	if agg.Equal != nil {
		out.Equal = func(a, b any) bool { return agg.Equal(a.(A), b.(A)) }
	}
	return out
}

// NewTuple builds an Aggregator<T, []any, []any> over n constituent
// aggregators: Create/Accumulate/Combine/Finish operate element-wise, and
// the tuple exposes Deduct iff every constituent does, per the contract in
// spec section 4.1.
func NewTuple[T any](constituents ...AnyAggregator[T]) Aggregator[T, []any, []any] {
	n := len(constituents)
	supportsDeduct := n > 0
	for _, c := range constituents {
		if c.Deduct == nil {
			supportsDeduct = false
			break
		}
	}

	tuple := Aggregator[T, []any, []any]{
		Create: func() []any {
			acc := make([]any, n)
			for i, c := range constituents {
				acc[i] = c.Create()
			}
			return acc
		},
		Accumulate: func(acc []any, event T) []any {
			for i, c := range constituents {
				acc[i] = c.Accumulate(acc[i], event)
			}
			return acc
		},
		Combine: func(a, b []any) []any {
			for i, c := range constituents {
				a[i] = c.Combine(a[i], b[i])
			}
			return a
		},
		Finish: func(acc []any) []any {
			out := make([]any, n)
			for i, c := range constituents {
				out[i] = c.Finish(acc[i])
			}
			return out
		},
	}

	if supportsDeduct {
		tuple.Deduct = func(a, b []any) []any {
			for i, c := range constituents {
				a[i] = c.Deduct(a[i], b[i])
			}
			return a
		}
		tuple.Equal = func(a, b []any) bool {
			for i, c := range constituents {
				if !c.Equal(a[i], b[i]) {
					return false
				}
			}
			return true
		}
	}

	return tuple
}
