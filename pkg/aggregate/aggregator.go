// Package aggregate defines the Aggregator value contract shared by every
// windowing operator and ships a handful of ready-made aggregators.
//
// An Aggregator is modelled as a struct of function-valued fields rather
// than an interface: the accumulator type A is often a small mutable
// struct (a running sum, a counter) and callers frequently want to build
// one inline from closures without declaring a named type per aggregation.
package aggregate

// Aggregator is the pure value-level aggregation contract. T is the input
// event type, A the accumulator type, R the finished result type.
//
// Contracts (never checked by the core; a violation produces wrong
// results, not an error):
//   - Combine is commutative and associative.
//   - Deduct, when non-nil, is the left inverse of Combine:
//     Deduct(Combine(a, b), b) == a for all a, b.
//   - Finish is pure (no side effects, does not mutate acc).
//   - Equal, required whenever Deduct is non-nil, must recognize the
//     identity value produced by Create (and only accumulators that are
//     observationally empty) so the sliding combiner can detect that a
//     key has fully drained out of a window.
type Aggregator[T, A, R any] struct {
	// Create returns a fresh identity accumulator.
	Create func() A
	// Accumulate folds one event into an accumulator. May mutate acc in
	// place and return it, or return a new value.
	Accumulate func(acc A, event T) A
	// Combine merges two partial accumulators associatively and
	// commutatively. May mutate its left operand.
	Combine func(a, b A) A
	// Deduct is the optional inverse of Combine. Nil means the
	// aggregation does not support constant-time window maintenance.
	Deduct func(a, b A) A
	// Finish converts an accumulator into its result view.
	Finish func(acc A) R
	// Equal reports whether two accumulators are observationally
	// identical. Required (non-nil) iff Deduct is non-nil.
	Equal func(a, b A) bool
}

// SupportsDeduct reports whether this aggregator can run the sliding
// combiner's constant-time deduct-based maintenance path.
func (a Aggregator[T, A, R]) SupportsDeduct() bool {
	return a.Deduct != nil
}
