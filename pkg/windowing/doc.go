// Package windowing implements the constructs shared by the three window
// operators: the immutable Frame value that crosses operator boundaries,
// the frame/window boundary arithmetic, and the ordered index structures
// (OrderedSeqMap, OrderedIntervalMap) used to hold per-key accumulators in
// ascending sequence order.
//
// Frames are aligned to a fixed frameLength: a frame with sequence s covers
// event timestamps in [s, s+frameLength). A window ending at frame-end
// boundary e covers [e-windowLength, e). Left inclusive, right exclusive
// throughout, matching how the teacher's fixed/sliding window strategies
// truncate event time to a boundary.
package windowing
