package utcp

// seq is a sequence number in the 32-bit modular space shared by the
// send and receive sequence variables of every connection. Arithmetic
// on seq wraps the same way TCP sequence numbers do: comparisons go
// through seqDiff rather than the built-in operators.
type seq uint32

// seqDiff returns the signed distance from b to a in the modular
// 32-bit sequence space: a-b computed as unsigned 32-bit subtraction
// and reinterpreted as a signed 32-bit integer. "a is before b" iff
// seqDiff(a, b) < 0.
func seqDiff(a, b seq) int32 {
	return int32(a - b)
}

// seqLess reports whether a precedes b in the modular sequence space.
func seqLess(a, b seq) bool {
	return seqDiff(a, b) < 0
}

// seqLessEq reports whether a precedes or equals b.
func seqLessEq(a, b seq) bool {
	return seqDiff(a, b) <= 0
}

// seqInClosed reports whether v lies in the inclusive modular range
// [lo, hi], as used by the ACK-validity check on inbound segments.
func seqInClosed(v, lo, hi seq) bool {
	return seqLessEq(lo, v) && seqLessEq(v, hi)
}
