package transport

// Sequence numbers are unsigned 32-bit byte offsets that wrap. Every
// ordering comparison goes through these helpers instead of raw operators
// so wraparound near 2^32-1 behaves the same as everywhere else.

func seqLess(a, b uint32) bool {
	return int32(a-b) < 0
}

func seqLessEq(a, b uint32) bool {
	return int32(a-b) <= 0
}

func seqGreater(a, b uint32) bool {
	return int32(a-b) > 0
}

func seqGreaterEq(a, b uint32) bool {
	return int32(a-b) >= 0
}

func seqMin(a, b uint32) uint32 {
	if seqLess(a, b) {
		return a
	}
	return b
}

func seqMax(a, b uint32) uint32 {
	if seqGreater(a, b) {
		return a
	}
	return b
}
