package transport

import "time"

// Clock is a 32-bit millisecond counter that wraps. Any implementation
// that advances monotonically works; tests substitute a fake one to
// exercise wraparound deterministically.
type Clock interface {
	NowMillis() uint32
}

// elapsedSince returns the wrapped difference "now - since" in
// milliseconds, saturating at 0 if since is somehow ahead of now.
func elapsedSince(clock Clock, since uint32) uint32 {
	now := clock.NowMillis()
	if seqLess(now, since) {
		return 0
	}
	return now - since
}

type realClock struct {
	start time.Time
}

// newRealClock returns a Clock backed by the process's monotonic clock,
// truncated to a wrapping 32-bit millisecond counter.
func newRealClock() *realClock {
	return &realClock{start: time.Now()}
}

func (c *realClock) NowMillis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}
