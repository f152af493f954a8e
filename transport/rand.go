package transport

import (
	"crypto/rand"
	"encoding/binary"
)

// Rand is a seeded 32-bit sequence used for initial sequence numbers and
// port selection. Unsynchronized use across connections is fine since
// each Host owns its own instance rather than sharing one process-wide
// generator.
type Rand interface {
	Next() uint32
}

// additiveRand reimplements the lagged-Fibonacci generator from the
// original implementation's random.c: a 55-word additive feedback shift
// register whose output is further shuffled through a 256-entry table.
// This is not a general-purpose PRNG choice; it exists to preserve the
// exact statistical shape (a raw seeded stream, no external state beyond
// one 32-bit seed) the original library depends on for ISN/port diversity.
type additiveRand struct {
	x [55]uint32
	y [256]uint32
	z uint32
	i uint32
	j uint32
}

func newAdditiveRand(seed uint32) *additiveRand {
	r := &additiveRand{}
	r.x[0] = 1
	r.x[1] = seed
	for i := 2; i < 55; i++ {
		r.x[i] = r.x[i-1] + r.x[i-2]
	}

	r.i = 23
	r.j = 54

	for i := 255; i >= 0; i-- {
		r.rawNext()
	}
	for i := 255; i >= 0; i-- {
		r.y[i] = r.rawNext()
	}
	r.z = r.rawNext()

	return r
}

// newDefaultRand seeds an additiveRand from a cryptographically random
// 32-bit value. The original seeds from a coarse monotonic clock reading;
// ISN/port choice only needs to be unpredictable in practice, so a better
// seed source is used here.
func newDefaultRand() *additiveRand {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable for this
		// process; fall back to a fixed seed rather than panicking.
		return newAdditiveRand(0x9e3779b9)
	}
	return newAdditiveRand(binary.BigEndian.Uint32(buf[:]))
}

func (r *additiveRand) rawNext() uint32 {
	if r.i > 0 {
		r.i--
	} else {
		r.i = 54
	}
	if r.j > 0 {
		r.j--
	} else {
		r.j = 54
	}

	r.x[r.j] += r.x[r.i]
	return r.x[r.j]
}

func (r *additiveRand) Next() uint32 {
	index := r.z >> 24
	r.z = r.y[index]
	r.y[index] = r.rawNext()
	return r.z
}
