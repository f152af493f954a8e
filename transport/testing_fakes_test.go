package transport

// Test-only collaborators: a settable Clock, a loopback Adapter pair with
// injectable packet loss, grounded on original_source/test/test.c's
// in-process loopback-plus-drop-simulator harness. None of this is
// reachable from production code paths.

// fakeClock is a directly-advanceable Clock, letting tests drive timeouts,
// RTO, and ping cadence deterministically instead of sleeping real time.
type fakeClock struct {
	ms uint32
}

func (c *fakeClock) NowMillis() uint32 {
	return c.ms
}

func (c *fakeClock) Advance(d uint32) {
	c.ms += d
}

// memNetwork is a shared in-process "wire" connecting any number of
// memAdapters keyed by Address. Send delivers synchronously into the
// destination's queue (tests drive both sides from one goroutine, so there
// is no need for the channel-based synchronization UDPAdapter uses).
type memNetwork struct {
	adapters map[string]*memAdapter
	drop     func(from, to Address, pkt *wirePacket) bool
}

func newMemNetwork() *memNetwork {
	return &memNetwork{adapters: make(map[string]*memAdapter)}
}

func (n *memNetwork) newAdapter(addr Address) *memAdapter {
	a := &memAdapter{addr: addr, net: n}
	n.adapters[addr.String()] = a
	return a
}

type memAdapter struct {
	addr   Address
	net    *memNetwork
	queue  []inboundDatagram
	closed bool
}

func (a *memAdapter) DataAvailable() bool {
	return len(a.queue) > 0
}

func (a *memAdapter) Recv(buf []byte) (int, Address, error) {
	if len(a.queue) == 0 {
		return 0, Address{}, nil
	}
	d := a.queue[0]
	a.queue = a.queue[1:]
	return copy(buf, d.data), d.from, nil
}

func (a *memAdapter) Send(buf []byte, to Address) (int, error) {
	if a.closed {
		return 0, errAdapterClosed
	}

	if a.net.drop != nil {
		if pkt, err := decodePacket(buf); err == nil && a.net.drop(a.addr, to, pkt) {
			return len(buf), nil
		}
	}

	dst, ok := a.net.adapters[to.String()]
	if !ok {
		return len(buf), nil
	}

	data := append([]byte(nil), buf...)
	dst.queue = append(dst.queue, inboundDatagram{data: data, from: a.addr})
	return len(buf), nil
}

func (a *memAdapter) Close() error {
	a.closed = true
	return nil
}

// nullAdapter discards every Send and never has anything to Recv. It backs
// unit tests that exercise congestion/sender logic directly on a bare
// Connection without a peer on the other end.
type nullAdapter struct {
	sentPackets int
}

func (a *nullAdapter) DataAvailable() bool             { return false }
func (a *nullAdapter) Recv([]byte) (int, Address, error) { return 0, Address{}, nil }
func (a *nullAdapter) Send(buf []byte, _ Address) (int, error) {
	a.sentPackets++
	return len(buf), nil
}
func (a *nullAdapter) Close() error { return nil }

// pump advances both the clock and every host's MakeProgress loop in
// lockstep, up to maxTicks times, stopping early once done reports true.
func pump(clock *fakeClock, tickMillis uint32, maxTicks int, hosts []*Host, done func() bool) bool {
	for i := 0; i < maxTicks; i++ {
		for _, h := range hosts {
			h.MakeProgress()
		}
		if done != nil && done() {
			return true
		}
		clock.Advance(tickMillis)
	}
	return done == nil || done()
}
