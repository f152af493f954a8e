package transport

import "testing"

func testHost(cfg Configuration) *Host {
	return &Host{
		config: cfg,
		clock:  &fakeClock{},
		adapter: &nullAdapter{},
	}
}

func TestUpdateSsthreshFactorAndFloor(t *testing.T) {
	cfg := DefaultConfiguration()
	h := testHost(cfg)

	c := &Connection{host: h, sndStartSeq: 0, sndNextSeq: 10000}
	c.updateSsthresh(cfg.SsthreshFactorOnLossPercent)

	want := uint32(10000) * cfg.SsthreshFactorOnLossPercent / 100
	if want < cfg.MinSsthreshInPackets*mss {
		want = cfg.MinSsthreshInPackets * mss
	}
	if c.sndSsthreshBytes != want {
		t.Errorf("ssthresh = %d, want %d", c.sndSsthreshBytes, want)
	}
}

func TestUpdateSsthreshClampsToFloor(t *testing.T) {
	cfg := DefaultConfiguration()
	h := testHost(cfg)

	// A tiny amount of in-flight data would compute an ssthresh far below
	// the configured floor; updateSsthresh must clamp to it.
	c := &Connection{host: h, sndStartSeq: 0, sndNextSeq: 10}
	c.updateSsthresh(cfg.SsthreshFactorOnLossPercent)

	floor := cfg.MinSsthreshInPackets * mss
	if c.sndSsthreshBytes != floor {
		t.Errorf("ssthresh = %d, want floor %d", c.sndSsthreshBytes, floor)
	}
}

func TestInitiateRecoveryModeByLossSetsCwndFromDuplicateAcks(t *testing.T) {
	cfg := DefaultConfiguration()
	h := testHost(cfg)

	c := &Connection{
		host:            h,
		sndStartSeq:     1000,
		sndNextSeq:      1000, // no outstanding data, so recovery sends nothing
		sndDuplicateAcks: 5,
	}
	c.initiateRecoveryMode(recoveryByLoss)

	wantSsthresh := uint32(0) * cfg.SsthreshFactorOnLossPercent / 100
	if wantSsthresh < cfg.MinSsthreshInPackets*mss {
		wantSsthresh = cfg.MinSsthreshInPackets * mss
	}
	if c.sndSsthreshBytes != wantSsthresh {
		t.Errorf("ssthresh = %d, want %d", c.sndSsthreshBytes, wantSsthresh)
	}

	dupCwnd := uint32(5) * mss
	wantCwnd := wantSsthresh
	if dupCwnd > wantCwnd {
		wantCwnd = dupCwnd
	}
	if c.sndCwndBytes != wantCwnd {
		t.Errorf("cwnd = %d, want %d", c.sndCwndBytes, wantCwnd)
	}

	if c.sndRecoveryMode != recoveryByLoss {
		t.Errorf("recovery mode = %v, want recoveryByLoss", c.sndRecoveryMode)
	}
	if c.sndDuplicateAcks != 0 {
		t.Errorf("duplicate acks should reset to 0, got %d", c.sndDuplicateAcks)
	}
	if c.sndRecoveryPointSeq != c.sndNextSeq {
		t.Errorf("recovery point = %d, want snd_next_seq %d", c.sndRecoveryPointSeq, c.sndNextSeq)
	}
}

func TestInitiateRecoveryModeByTimeoutUsesConfiguredCwnd(t *testing.T) {
	cfg := DefaultConfiguration()
	h := testHost(cfg)

	c := &Connection{host: h, sndStartSeq: 500, sndNextSeq: 500}
	c.initiateRecoveryMode(recoveryByTimeout)

	want := cfg.CwndOnTimeoutInPackets * mss
	if c.sndCwndBytes != want {
		t.Errorf("cwnd = %d, want %d", c.sndCwndBytes, want)
	}
	if c.sndRecoveryMode != recoveryByTimeout {
		t.Errorf("recovery mode = %v, want recoveryByTimeout", c.sndRecoveryMode)
	}
}

func TestTerminateRecoveryModeRestoresSsthreshAfterLoss(t *testing.T) {
	cfg := DefaultConfiguration()
	h := testHost(cfg)

	c := &Connection{host: h, sndRecoveryMode: recoveryByLoss, sndSsthreshBytes: 12345}
	c.terminateRecoveryMode()

	if c.sndRecoveryMode != recoveryOff {
		t.Errorf("recovery mode = %v, want recoveryOff", c.sndRecoveryMode)
	}
	if c.sndCwndBytes != 12345 {
		t.Errorf("cwnd = %d, want restored ssthresh 12345", c.sndCwndBytes)
	}
}

func TestHandleSentDataAcknowledgedSlowStartCappedByConfig(t *testing.T) {
	cfg := DefaultConfiguration()
	h := testHost(cfg)

	c := &Connection{
		host:             h,
		sndCwndBytes:     1000,
		sndSsthreshBytes: 100000, // stay in slow start
		sndDuplicateAcks: 3,
	}

	maxInc := cfg.MaxCwndIncOnSlowstartInPackets * mss
	hugeBytesAcked := maxInc + 5000

	c.handleSentDataAcknowledged(hugeBytesAcked)

	if c.sndCwndBytes != 1000+maxInc {
		t.Errorf("cwnd = %d, want %d (capped slow-start increment)", c.sndCwndBytes, 1000+maxInc)
	}
	if c.sndDuplicateAcks != 0 {
		t.Error("handleSentDataAcknowledged must reset duplicate ack counter")
	}
}

func TestHandleSentDataAcknowledgedCongestionAvoidance(t *testing.T) {
	cfg := DefaultConfiguration()
	h := testHost(cfg)

	c := &Connection{
		host:             h,
		sndCwndBytes:     50000,
		sndSsthreshBytes: 1000, // already past ssthresh: congestion avoidance
	}

	c.handleSentDataAcknowledged(200)

	want := uint32(50000) + mss*mss/50000
	if c.sndCwndBytes != want {
		t.Errorf("cwnd = %d, want %d", c.sndCwndBytes, want)
	}
}

func TestRecoveryRetransmitNextDataFindsHoleAfterSackedRange(t *testing.T) {
	cfg := DefaultConfiguration()
	h := testHost(cfg)

	c := &Connection{
		host:        h,
		sndStartSeq: 0,
		sndNextSeq:  5000,
		sndBuf:      make([]byte, 5000),
		sndBufBytes: 5000,
	}
	// Two disjoint SACKed ranges: [1000,2000) and [2500,3000). Known holes
	// are [0,1000) and [2000,2500); nothing beyond 3000 is a known hole
	// since [2500,3000) is the tail of the SACK set.
	c.sndAckedPackets.merge(packetRange{start: 1000, size: 1000})
	c.sndAckedPackets.merge(packetRange{start: 2500, size: 500})
	c.sndCwndBytes = mss * 10

	sent := c.recoveryRetransmitNextData()
	if sent == 0 {
		t.Fatal("expected a retransmission of the hole before the first SACKed range")
	}
	if c.sndRetransmitNextSeq != sent {
		t.Errorf("retransmit cursor = %d, want %d (retransmitted from seq 0)", c.sndRetransmitNextSeq, sent)
	}

	// Next call should retransmit starting from the end of the first
	// SACKed range (2000), the hole between the two SACKed ranges.
	sent2 := c.recoveryRetransmitNextData()
	if sent2 == 0 {
		t.Fatal("expected a second retransmission covering the hole between the SACKed ranges")
	}
	if c.sndRetransmitNextSeq != 2000+sent2 {
		t.Errorf("retransmit cursor = %d, want %d", c.sndRetransmitNextSeq, 2000+sent2)
	}

	// Past the tail SACKed range there is no known hole left to chase.
	if sent3 := c.recoveryRetransmitNextData(); sent3 != 0 {
		t.Errorf("expected no retransmission past the tail SACKed range, sent %d bytes", sent3)
	}
}

func TestRecoveryRetransmitNextDataNoneWhenNothingSacked(t *testing.T) {
	cfg := DefaultConfiguration()
	h := testHost(cfg)

	c := &Connection{host: h, sndStartSeq: 0, sndNextSeq: 1000, sndCwndBytes: mss * 10}
	if sent := c.recoveryRetransmitNextData(); sent != 0 {
		t.Errorf("expected no retransmission with an empty SACK set, sent %d bytes", sent)
	}
}
