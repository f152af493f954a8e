package transport

// Congestion control state machine: slow start, congestion avoidance, and
// two recovery modes (triggered by duplicate ACKs / SACK holes, or by a
// retransmission timeout). Every constant and piece of arithmetic here is
// carried over unchanged from the original's recovery functions; only the
// names are translated from spo_internal_* to method form.

func (c *Connection) increaseCwndByBytes(bytes uint32) {
	c.sndCwndBytes += bytes
	if c.sndCwndBytes > c.host.config.ConnectionBufSize {
		c.sndCwndBytes = c.host.config.ConnectionBufSize
	}
}

func (c *Connection) decreaseCwndByBytes(bytes uint32) {
	if c.sndCwndBytes >= bytes {
		c.sndCwndBytes -= bytes
	} else {
		c.sndCwndBytes = 0
	}
}

// handleConnectionInit seeds the congestion state once a connection
// reaches StateConnected, from either side of the handshake.
func (c *Connection) handleConnectionInit() {
	c.sndLastDataSentTime = c.host.clock.NowMillis()
	c.sndCwndBytes = mss * c.host.config.InitialCwndInPackets
	c.sndSsthreshBytes = c.host.config.ConnectionBufSize
	c.sndRecoveryPointSeq = c.sndStartSeq
	c.sndRetransmitRescueSeq = c.sndStartSeq
	c.sndRetransmitNextSeq = c.sndStartSeq
}

func (c *Connection) handleNextDataSent() {
	c.sndLastDataSentTime = c.host.clock.NowMillis()
}

func (c *Connection) handleNewDataReceived() {
	cfg := c.host.config
	if c.sndMandatoryPackets < uint8(cfg.MaxConsecutiveAcknowledges) {
		switch {
		case c.sndMandatoryPackets == 0:
			c.sndMandatoryPackets = 1
			c.sndMandatoryPacketsSkipped = 0
		case uint32(c.sndMandatoryPacketsSkipped) >= cfg.SkipPacketsBeforeAcknowledgement:
			c.sndMandatoryPackets++
			c.sndMandatoryPacketsSkipped = 0
		default:
			c.sndMandatoryPacketsSkipped++
		}
	}
}

// handleUnknownAck notices a duplicate ACK: one that repeats snd_start_seq
// while the sender still has outstanding data.
func (c *Connection) handleUnknownAck(ack uint32) {
	if ack == c.sndStartSeq && seqLess(ack, c.sndNextSeq) {
		if c.sndAckedPackets.len() > 0 {
			if c.sndDuplicateAcks < 255 {
				c.sndDuplicateAcks++
			}
			c.host.metrics.observeDuplicateAck()

			if c.sndRecoveryMode != recoveryOff {
				c.increaseCwndByBytes(mss)
			}
		}
	}
}

func (c *Connection) recoveryRetransmitBySeq(seq uint32) uint32 {
	if c.sndCwndBytes >= mss {
		bytesSent := c.transmitPacket(seq)
		if bytesSent > 0 {
			c.decreaseCwndByBytes(bytesSent)
			if seqLess(c.sndRetransmitNextSeq, seq+bytesSent) {
				c.sndRetransmitNextSeq = seq + bytesSent
			}
			c.host.metrics.observeRetransmit()
			return bytesSent
		}
	}
	return 0
}

func (c *Connection) recoveryRetransmitNextData() uint32 {
	if c.sndAckedPackets.len() == 0 {
		return 0
	}

	seq := seqMax(c.sndRetransmitNextSeq, c.sndStartSeq)
	pos := c.sndAckedPackets.findPos(seq)

	if pos < 0 {
		return c.recoveryRetransmitBySeq(seq)
	}
	if pos+1 < c.sndAckedPackets.len() {
		packetDesc := c.sndAckedPackets.at(pos)
		packetEnd := packetDesc.end()
		if seqLess(seq, packetEnd) {
			seq = packetEnd
		}
		return c.recoveryRetransmitBySeq(seq)
	}

	return 0
}

func (c *Connection) recoverySendNextData() uint32 {
	if c.sndCwndBytes >= mss {
		bytesSent := c.sendNextConnectionData(c.sndBufBytes)
		if bytesSent > 0 {
			c.decreaseCwndByBytes(bytesSent)
			return bytesSent
		}
	}
	return 0
}

func (c *Connection) updateSsthresh(ssthreshFactorPercent uint32) {
	bytesNotAcked := c.sndNextSeq - c.sndStartSeq
	ssthreshInBytes := bytesNotAcked * ssthreshFactorPercent / 100

	floor := c.host.config.MinSsthreshInPackets * mss
	if ssthreshInBytes > floor {
		c.sndSsthreshBytes = ssthreshInBytes
	} else {
		c.sndSsthreshBytes = floor
	}
}

func (c *Connection) initiateRecoveryMode(mode recoveryMode) bool {
	switch mode {
	case recoveryByLoss:
		if c.sndRecoveryMode == recoveryOff {
			c.updateSsthresh(c.host.config.SsthreshFactorOnLossPercent)
		}
		cwnd := uint32(c.sndDuplicateAcks) * mss
		if c.sndSsthreshBytes > cwnd {
			c.sndCwndBytes = c.sndSsthreshBytes
		} else {
			c.sndCwndBytes = cwnd
		}
	case recoveryByTimeout:
		if c.sndRecoveryMode == recoveryOff {
			c.updateSsthresh(c.host.config.SsthreshFactorOnTimeoutPercent)
		}
		c.sndCwndBytes = c.host.config.CwndOnTimeoutInPackets * mss
	}

	c.sndDuplicateAcks = 0
	c.sndRecoveryMode = mode
	c.sndRecoveryPointSeq = c.sndNextSeq
	c.sndRetransmitRescueSeq = c.sndStartSeq
	c.sndRetransmitNextSeq = c.sndStartSeq

	if c.recoveryRetransmitNextData() > 0 {
		return true
	}
	return c.recoverySendNextData() > 0
}

func (c *Connection) terminateRecoveryMode() {
	switch c.sndRecoveryMode {
	case recoveryByLoss:
		c.sndCwndBytes = c.sndSsthreshBytes
	case recoveryByTimeout:
		c.sndCwndBytes = c.host.config.CwndOnTimeoutInPackets * mss
	}
	c.sndRecoveryMode = recoveryOff
}

func (c *Connection) initiateSlowstartByTimeout() bool {
	if c.sndRecoveryMode == recoveryOff {
		c.updateSsthresh(c.host.config.SsthreshFactorOnTimeoutPercent)
	}
	c.sndCwndBytes = c.host.config.CwndOnTimeoutInPackets * mss
	c.sndDuplicateAcks = 0

	return c.transmitPacket(c.sndStartSeq) > 0
}

// handleSentDataAcknowledged reacts to a newly advanced snd_start_seq:
// either progress against an active recovery point, a new hole opening up
// mid-recovery, slow start, or congestion avoidance.
func (c *Connection) handleSentDataAcknowledged(bytesSent uint32) {
	if c.sndRecoveryMode != recoveryOff {
		if seqLess(c.sndStartSeq, c.sndRecoveryPointSeq) {
			if bytesSent >= mss {
				c.increaseCwndByBytes(mss)
			}
		} else if c.sndAckedPackets.len() > 0 {
			c.initiateRecoveryMode(c.sndRecoveryMode)
		} else {
			c.terminateRecoveryMode()
		}
	} else {
		if c.sndCwndBytes < c.sndSsthreshBytes {
			maxInc := c.host.config.MaxCwndIncOnSlowstartInPackets * mss
			inc := bytesSent
			if inc > maxInc {
				inc = maxInc
			}
			c.increaseCwndByBytes(inc)
		} else {
			c.increaseCwndByBytes(mss * mss / c.sndCwndBytes)
		}
	}

	c.sndDuplicateAcks = 0
	c.sndLastDataSentTime = c.host.clock.NowMillis()
}

func (c *Connection) recoveryDataTransmission() bool {
	if c.recoveryRetransmitNextData() > 0 {
		return true
	}

	if uint32(c.sndDuplicateAcks) >= c.host.config.DuplicateAcksForRetransmit {
		if seqLess(c.sndRetransmitRescueSeq, c.sndRetransmitNextSeq) {
			if c.recoveryRetransmitBySeq(c.sndStartSeq) > 0 {
				c.sndRetransmitRescueSeq = c.sndRetransmitNextSeq
				c.sndDuplicateAcks = 0
				return true
			}
		}
	}

	return c.recoverySendNextData() > 0
}

func (c *Connection) dataTransmission() bool {
	if uint32(c.sndDuplicateAcks) >= c.host.config.DuplicateAcksForRetransmit {
		return c.initiateRecoveryMode(recoveryByLoss)
	}

	if c.sndDuplicateAcks > 0 {
		return c.sendNextConnectionData(c.sndCwndBytes+uint32(c.sndDuplicateAcks)*mss) > 0
	}

	return c.sendNextConnectionData(c.sndCwndBytes) > 0
}

func (c *Connection) processRetransmissionTimer() bool {
	if elapsedSince(c.host.clock, c.sndLastDataSentTime) >= c.host.config.DataRetransmissionTimeoutMillis {
		c.sndLastDataSentTime = c.host.clock.NowMillis()
		c.host.metrics.observeTimeout()

		if c.sndRecoveryMode != recoveryOff {
			return c.initiateRecoveryMode(recoveryByTimeout)
		}
		if c.sndAckedPackets.len() > 0 {
			return c.initiateRecoveryMode(recoveryByTimeout)
		}
		return c.initiateSlowstartByTimeout()
	}

	return false
}

// handleDataTransmission tries to send or retransmit exactly one packet's
// worth of data per call, falling back to the retransmission timer check
// as a last resort.
func (c *Connection) handleDataTransmission() bool {
	if c.sndRecoveryMode != recoveryOff {
		if c.recoveryDataTransmission() {
			return true
		}
	} else if c.dataTransmission() {
		return true
	}

	return c.processRetransmissionTimer()
}
