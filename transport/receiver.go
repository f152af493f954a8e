package transport

// fillRcvBuffer copies the in-window portion of an incoming data packet
// into the receive buffer and records its range, rejecting anything that
// falls entirely outside the current window. Grounded on
// spo_internal_fill_rcv_buffer: the window/data intersection arithmetic
// and the reuse of rangeSet.merge for SACK bookkeeping are unchanged.
func (c *Connection) fillRcvBuffer(seq uint32, data []byte) bool {
	winStartSeq := c.rcvStartSeq + c.rcvBytesReady
	winEndSeq := c.rcvStartSeq + c.host.config.ConnectionBufSize - 1

	dataStartSeq := seq
	dataEndSeq := seq + uint32(len(data)) - 1

	if seqLess(winEndSeq, winStartSeq) {
		return false
	}
	if seqLess(dataEndSeq, winStartSeq) {
		return false
	}
	if seqLess(winEndSeq, dataStartSeq) {
		return false
	}

	commonStartSeq := seqMax(dataStartSeq, winStartSeq)
	commonEndSeq := seqMin(winEndSeq, dataEndSeq)
	commonDataSize := commonEndSeq - commonStartSeq + 1

	posInBuf := commonStartSeq - winStartSeq
	posInData := commonStartSeq - dataStartSeq

	copy(c.rcvBuf[posInBuf:posInBuf+commonDataSize], data[posInData:posInData+commonDataSize])

	c.rcvPackets.merge(packetRange{start: commonStartSeq, size: commonDataSize})
	c.host.metrics.observeBytesReceived(commonDataSize)
	return true
}

// checkReceivedData walks the out-of-order buffer from its head, dropping
// everything that is now either contiguous with rcv_bytes_ready or simply
// stale, and fires the incoming-data event once if any new bytes became
// readable. Grounded on spo_internal_check_received_data.
func (c *Connection) checkReceivedData() bool {
	var bytesReceived uint32

	for c.rcvPackets.len() > 0 {
		desc := c.rcvPackets.at(0)
		packetEnd := desc.end()
		expectedSeq := c.rcvStartSeq + c.rcvBytesReady + bytesReceived

		if seqLess(expectedSeq, desc.start) {
			break
		}
		if seqLess(expectedSeq, packetEnd) {
			bytesReceived += packetEnd - expectedSeq
		}

		c.rcvPackets.removeAt(0)
	}

	if bytesReceived > 0 {
		c.rcvBytesReady += bytesReceived
		c.host.fireIncomingData(c, c.rcvBytesReady)
		return true
	}

	return false
}

// getAcks collects up to maxSacks ranges from the head of the receive
// buffer's index to advertise as SACKs on the next outgoing packet.
func (c *Connection) getAcks() []packetRange {
	n := c.rcvPackets.len()
	if n > maxSacks {
		n = maxSacks
	}
	if n == 0 {
		return nil
	}

	acks := make([]packetRange, n)
	for i := 0; i < n; i++ {
		acks[i] = c.rcvPackets.at(i)
	}
	return acks
}

// removeAcknowledgedPackets slides the send buffer forward past ack-1 and
// returns how many bytes were newly confirmed; zero means ack didn't move
// the window (a duplicate or out-of-range ACK).
func (c *Connection) removeAcknowledgedPackets(ack uint32) uint32 {
	winStartSeq := c.sndStartSeq
	winEndSeq := c.sndNextSeq - 1
	lastReceivedSeq := ack - 1

	if seqLess(lastReceivedSeq, winStartSeq) {
		return 0
	}
	if seqLess(winEndSeq, lastReceivedSeq) {
		return 0
	}

	bytesSent := ack - winStartSeq
	copy(c.sndBuf, c.sndBuf[bytesSent:c.sndBufBytes])
	c.sndBuf = c.sndBuf[:c.sndBufBytes-bytesSent]
	c.sndBufBytes -= bytesSent
	c.sndStartSeq = ack

	return bytesSent
}

// removeOldAcks drops every recorded SACK range ack has now fully
// subsumed, leaving ranges partially or fully ahead of ack untouched.
func (c *Connection) removeOldAcks(ack uint32) {
	c.sndAckedPackets.dropBefore(ack)
}

// processAcksList folds every SACK range the peer just reported into the
// sender's acked-ranges set, as long as it actually falls inside the
// outstanding send window.
func (c *Connection) processAcksList(acks []packetRange) {
	for _, ack := range acks {
		if seqGreaterEq(ack.start, c.sndStartSeq) && seqLessEq(ack.end(), c.sndNextSeq) {
			c.sndAckedPackets.merge(ack)
		}
	}
}
