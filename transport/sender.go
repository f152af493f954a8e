package transport

// sendPacket builds and transmits one datagram carrying up to mss bytes of
// data, clipped further by however many SACK entries are being piggybacked,
// starting at seq, stamped with the current receive-side ack/SACKs.
// Grounded on spo_internal_send_packet: every outgoing packet, data or
// control, goes through this one function so the ack/SACK piggybacking
// never has to be duplicated at each call site.
func (c *Connection) sendPacket(seq uint32, data []byte) uint32 {
	acks := c.getAcks()

	payload := data
	maxPayload := maxDatagramBytes - headerSize - len(acks)*sackEntrySize
	if len(payload) > maxPayload {
		payload = payload[:maxPayload]
	}

	pkt := &wirePacket{
		typ:     packetData,
		srcPort: c.localPort,
		dstPort: c.remotePort,
		seq:     seq,
		ack:     c.rcvStartSeq,
		sacks:   acks,
		payload: payload,
	}

	buf, err := pkt.encode()
	if err != nil {
		return 0
	}

	n, err := c.host.adapter.Send(buf, c.remoteAddress)
	if err != nil || n < headerSize+len(acks)*sackEntrySize {
		return 0
	}

	c.sndLastPacketTime = c.host.clock.NowMillis()
	if c.sndMandatoryPackets > 0 {
		c.sndMandatoryPackets--
	}

	c.host.metrics.observeBytesSent(uint32(len(payload)))
	return uint32(len(payload))
}

func (c *Connection) sendDataPackets(startSeq uint32, maxPackets int, data []byte) uint32 {
	var totalSent uint32
	for int(totalSent) < len(data) && maxPackets > 0 {
		bytesSent := c.sendPacket(startSeq+totalSent, data[totalSent:])
		if bytesSent == 0 {
			break
		}
		totalSent += bytesSent
		maxPackets--
	}
	return totalSent
}

// sendNextConnectionData sends the next never-before-sent segment, bounded
// by however much of the congestion/limited-transmit window is still free.
func (c *Connection) sendNextConnectionData(cwndBytes uint32) uint32 {
	bytesSentAlready := c.sndNextSeq - c.sndStartSeq
	maxBytesLimit := c.sndBufBytes
	if cwndBytes < maxBytesLimit {
		maxBytesLimit = cwndBytes
	}

	if bytesSentAlready < maxBytesLimit {
		bytesSent := c.sendDataPackets(c.sndNextSeq, 1, c.sndBuf[bytesSentAlready:maxBytesLimit])
		if bytesSent > 0 {
			c.sndNextSeq += bytesSent
			c.handleNextDataSent()
		}
		return bytesSent
	}

	return 0
}

// transmitPacket retransmits previously-sent data starting at seq,
// advancing snd_next_seq if this retransmission reaches further than
// anything sent so far.
func (c *Connection) transmitPacket(seq uint32) uint32 {
	posInBuf := seq - c.sndStartSeq
	if posInBuf >= c.sndBufBytes {
		return 0
	}

	bytesSent := c.sendDataPackets(seq, 1, c.sndBuf[posInBuf:c.sndBufBytes])
	if bytesSent > 0 {
		if seqLess(c.sndNextSeq, seq+bytesSent) {
			c.sndNextSeq = seq + bytesSent
		}
		return bytesSent
	}

	return 0
}

func (c *Connection) sendPingPacket() bool {
	if elapsedSince(c.host.clock, c.sndLastPacketTime) >= c.host.config.PingIntervalMillis {
		c.sendPacket(c.sndStartSeq, nil)
		return true
	}
	return false
}

func (c *Connection) sendFastAck() bool {
	if c.sndMandatoryPackets > 0 {
		c.sendPacket(c.sndStartSeq, nil)
		return true
	}
	return false
}

// processEstablishedConnection is the per-tick decision for a connected,
// established connection: try to push data (and its retransmissions)
// first, then fall back to a bare ACK, then to a keepalive ping.
func (c *Connection) processEstablishedConnection() bool {
	if c.sndBufBytes > 0 && c.handleDataTransmission() {
		return true
	}

	if c.sendFastAck() {
		return true
	}
	if c.sendPingPacket() {
		return true
	}

	return false
}
