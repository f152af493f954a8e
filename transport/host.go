package transport

import (
	"container/list"
	"fmt"
)

// HostOptions carries the out-of-core collaborators a Host needs: all
// four are optional. A nil Clock or Rand defaults to the production
// implementation and a nil Metrics or Logger disables metrics or logging,
// letting tests substitute a fake Clock/Rand or an in-memory Adapter
// (passed separately to NewHost) to drive the protocol deterministically.
type HostOptions struct {
	Clock   Clock
	Rand    Rand
	Metrics *Metrics
	Logger  func(string)
}

// Host owns one bound socket and every Connection multiplexed over it by
// 16-bit local port, mirroring spo_host_data_t. All of its state is
// advanced exclusively by MakeProgress; nothing here spawns a goroutine or
// touches a lock, so a Host must not be shared across goroutines without
// external synchronization.
type Host struct {
	adapter   Adapter
	config    Configuration
	callbacks Callbacks
	clock     Clock
	rand      Rand
	metrics   *Metrics
	logger    func(string)

	connections         *list.List // every non-closed *Connection
	startedConnections  *list.List // subset in StateConnectStarted
	incomingConnections *list.List // subset in StateConnectReceived(WhileStarted)
	byPort              [65536]*Connection
}

// NewHost binds no socket itself; the caller supplies an already-bound
// Adapter (typically from NewUDPAdapter) so test code can substitute an
// in-memory one instead.
func NewHost(adapter Adapter, config Configuration, callbacks Callbacks, opts HostOptions) *Host {
	h := &Host{
		adapter:   adapter,
		config:    config,
		callbacks: callbacks,
		clock:     opts.Clock,
		rand:      opts.Rand,
		metrics:   opts.Metrics,
		logger:    opts.Logger,

		connections:         list.New(),
		startedConnections:  list.New(),
		incomingConnections: list.New(),
	}
	if h.clock == nil {
		h.clock = newRealClock()
	}
	if h.rand == nil {
		h.rand = newDefaultRand()
	}
	return h
}

func (h *Host) logf(format string, args ...interface{}) {
	if h.logger == nil {
		return
	}
	h.logger(fmt.Sprintf(format, args...))
}

// CloseHost terminates every connection still open on this host (firing
// ConnectionLost/UnableToConnect as appropriate) and releases the socket.
func (h *Host) CloseHost() error {
	var next *list.Element
	for e := h.connections.Front(); e != nil; e = next {
		next = e.Next()
		h.terminateConnection(e.Value.(*Connection))
	}
	return h.adapter.Close()
}

// MakeProgress is the single entry point that advances every connection on
// this host by one tick: it drains whatever the socket has queued, then
// gives each connection a chance to transmit, retransmit, or time out.
// Returns true if anything changed, mirroring spo_make_progress's contract
// so callers can back off polling when the host is idle.
func (h *Host) MakeProgress() bool {
	result := false
	if h.receivePackets() {
		result = true
	}
	if h.processConnections() {
		result = true
	}
	h.metrics.refreshConnectionGauges(h)
	return result
}

func (h *Host) receivePackets() bool {
	buf := make([]byte, maxDatagramBytes)
	received := false

	for h.adapter.DataAvailable() {
		n, from, err := h.adapter.Recv(buf)
		if err != nil {
			break
		}
		if n > 0 {
			h.processPacket(from, buf[:n])
			received = true
		}
	}

	return received
}

func (h *Host) processConnections() bool {
	stateChanged := false

	var next *list.Element
	for e := h.connections.Front(); e != nil; e = next {
		next = e.Next()
		conn := e.Value.(*Connection)

		switch conn.state {
		case StateConnectStarted:
			if h.processStartedConnectionTick(conn) {
				stateChanged = true
			}
		case StateConnectReceivedWhileStarted, StateConnectReceived:
			if h.processIncomingConnectionTick(conn) {
				stateChanged = true
			}
		case StateConnected:
			if h.checkConnectionTimeout(conn) {
				stateChanged = true
				continue
			}
			if conn.checkReceivedData() {
				stateChanged = true
			}
			if conn.processEstablishedConnection() {
				stateChanged = true
			}
		}
	}

	return stateChanged
}

func (h *Host) processStartedConnectionTick(conn *Connection) bool {
	if elapsedSince(h.clock, conn.sndLastPacketTime) < h.config.ConnectRetransmissionTimeoutMillis {
		return false
	}

	if uint32(conn.connectAttempts) < h.config.MaxConnectAttempts {
		conn.sendPacket(conn.sndStartSeq, nil)
		conn.connectAttempts++
		h.logf("CONNECT sent to %s", conn.remoteAddress)
	} else {
		h.terminateConnection(conn)
	}

	return true
}

func (h *Host) processIncomingConnectionTick(conn *Connection) bool {
	if elapsedSince(h.clock, conn.sndLastPacketTime) < h.config.AcceptRetransmissionTimeoutMillis {
		return false
	}

	if uint32(conn.connectAttempts) < h.config.MaxAcceptedAttempts {
		conn.sendPacket(conn.sndStartSeq, nil)
		conn.connectAttempts++
		h.logf("ACCEPT sent to %s", conn.remoteAddress)
	} else {
		h.terminateConnection(conn)
	}

	return true
}

func (h *Host) checkConnectionTimeout(conn *Connection) bool {
	if elapsedSince(h.clock, conn.rcvLastPacketTime) >= h.config.ConnectionTimeoutMillis {
		h.terminateConnection(conn)
		return true
	}
	return false
}

// processPacket decodes and dispatches one inbound datagram by connection
// state, mirroring spo_internal_process_packet.
func (h *Host) processPacket(from Address, buf []byte) {
	pkt, err := decodePacket(buf)
	if err != nil {
		return
	}

	if pkt.dstPort == 0 {
		h.processIncomingConnectionPacket(from, pkt.srcPort, pkt.seq)
		return
	}

	conn := h.byPort[pkt.dstPort]
	if conn == nil {
		return
	}
	if !from.Equal(conn.remoteAddress) {
		return
	}

	switch conn.state {
	case StateConnectStarted:
		h.processStartedConnectionPacket(conn, pkt.srcPort, pkt.seq, pkt.ack)
	case StateConnectReceivedWhileStarted, StateConnectReceived:
		h.processIncomingConnectionConfirmingPacket(conn, pkt.srcPort, pkt.seq, pkt.ack, pkt.payload)
	case StateConnected:
		h.processEstablishedConnectionPacket(conn, pkt.srcPort, pkt.seq, pkt.ack, pkt.sacks, pkt.payload)
	}
}

func (h *Host) processEstablishedConnectionPacket(conn *Connection, srcPort uint16, seq, ack uint32, sacks []packetRange, payload []byte) {
	if srcPort != conn.remotePort {
		return
	}
	conn.rcvLastPacketTime = h.clock.NowMillis()

	if conn.sndBufBytes > 0 {
		bytesSent := conn.removeAcknowledgedPackets(ack)
		if bytesSent > 0 {
			conn.removeOldAcks(ack)
			conn.processAcksList(sacks)
			conn.handleSentDataAcknowledged(bytesSent)
		} else {
			conn.processAcksList(sacks)
			conn.handleUnknownAck(ack)
		}
	}

	if len(payload) > 0 {
		if conn.fillRcvBuffer(seq, payload) {
			conn.handleNewDataReceived()
		}
	}
}

func (h *Host) processStartedConnectionPacket(conn *Connection, srcPort uint16, seq, ack uint32) {
	if ack != conn.sndStartSeq {
		return
	}
	if !conn.allocateBuffers() {
		h.terminateConnection(conn)
		return
	}

	if conn.pendingElem != nil {
		h.startedConnections.Remove(conn.pendingElem)
		conn.pendingElem = nil
	}

	conn.state = StateConnected
	conn.remotePort = srcPort
	conn.rcvStartSeq = seq
	conn.rcvLastPacketTime = h.clock.NowMillis()

	conn.handleConnectionInit()
	// Owe the peer one packet, so a bare ACK confirms the handshake on this
	// tick even with no data queued; the accepting side stays in
	// StateConnectReceived(WhileStarted) until a confirming packet arrives.
	conn.sndMandatoryPackets = 1
	h.fireConnected(conn)
}

func (h *Host) processRendezvousConnectionPacket(conn *Connection, srcPort uint16, seq uint32) {
	h.logf("CONNECT received while dialing %s", conn.remoteAddress)

	if conn.pendingElem != nil {
		h.startedConnections.Remove(conn.pendingElem)
		conn.pendingElem = nil
	}

	conn.state = StateConnectReceivedWhileStarted
	conn.remotePort = srcPort
	conn.rcvStartSeq = seq
	conn.rcvLastPacketTime = h.clock.NowMillis()
}

func (h *Host) processIncomingConnectionInitialPacket(from Address, srcPort uint16, seq uint32) {
	conn := h.allocateConnection()
	if conn == nil {
		return
	}

	conn.pendingElem = h.incomingConnections.PushBack(conn)

	conn.state = StateConnectReceived
	conn.remoteAddress = from
	conn.remotePort = srcPort
	conn.rcvStartSeq = seq
	conn.rcvLastPacketTime = h.clock.NowMillis()
	// Back-date so processIncomingConnectionTick's retransmission-timeout
	// gate doesn't hold the first ACCEPT back a full
	// accept_retransmission_timeout; it should go out on the very next tick.
	conn.sndLastPacketTime = h.clock.NowMillis() - h.config.AcceptRetransmissionTimeoutMillis

	h.logf("CONNECT received from %s", from)
}

func (h *Host) processIncomingConnectionConfirmingPacket(conn *Connection, srcPort uint16, seq, ack uint32, data []byte) {
	if srcPort != conn.remotePort {
		return
	}
	if ack != conn.sndStartSeq {
		return
	}
	if !conn.allocateBuffers() {
		h.terminateConnection(conn)
		return
	}

	if len(data) > 0 {
		if !conn.fillRcvBuffer(seq, data) {
			return
		}
		conn.handleNewDataReceived()
	} else if seq != conn.rcvStartSeq {
		return
	}

	conn.rcvLastPacketTime = h.clock.NowMillis()
	conn.handleConnectionInit()

	if conn.state == StateConnectReceivedWhileStarted {
		conn.state = StateConnected
		h.fireConnected(conn)
		return
	}

	if conn.pendingElem != nil {
		h.incomingConnections.Remove(conn.pendingElem)
		conn.pendingElem = nil
	}
	conn.state = StateConnected
	h.fireIncomingConnection(conn)
}

func (h *Host) processIncomingConnectionPacket(from Address, srcPort uint16, seq uint32) {
	if conn := h.findActiveConnection(from, srcPort); conn != nil {
		conn.rcvLastPacketTime = h.clock.NowMillis()
		return
	}

	if conn := h.findStartedConnection(from); conn != nil {
		h.processRendezvousConnectionPacket(conn, srcPort, seq)
		return
	}

	h.processIncomingConnectionInitialPacket(from, srcPort, seq)
}

func (h *Host) findActiveConnection(remote Address, remotePort uint16) *Connection {
	for e := h.connections.Front(); e != nil; e = e.Next() {
		conn := e.Value.(*Connection)
		if conn.remotePort == remotePort && conn.remoteAddress.Equal(remote) {
			return conn
		}
	}
	return nil
}

func (h *Host) findStartedConnection(remote Address) *Connection {
	for e := h.startedConnections.Front(); e != nil; e = e.Next() {
		conn := e.Value.(*Connection)
		if conn.remoteAddress.Equal(remote) {
			return conn
		}
	}
	return nil
}

// getPortFromPool scans the dense port table for free ports and picks one
// at random among them, exactly as spo_internal_get_port_from_pool does;
// ports 0 and 65535 are never handed out (0 is reserved for CONNECT
// packets).
func (h *Host) getPortFromPool() uint16 {
	var available []uint16
	for port := 1; port < 65535; port++ {
		if h.byPort[port] == nil {
			available = append(available, uint16(port))
		}
	}
	if len(available) == 0 {
		return 0
	}
	return available[h.rand.Next()%uint32(len(available))]
}

func (h *Host) resetConnection(conn *Connection, port uint16) {
	isn := h.rand.Next()
	hostElem := conn.hostElem

	*conn = Connection{
		host:        h,
		state:       StateInit,
		createdTime: h.clock.NowMillis(),
		localPort:   port,
		sndStartSeq: isn,
		sndNextSeq:  isn,
		id:          newTraceID(),
		hostElem:    hostElem,
	}

	h.byPort[port] = conn
}

// reuseOldestConnection evicts the oldest still-handshaking incoming
// connection to free a port/slot under load, grounded on
// spo_internal_reuse_oldest_connection. Unlike the original, the evicted
// connection is fully unlinked from incomingConnections before reuse
// rather than left for a stale list entry to be cleaned up implicitly.
func (h *Host) reuseOldestConnection() *Connection {
	var oldest *Connection
	for e := h.incomingConnections.Front(); e != nil; e = e.Next() {
		conn := e.Value.(*Connection)
		if oldest == nil || seqLess(conn.createdTime, oldest.createdTime) {
			oldest = conn
		}
	}
	if oldest == nil {
		return nil
	}

	if oldest.pendingElem != nil {
		h.incomingConnections.Remove(oldest.pendingElem)
		oldest.pendingElem = nil
	}
	oldest.destroyBuffers()
	h.resetConnection(oldest, oldest.localPort)
	return oldest
}

func (h *Host) allocateConnection() *Connection {
	if h.connections.Len() >= int(h.config.MaxConnections) {
		return h.reuseOldestConnection()
	}

	port := h.getPortFromPool()
	if port == 0 {
		return h.reuseOldestConnection()
	}

	conn := &Connection{}
	h.resetConnection(conn, port)
	conn.hostElem = h.connections.PushBack(conn)
	return conn
}

// NewConnection starts dialing remote. The CONNECT packet itself is sent
// on the next MakeProgress tick, not synchronously here, so that all
// socket writes happen from the same single-threaded path.
func (h *Host) NewConnection(remote Address) *Connection {
	conn := h.allocateConnection()
	if conn == nil {
		return nil
	}

	conn.pendingElem = h.startedConnections.PushBack(conn)
	conn.state = StateConnectStarted
	conn.remoteAddress = remote
	// Back-date so processStartedConnectionTick's retransmission-timeout
	// gate doesn't hold the first CONNECT back a full
	// connect_retransmission_timeout; it should go out on the very next tick.
	conn.sndLastPacketTime = h.clock.NowMillis() - h.config.ConnectRetransmissionTimeoutMillis

	h.logf("CONNECT started to %s", remote)
	return conn
}

// CloseConnection tears a connection down on the caller's request. Unlike
// terminateConnection (used for internal failures/timeouts), this never
// fires a callback: the caller already knows it asked for this.
func (h *Host) CloseConnection(conn *Connection) {
	if conn.state == StateClosed {
		return
	}

	conn.state = StateClosed
	conn.destroyBuffers()
	h.byPort[conn.localPort] = nil

	if conn.pendingElem != nil {
		// pendingElem belongs to whichever list the connection was pending
		// on; List.Remove ignores an element of another list.
		h.startedConnections.Remove(conn.pendingElem)
		h.incomingConnections.Remove(conn.pendingElem)
		conn.pendingElem = nil
	}
	if conn.hostElem != nil {
		h.connections.Remove(conn.hostElem)
		conn.hostElem = nil
	}
}

// terminateConnection ends a connection because of an internal condition
// (handshake gave up, idle timeout fired) rather than a direct user
// request, firing whichever lifecycle callback fits the state it was in.
func (h *Host) terminateConnection(conn *Connection) {
	state := conn.state
	conn.state = StateClosed

	if conn.pendingElem != nil {
		switch state {
		case StateConnectStarted:
			h.startedConnections.Remove(conn.pendingElem)
		case StateConnectReceivedWhileStarted, StateConnectReceived:
			h.incomingConnections.Remove(conn.pendingElem)
		}
		conn.pendingElem = nil
	}

	switch state {
	case StateConnectStarted, StateConnectReceivedWhileStarted:
		h.fireUnableToConnect(conn)
		h.logf("unable to connect to %s", conn.remoteAddress)
	case StateConnected:
		h.fireConnectionLost(conn)
		h.logf("connection to %s lost", conn.remoteAddress)
	}

	conn.destroyBuffers()
	h.byPort[conn.localPort] = nil

	if conn.hostElem != nil {
		h.connections.Remove(conn.hostElem)
		conn.hostElem = nil
	}
}

func (h *Host) fireConnected(conn *Connection) {
	if h.callbacks.Connected != nil {
		h.callbacks.Connected(conn)
	}
}

func (h *Host) fireUnableToConnect(conn *Connection) {
	if h.callbacks.UnableToConnect != nil {
		h.callbacks.UnableToConnect(conn)
	}
}

func (h *Host) fireIncomingConnection(conn *Connection) {
	if h.callbacks.IncomingConnection != nil {
		h.callbacks.IncomingConnection(conn)
	}
}

func (h *Host) fireConnectionLost(conn *Connection) {
	if h.callbacks.ConnectionLost != nil {
		h.callbacks.ConnectionLost(conn)
	}
}

func (h *Host) fireIncomingData(conn *Connection, bytesReady uint32) {
	if h.callbacks.IncomingData != nil {
		h.callbacks.IncomingData(conn, bytesReady)
	}
}
