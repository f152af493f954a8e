package transport

import "container/list"

// ConnState is the lifecycle stage of a Connection, mirroring
// spo_connection_state_t exactly: handshakes have distinct "I dialed" and
// "I was dialed" starting states because the rendezvous case (both sides
// dial each other at once) needs to tell them apart until the peer's
// confirming packet arrives.
type ConnState int

const (
	StateInit ConnState = iota
	StateConnectStarted
	StateConnectReceivedWhileStarted
	StateConnectReceived
	StateConnected
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnectStarted:
		return "connect_started"
	case StateConnectReceivedWhileStarted:
		return "connect_received_while_started"
	case StateConnectReceived:
		return "connect_received"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type recoveryMode int

const (
	recoveryOff recoveryMode = iota
	recoveryByLoss
	recoveryByTimeout
)

// Callbacks mirrors spo_callbacks_t: the five lifecycle events a Host
// reports through MakeProgress. Any field left nil is simply not called.
type Callbacks struct {
	UnableToConnect    func(*Connection) // dialed connection never got an ACCEPT
	Connected          func(*Connection) // handshake completed
	IncomingConnection func(*Connection) // remote party dialed us
	IncomingData       func(conn *Connection, bytesReady uint32)
	ConnectionLost     func(*Connection) // established connection timed out
}

// Connection is one logical byte stream, identified on the wire by a
// 16-bit local port scoped to its Host. Apart from id and the two list
// elements, every field below has a direct counterpart in
// spo_connection_data_t; the split between receive-side and
// send-side state plus the congestion-control block is kept the same way.
type Connection struct {
	host            *Host
	state           ConnState
	remoteAddress   Address
	createdTime     uint32
	localPort       uint16
	remotePort      uint16
	connectAttempts uint8
	id              traceID

	hostElem    *list.Element // element in host.connections
	pendingElem *list.Element // element in host.startedConnections or host.incomingConnections

	rcvBuf            []byte
	rcvPackets        rangeSet
	rcvBytesReady     uint32
	rcvStartSeq       uint32
	rcvLastPacketTime uint32

	sndBuf              []byte
	sndAckedPackets     rangeSet
	sndBufBytes         uint32
	sndStartSeq         uint32
	sndNextSeq          uint32
	sndLastPacketTime   uint32
	sndMandatoryPackets uint8

	sndDuplicateAcks           uint8
	sndMandatoryPacketsSkipped uint8
	sndRecoveryMode            recoveryMode
	sndCwndBytes               uint32
	sndSsthreshBytes           uint32
	sndLastDataSentTime        uint32
	sndRetransmitNextSeq       uint32
	sndRecoveryPointSeq        uint32
	sndRetransmitRescueSeq     uint32
}

// State returns the connection's current lifecycle stage.
func (c *Connection) State() ConnState {
	return c.state
}

// RemoteAddress returns the peer address and true once the connection has
// completed its handshake; the original only considers this meaningful for
// SPO_CONNECTION_STATE_CONNECTED.
func (c *Connection) RemoteAddress() (Address, bool) {
	if c.state != StateConnected {
		return Address{}, false
	}
	return c.remoteAddress, true
}

// TraceID is a stable per-connection identifier for log/metric
// correlation, unaffected by local port recycling.
func (c *Connection) TraceID() string {
	return string(c.id)
}

// Send appends data to the connection's outgoing buffer and returns how
// many bytes were accepted. Fewer than len(data) bytes (or zero) means the
// buffer is full or the connection isn't established yet; the caller is
// expected to retry the remainder later, exactly as spo_send's contract
// describes.
func (c *Connection) Send(data []byte) uint32 {
	if c.state != StateConnected {
		return 0
	}

	maxBytesToSend := c.host.config.ConnectionBufSize - c.sndBufBytes
	if maxBytesToSend == 0 {
		return 0
	}

	bytesToSend := uint32(len(data))
	if bytesToSend > maxBytesToSend {
		bytesToSend = maxBytesToSend
	}

	c.sndBuf = append(c.sndBuf, data[:bytesToSend]...)
	c.sndBufBytes += bytesToSend
	return bytesToSend
}

// Read copies ready, in-order bytes into buf and slides the receive
// buffer forward, returning how many bytes were copied.
func (c *Connection) Read(buf []byte) uint32 {
	if c.state != StateConnected || c.rcvBytesReady == 0 {
		return 0
	}

	bytesToRead := c.rcvBytesReady
	if uint32(len(buf)) < bytesToRead {
		bytesToRead = uint32(len(buf))
	}

	copy(buf, c.rcvBuf[:bytesToRead])
	copy(c.rcvBuf, c.rcvBuf[bytesToRead:])
	c.rcvStartSeq += bytesToRead
	c.rcvBytesReady -= bytesToRead

	return bytesToRead
}

// Close tears the connection down through its owning Host.
func (c *Connection) Close() {
	c.host.CloseConnection(c)
}

func (c *Connection) allocateBuffers() bool {
	c.rcvBuf = make([]byte, c.host.config.ConnectionBufSize)
	c.sndBuf = nil
	return true
}

func (c *Connection) destroyBuffers() {
	c.rcvPackets = rangeSet{}
	c.sndAckedPackets = rangeSet{}
	c.rcvBuf = nil
	c.sndBuf = nil
}
