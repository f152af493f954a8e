package transport

import "encoding/binary"

// packetType mirrors spo_packet_type_t: the six message kinds the header's
// type byte can name. sendPacket stamps every outgoing datagram as
// packetData, and dispatch on receipt goes by destination port, not by
// this field.
type packetType uint8

const (
	packetConnect packetType = iota
	packetAccept
	packetReset
	packetAck
	packetPing
	packetData
)

func (t packetType) String() string {
	switch t {
	case packetConnect:
		return "CONNECT"
	case packetAccept:
		return "ACCEPT"
	case packetReset:
		return "RESET"
	case packetAck:
		return "ACK"
	case packetPing:
		return "PING"
	case packetData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

const (
	maxSacks         = 8
	maxDatagramBytes = 1280
	headerSize       = 16
	sackEntrySize    = 8

	// mss is the maximum segment size the congestion controller reasons in,
	// SPO_NET_MAX_PACKET_SIZE - sizeof(header) per spec.md's glossary. It
	// does not deduct SACK table space: that clipping is purely a per-packet
	// concern, handled dynamically by sendPacket against however many SACKs
	// are actually being piggybacked on a given datagram.
	mss = maxDatagramBytes - headerSize
)

// wirePacket is the decoded form of one UDP datagram: a fixed 16-byte
// header, up to eight SACK ranges supplied by the receiver, and an
// optional data payload. Layout and field order are fixed by the wire
// format, not negotiable by either endpoint.
type wirePacket struct {
	typ     packetType
	srcPort uint16
	dstPort uint16
	seq     uint32
	ack     uint32
	sacks   []packetRange
	payload []byte
}

// encode serializes p using the teacher's BitStream technique of writing
// fixed-width big-endian fields directly with encoding/binary, rather than
// reflection-based marshaling. Returns an error if the result would not fit
// in one datagram.
func (p *wirePacket) encode() ([]byte, error) {
	if len(p.sacks) > maxSacks {
		return nil, errTooManySacks
	}
	size := headerSize + len(p.sacks)*sackEntrySize + len(p.payload)
	if size > maxDatagramBytes {
		return nil, errPacketTooLarge
	}

	buf := make([]byte, size)
	buf[0] = byte(p.typ)
	buf[1] = byte(len(p.sacks))
	binary.BigEndian.PutUint16(buf[2:4], 0) // reserved
	binary.BigEndian.PutUint16(buf[4:6], p.srcPort)
	binary.BigEndian.PutUint16(buf[6:8], p.dstPort)
	binary.BigEndian.PutUint32(buf[8:12], p.seq)
	binary.BigEndian.PutUint32(buf[12:16], p.ack)

	off := headerSize
	for _, s := range p.sacks {
		binary.BigEndian.PutUint32(buf[off:off+4], s.start)
		binary.BigEndian.PutUint32(buf[off+4:off+8], s.size)
		off += sackEntrySize
	}

	copy(buf[off:], p.payload)
	return buf, nil
}

// decodePacket parses a received datagram. It rejects anything too short
// for its declared SACK count or carrying more SACKs than the format
// allows, but otherwise trusts the network the way the original does (this
// is a transport, not an authenticated channel).
func decodePacket(buf []byte) (*wirePacket, error) {
	if len(buf) < headerSize {
		return nil, errShortPacket
	}

	p := &wirePacket{
		typ:     packetType(buf[0]),
		srcPort: binary.BigEndian.Uint16(buf[4:6]),
		dstPort: binary.BigEndian.Uint16(buf[6:8]),
		seq:     binary.BigEndian.Uint32(buf[8:12]),
		ack:     binary.BigEndian.Uint32(buf[12:16]),
	}

	sacks := int(buf[1])
	if sacks > maxSacks {
		return nil, errTooManySacks
	}

	off := headerSize
	need := off + sacks*sackEntrySize
	if len(buf) < need {
		return nil, errShortPacket
	}

	if sacks > 0 {
		p.sacks = make([]packetRange, sacks)
		for i := 0; i < sacks; i++ {
			p.sacks[i] = packetRange{
				start: binary.BigEndian.Uint32(buf[off : off+4]),
				size:  binary.BigEndian.Uint32(buf[off+4 : off+8]),
			}
			off += sackEntrySize
		}
	}

	if off < len(buf) {
		p.payload = append([]byte(nil), buf[off:]...)
	}

	return p, nil
}

type packetError string

func (e packetError) Error() string { return string(e) }

const (
	errShortPacket    packetError = "rudp: packet shorter than its declared header"
	errTooManySacks   packetError = "rudp: packet declares more SACKs than the format allows"
	errPacketTooLarge packetError = "rudp: encoded packet would exceed the datagram size limit"
)
