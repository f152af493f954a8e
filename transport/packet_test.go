package transport

import (
	"errors"
	"testing"

	"github.com/go-test/deep"
)

func TestPacketEncodeDecodeRoundTrip(t *testing.T) {
	p := &wirePacket{
		typ:     packetData,
		srcPort: 1000,
		dstPort: 2000,
		seq:     123456,
		ack:     654321,
		sacks: []packetRange{
			{start: 10, size: 5},
			{start: 20, size: 15},
		},
		payload: []byte("hello rudp"),
	}

	buf, err := p.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := decodePacket(buf)
	if err != nil {
		t.Fatalf("decodePacket: %v", err)
	}

	deep.CompareUnexportedFields = true
	defer func() { deep.CompareUnexportedFields = false }()

	if diff := deep.Equal(p, got); diff != nil {
		t.Errorf("round trip mismatch: %v", diff)
	}
}

func TestPacketEncodeDecodeNoSacksNoPayload(t *testing.T) {
	p := &wirePacket{typ: packetConnect, srcPort: 1, dstPort: 0, seq: 1, ack: 0}

	buf, err := p.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buf) != headerSize {
		t.Fatalf("expected a bare header to be %d bytes, got %d", headerSize, len(buf))
	}

	got, err := decodePacket(buf)
	if err != nil {
		t.Fatalf("decodePacket: %v", err)
	}
	if got.typ != p.typ || got.srcPort != p.srcPort || got.seq != p.seq {
		t.Errorf("decoded header mismatch: %+v", got)
	}
	if len(got.sacks) != 0 || len(got.payload) != 0 {
		t.Errorf("expected no sacks/payload, got %+v", got)
	}
}

func TestPacketEncodeTooManySacks(t *testing.T) {
	p := &wirePacket{sacks: make([]packetRange, maxSacks+1)}
	if _, err := p.encode(); !errors.Is(err, errTooManySacks) {
		t.Errorf("expected errTooManySacks, got %v", err)
	}
}

func TestPacketEncodeTooLarge(t *testing.T) {
	p := &wirePacket{payload: make([]byte, maxDatagramBytes)}
	if _, err := p.encode(); !errors.Is(err, errPacketTooLarge) {
		t.Errorf("expected errPacketTooLarge, got %v", err)
	}
}

func TestDecodePacketShortHeader(t *testing.T) {
	if _, err := decodePacket(make([]byte, headerSize-1)); !errors.Is(err, errShortPacket) {
		t.Errorf("expected errShortPacket, got %v", err)
	}
}

func TestDecodePacketDeclaresMoreSacksThanData(t *testing.T) {
	buf := make([]byte, headerSize)
	buf[1] = 1 // declares one sack entry with no bytes backing it
	if _, err := decodePacket(buf); !errors.Is(err, errShortPacket) {
		t.Errorf("expected errShortPacket for truncated sack data, got %v", err)
	}
}

func TestDecodePacketTooManySacksDeclared(t *testing.T) {
	buf := make([]byte, headerSize)
	buf[1] = maxSacks + 1
	if _, err := decodePacket(buf); !errors.Is(err, errTooManySacks) {
		t.Errorf("expected errTooManySacks, got %v", err)
	}
}
