package framing

import "encoding/binary"

// Frame is one decoded packet: a header-defined opcode/flags pair plus
// its payload (header bytes excluded).
type Frame struct {
	Opcode  uint16
	Flags   uint16
	Payload []byte
}

// HeaderCodec knows how to lay out and parse one variant's wire header.
// Two implementations exist: ClientCodec for the 4-byte
// {opcode u8; flags u8; length u16 LE} ship-facing header (spec.md §6),
// and GateCodec for the 8-byte
// {type u16 BE; flags u16 BE; length u16 BE; reserved u16} shipgate
// envelope header.
type HeaderCodec interface {
	Size() int
	// Encode writes the header for a packet whose total length
	// (header+payload, pre-padding) is totalLen, into hdr (len(hdr) ==
	// Size()).
	Encode(hdr []byte, opcode, flags uint16, totalLen int)
	// Decode parses a header already read into hdr (len(hdr) == Size()).
	Decode(hdr []byte) (opcode, flags uint16, totalLen int)
	// RoundUp rounds totalLen up to a multiple of Size(), matching
	// spec.md §4.1 step 2 (mask 0x10000 - hdrSize, high byte preserved).
	RoundUp(totalLen int) int
}

// ClientCodec is the 4-byte ship-facing header used for DC/PC/GC client
// traffic (spec.md §6).
type ClientCodec struct{}

func (ClientCodec) Size() int { return 4 }

func (ClientCodec) Encode(hdr []byte, opcode, flags uint16, totalLen int) {
	hdr[0] = byte(opcode)
	hdr[1] = byte(flags)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(totalLen))
}

func (ClientCodec) Decode(hdr []byte) (opcode, flags uint16, totalLen int) {
	opcode = uint16(hdr[0])
	flags = uint16(hdr[1])
	totalLen = int(binary.LittleEndian.Uint16(hdr[2:4]))
	return
}

func (c ClientCodec) RoundUp(totalLen int) int {
	hdrSize := c.Size()
	mask := 0x10000 - hdrSize
	return (totalLen + hdrSize - 1) & mask
}

// GateCodec is the 8-byte shipgate envelope header (spec.md §6).
type GateCodec struct{}

func (GateCodec) Size() int { return 8 }

func (GateCodec) Encode(hdr []byte, opcode, flags uint16, totalLen int) {
	binary.BigEndian.PutUint16(hdr[0:2], opcode)
	binary.BigEndian.PutUint16(hdr[2:4], flags)
	binary.BigEndian.PutUint16(hdr[4:6], uint16(totalLen))
	binary.BigEndian.PutUint16(hdr[6:8], 0)
}

func (GateCodec) Decode(hdr []byte) (opcode, flags uint16, totalLen int) {
	opcode = binary.BigEndian.Uint16(hdr[0:2])
	flags = binary.BigEndian.Uint16(hdr[2:4])
	totalLen = int(binary.BigEndian.Uint16(hdr[4:6]))
	return
}

func (c GateCodec) RoundUp(totalLen int) int {
	hdrSize := c.Size()
	mask := 0x10000 - hdrSize
	return (totalLen + hdrSize - 1) & mask
}
