// Package daqhdr implements the bit-exact 8-byte DAQEthHeader carried at
// the front of every detector UDP payload (spec.md §3). Rather than
// reinterpret-casting the payload slice the way the original DPDK plugin
// does (see original_source/plugins/NICReceiver.cpp), fields are read
// through explicit byte/bit accessors over a length-checked slice — the
// "safe parse primitive" called for in spec.md §9's re-architecture
// notes for the reinterpret_cast pattern.
package daqhdr

import "fmt"

// Size is the fixed wire size of the header, in bytes.
const Size = 8

// timestampBits is the width of the truncated on-wire timestamp field.
// The detector's hardware counter is a genuine 64-bit quantity (spec.md
// §3 calls it "64 bits split"), but only its low 24 bits are carried in
// this compact 8-byte header; nothing in this module reconstructs the
// full value. See DESIGN.md for this Open Question decision.
const timestampBits = 24
const timestampMask = (uint32(1) << timestampBits) - 1

// Header is the parsed, bit-exact view of a DAQEthHeader.
type Header struct {
	DetID     uint8  // 6 bits
	CrateID   uint16 // 10 bits
	SlotID    uint8  // 4 bits
	StreamID  uint8  // 8 bits
	SeqID     uint16 // 12 bits
	Timestamp uint32 // low 24 bits of the hardware counter
}

// SUID is the stream-unique identifier used by StreamDispatch: the
// (det_id, crate_id, slot_id, stream_id) tuple from spec.md §3.
type SUID struct {
	DetID    uint8
	CrateID  uint16
	SlotID   uint8
	StreamID uint8
}

func (s SUID) String() string {
	return fmt.Sprintf("det=%d/crate=%d/slot=%d/stream=%d", s.DetID, s.CrateID, s.SlotID, s.StreamID)
}

func (h Header) SUID() SUID {
	return SUID{DetID: h.DetID, CrateID: h.CrateID, SlotID: h.SlotID, StreamID: h.StreamID}
}

// Parse reads a Header from the first Size bytes of buf, and returns an
// error when buf is shorter than Size.
//
// Bit layout, MSB-first across the 8 bytes in network order:
//
//	det_id:6 | crate_id:10 | slot_id:4 | stream_id:8 | seq_id:12 | timestamp:24
func Parse(buf []byte) (Header, error) {
	if len(buf) < Size {
		return Header{}, fmt.Errorf("daqhdr: need %d bytes, got %d", Size, len(buf))
	}
	var word uint64
	for i := 0; i < Size; i++ {
		word = word<<8 | uint64(buf[i])
	}

	h := Header{
		DetID:     uint8((word >> 58) & 0x3F),
		CrateID:   uint16((word >> 48) & 0x3FF),
		SlotID:    uint8((word >> 44) & 0xF),
		StreamID:  uint8((word >> 36) & 0xFF),
		SeqID:     uint16((word >> 24) & 0xFFF),
		Timestamp: uint32(word & timestampMask),
	}
	return h, nil
}

// Put serializes h into buf[:Size] in the same bit layout Parse expects.
func Put(buf []byte, h Header) error {
	if len(buf) < Size {
		return fmt.Errorf("daqhdr: need %d bytes, got %d", Size, len(buf))
	}
	word := (uint64(h.DetID)&0x3F)<<58 |
		(uint64(h.CrateID)&0x3FF)<<48 |
		(uint64(h.SlotID)&0xF)<<44 |
		(uint64(h.StreamID)&0xFF)<<36 |
		(uint64(h.SeqID)&0xFFF)<<24 |
		uint64(h.Timestamp)&uint64(timestampMask)

	for i := Size - 1; i >= 0; i-- {
		buf[i] = byte(word)
		word >>= 8
	}
	return nil
}

// NextSeqID returns the sequence id expected to follow prev, wrapping
// modulo 4096 per spec.md §4.6.
func NextSeqID(prev uint16) uint16 {
	return (prev + 1) % 4096
}

// SeqSkip computes how many sequence ids were skipped between prev and
// observed: zero when observed is exactly the expected next id, N when N
// ids in a row went missing.
func SeqSkip(prev, observed uint16) uint16 {
	expected := NextSeqID(prev)
	return (observed - expected + 4096) % 4096
}
