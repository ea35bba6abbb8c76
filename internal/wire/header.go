// Package wire implements the fixed 16-byte frame header shared by every
// request and response on an covrpc connection.
//
// Layout, little-endian on the wire:
//
//	offset  size  field
//	  0      8    req_id       (uint64)
//	  8      4    payload_len  (uint32)
//	 12      4    fn_id        (uint32)
//	 16     ...   payload      (payload_len bytes)
package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size, in bytes, of every frame header.
const HeaderSize = 16

// Header is the decoded form of a frame header.
type Header struct {
	ReqID      uint64
	PayloadLen uint32
	FnID       uint32
}

// Encode writes h into the first HeaderSize bytes of buf. buf must be at
// least HeaderSize bytes long.
func (h Header) Encode(buf []byte) {
	_ = buf[HeaderSize-1] // bounds check hint
	binary.LittleEndian.PutUint64(buf[0:8], h.ReqID)
	binary.LittleEndian.PutUint32(buf[8:12], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[12:16], h.FnID)
}

// DecodeHeader parses a header out of buf's first HeaderSize bytes.
// It does not validate payload_len against the completion length; callers
// must check that themselves since only they know nbytes.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("wire: short buffer for header: %d bytes", len(buf))
	}
	return Header{
		ReqID:      binary.LittleEndian.Uint64(buf[0:8]),
		PayloadLen: binary.LittleEndian.Uint32(buf[8:12]),
		FnID:       binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

// MakeReqID packs a per-connection sequence number and a slot index into a
// single correlation id: the high 32 bits carry seq, the low 32 bits carry
// slotIdx. slotIdx must fit in 32 bits (it is bounded by max_inflight).
func MakeReqID(seq uint64, slotIdx uint32) uint64 {
	return (seq << 32) | uint64(slotIdx)
}

// SlotIndex extracts the low 32 bits of a req_id, the slot index that owns
// the correlation record for this message.
func SlotIndex(reqID uint64) uint32 {
	return uint32(reqID & 0xFFFFFFFF)
}

// Seq extracts the high 32 bits of a req_id, the per-connection sequence
// number assigned at submission time.
func Seq(reqID uint64) uint32 {
	return uint32(reqID >> 32)
}
