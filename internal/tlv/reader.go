// Package tlv provides bounds-checked readers for the two TLV encodings used
// by link-layer discovery protocols: the CDP form (2-byte type, 2-byte length
// that includes the 4-byte header itself) and the LLDP form (a packed 2-byte
// header holding a 7-bit type and 9-bit length).
//
// Both readers follow the bufio.Scanner shape: Next advances and reports
// whether a field was produced, Err explains why iteration stopped. A length
// that claims more bytes than remain in the buffer is a decode error, never a
// panic, and fields already produced stay valid.
package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrTruncated reports a TLV whose declared length runs past the end of
	// the buffer. Adversarial frames hit this constantly; callers keep
	// whatever was decoded before it.
	ErrTruncated = errors.New("tlv: declared length exceeds remaining buffer")

	// ErrBadLength reports a CDP TLV whose total length is smaller than its
	// own 4-byte header.
	ErrBadLength = errors.New("tlv: declared length smaller than header")
)

// TLV is one decoded type-length-value field. Value aliases the input buffer;
// callers that retain it past the buffer's lifetime must copy.
type TLV struct {
	Type  uint16
	Value []byte
}

// CDPReader iterates the TLV list of a CDP payload.
type CDPReader struct {
	buf []byte
	off int
	cur TLV
	err error
}

// NewCDPReader returns a reader positioned at the first TLV of buf.
func NewCDPReader(buf []byte) *CDPReader {
	return &CDPReader{buf: buf}
}

// Next advances to the next TLV. It returns false at end-of-buffer or on the
// first malformed field; Err distinguishes the two.
func (r *CDPReader) Next() bool {
	if r.err != nil || r.off >= len(r.buf) {
		return false
	}
	rest := r.buf[r.off:]
	if len(rest) < 4 {
		r.err = fmt.Errorf("%w: %d trailing bytes", ErrTruncated, len(rest))
		return false
	}
	typ := binary.BigEndian.Uint16(rest[0:2])
	length := int(binary.BigEndian.Uint16(rest[2:4]))
	if length < 4 {
		r.err = fmt.Errorf("%w: type 0x%04x length %d", ErrBadLength, typ, length)
		return false
	}
	if length > len(rest) {
		r.err = fmt.Errorf("%w: type 0x%04x wants %d of %d", ErrTruncated, typ, length, len(rest))
		return false
	}
	r.cur = TLV{Type: typ, Value: rest[4:length]}
	r.off += length
	return true
}

// TLV returns the field produced by the last successful Next.
func (r *CDPReader) TLV() TLV { return r.cur }

// Err returns the decode error that stopped iteration, or nil for a clean
// end-of-buffer.
func (r *CDPReader) Err() error { return r.err }

// LLDPReader iterates the TLV list of an LLDPDU. Iteration stops at the
// End-of-LLDPDU sentinel (type 0, length 0) even if buffer bytes remain.
type LLDPReader struct {
	buf  []byte
	off  int
	cur  TLV
	err  error
	done bool
}

// NewLLDPReader returns a reader positioned at the first TLV of buf.
func NewLLDPReader(buf []byte) *LLDPReader {
	return &LLDPReader{buf: buf}
}

// Next advances to the next TLV, returning false at the End-of-LLDPDU
// sentinel, at end-of-buffer, or on the first malformed field.
func (r *LLDPReader) Next() bool {
	if r.err != nil || r.done || r.off >= len(r.buf) {
		return false
	}
	rest := r.buf[r.off:]
	if len(rest) < 2 {
		r.err = fmt.Errorf("%w: %d trailing bytes", ErrTruncated, len(rest))
		return false
	}
	header := binary.BigEndian.Uint16(rest[0:2])
	typ := header >> 9
	length := int(header & 0x1ff)
	if typ == 0 {
		r.done = true
		return false
	}
	if 2+length > len(rest) {
		r.err = fmt.Errorf("%w: type %d wants %d of %d", ErrTruncated, typ, length, len(rest)-2)
		return false
	}
	r.cur = TLV{Type: typ, Value: rest[2 : 2+length]}
	r.off += 2 + length
	return true
}

// TLV returns the field produced by the last successful Next.
func (r *LLDPReader) TLV() TLV { return r.cur }

// Err returns the decode error that stopped iteration, or nil if iteration
// ended at the sentinel or end-of-buffer.
func (r *LLDPReader) Err() error { return r.err }
