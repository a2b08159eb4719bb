package utcp

import "encoding/binary"

// Flags are the control bits carried in a segment's ctl field.
type Flags uint16

const (
	FlagSYN Flags = 1 << iota
	FlagACK
	FlagFIN
	FlagRST
)

// knownFlags is the mask of bits a conforming peer may set. Anything
// outside it makes a segment invalid.
const knownFlags = FlagSYN | FlagACK | FlagFIN | FlagRST

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

func (f Flags) String() string {
	if f == 0 {
		return "-"
	}
	s := ""
	for _, b := range []struct {
		bit Flags
		c   byte
	}{{FlagSYN, 'S'}, {FlagACK, 'A'}, {FlagFIN, 'F'}, {FlagRST, 'R'}} {
		if f.has(b.bit) {
			s += string(b.c)
		}
	}
	return s
}

// HeaderLen is the fixed wire size of a segment header, in bytes:
// src(2) + dst(2) + seq(4) + ack(4) + wnd(2) + ctl(2).
const HeaderLen = 16

// Header is the parsed form of the fixed 16-byte segment header. Aux
// is carried in memory only; it has no wire representation.
type Header struct {
	Src seq16
	Dst seq16
	Seq seq
	Ack seq
	Wnd uint16
	Ctl Flags
	Aux uint16
}

// seq16 is a 16-bit connection endpoint identifier. It is not part of
// the 32-bit sequence space; the distinct name keeps the two from
// being accidentally interchanged.
type seq16 = uint16

// PayloadLen, when computed by the caller from the datagram length,
// is not stored on Header; callers derive it as len(datagram)-HeaderLen.

// packHeader writes h's wire fields into the first HeaderLen bytes of
// buf, which must be at least HeaderLen bytes long. Fields are written
// in the host's native byte order, so peers of differing endianness
// cannot interoperate. That is a known limitation of the wire format.
func packHeader(buf []byte, h Header) {
	_ = buf[HeaderLen-1]
	binary.NativeEndian.PutUint16(buf[0:2], h.Src)
	binary.NativeEndian.PutUint16(buf[2:4], h.Dst)
	binary.NativeEndian.PutUint32(buf[4:8], uint32(h.Seq))
	binary.NativeEndian.PutUint32(buf[8:12], uint32(h.Ack))
	binary.NativeEndian.PutUint16(buf[12:14], h.Wnd)
	binary.NativeEndian.PutUint16(buf[14:16], uint16(h.Ctl))
}

// parseHeader reads a Header from the first HeaderLen bytes of buf.
// It returns a BadMessage error if buf is short or carries flag bits
// outside the known set.
func parseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, newError(BadMessage, "segment shorter than header")
	}
	ctl := Flags(binary.NativeEndian.Uint16(buf[14:16]))
	if ctl&^knownFlags != 0 {
		return Header{}, newError(BadMessage, "unknown control bits set")
	}
	h := Header{
		Src: binary.NativeEndian.Uint16(buf[0:2]),
		Dst: binary.NativeEndian.Uint16(buf[2:4]),
		Seq: seq(binary.NativeEndian.Uint32(buf[4:8])),
		Ack: seq(binary.NativeEndian.Uint32(buf[8:12])),
		Wnd: binary.NativeEndian.Uint16(buf[12:14]),
		Ctl: ctl,
	}
	return h, nil
}

// segment is a fully decoded inbound datagram: header plus payload.
type segment struct {
	Header
	payload []byte
}

func (s segment) payloadLen() int { return len(s.payload) }

// buildSegment packs h and payload into a single datagram buffer
// ready to hand to the egress callback.
func buildSegment(h Header, payload []byte) []byte {
	buf := make([]byte, HeaderLen+len(payload))
	packHeader(buf, h)
	copy(buf[HeaderLen:], payload)
	return buf
}
