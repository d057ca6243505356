package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Packet header bytes. C3/C4 carry the same framing as C1/C2; they arrive
// here already decrypted.
const (
	HeaderC1 byte = 0xC1
	HeaderC2 byte = 0xC2
	HeaderC3 byte = 0xC3
	HeaderC4 byte = 0xC4
)

var (
	ErrShortPacket = errors.New("short packet")
	ErrBadHeader   = errors.New("unknown packet header")
)

// Packet is one framed server message.
type Packet struct {
	Header byte
	Code   byte
	// Data holds the bytes after the code.
	Data []byte
}

func headerLen(h byte) int {
	switch h {
	case HeaderC1, HeaderC3:
		return 2
	case HeaderC2, HeaderC4:
		return 3
	}
	return 0
}

// Parse frames raw. Trailing bytes beyond the declared size are ignored.
func Parse(raw []byte) (Packet, error) {
	if len(raw) == 0 {
		return Packet{}, ErrShortPacket
	}
	hl := headerLen(raw[0])
	if hl == 0 {
		return Packet{}, fmt.Errorf("%w: 0x%02X", ErrBadHeader, raw[0])
	}
	if len(raw) < hl+1 {
		return Packet{}, ErrShortPacket
	}
	var size int
	if hl == 2 {
		size = int(raw[1])
	} else {
		size = int(binary.BigEndian.Uint16(raw[1:3]))
	}
	if size < hl+1 || size > len(raw) {
		return Packet{}, fmt.Errorf("%w: declared %d, have %d", ErrShortPacket, size, len(raw))
	}
	return Packet{Header: raw[0], Code: raw[hl], Data: raw[hl+1 : size]}, nil
}

// Bytes re-encodes p with its header.
func (p Packet) Bytes() []byte {
	hl := headerLen(p.Header)
	if hl == 0 {
		return nil
	}
	size := hl + 1 + len(p.Data)
	out := make([]byte, size)
	out[0] = p.Header
	if hl == 2 {
		out[1] = byte(size)
	} else {
		binary.BigEndian.PutUint16(out[1:3], uint16(size))
	}
	out[hl] = p.Code
	copy(out[hl+1:], p.Data)
	return out
}

// Build frames a server message, choosing C2 when the payload does not fit C1.
func Build(code byte, data []byte) []byte {
	h := HeaderC1
	if len(data)+3 > 0xFF {
		h = HeaderC2
	}
	return Packet{Header: h, Code: code, Data: data}.Bytes()
}

const magicAttackResultSize = 9

// Normalize rewrites a long magic attack result to its canonical 9-byte
// form (some servers append extra fields). Other packets pass unchanged.
func Normalize(raw []byte) []byte {
	if len(raw) <= magicAttackResultSize || headerLen(raw[0]) != 2 || raw[2] != CodeMagicAttackResult {
		return raw
	}
	out := make([]byte, magicAttackResultSize)
	copy(out, raw[:magicAttackResultSize])
	out[1] = magicAttackResultSize
	return out
}
