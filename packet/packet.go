// Package packet implements the OSDG wire codec: length-prefixed frames
// with a magic+command header, and the box payload layouts used by each
// handshake step (spec.md §4.1, §6).
//
// Two decryption layouts recur throughout the handshake:
//
//   - MESG-like (MESG, REDY): an 8-byte nonce tail outside the box, and a
//     box whose plaintext begins with 16 zero padding bytes followed by
//     the real body. The padding mirrors the NaCl zero-padding convention
//     the reference C implementation relies on (spec.md §9); this codec
//     keeps it as an explicit protocol-level field rather than a raw
//     crypto_box buffer trick, opening each box into a freshly allocated
//     slice to avoid the C original's in-place aliasing.
//   - COOK: a 16-byte long-term nonce tail outside the box, and a box
//     opened with the server's long-term public key and the client's
//     short-term secret key.
package packet

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Command is the 4-character ASCII command tag on every frame.
type Command [4]byte

// Command tags, per spec.md §3 (Packet in-memory view) and §6.
var (
	CmdWELC = Command{'W', 'E', 'L', 'C'}
	CmdHELO = Command{'H', 'E', 'L', 'O'}
	CmdCOOK = Command{'C', 'O', 'O', 'K'}
	CmdVOCH = Command{'V', 'O', 'C', 'H'}
	CmdREDY = Command{'R', 'E', 'D', 'Y'}
	CmdMESG = Command{'M', 'E', 'S', 'G'}
	CmdTELL = Command{'T', 'E', 'L', 'L'}
)

func (c Command) String() string { return string(c[:]) }

// Magic is the 2-byte magic value that precedes the command tag on every
// frame. spec.md §6 leaves the exact numeric value to be "inherited from
// an interop capture"; this is a placeholder that a real deployment
// against a specific grid must override by assigning Magic.
var Magic uint16 = 0x4F53

// HeaderLen is the size, in bytes, of the magic+command header that
// follows the 2-byte length prefix.
const HeaderLen = 2 + 4

// ErrBufferExceeded is returned when a declared frame length would not
// fit in the configured buffer size. spec.md §4.1: this must be detected
// before any crypto work is attempted.
var ErrBufferExceeded = fmt.Errorf("packet: declared frame size exceeds buffer size")

// Frame is a decoded, framed packet: the header plus the raw payload
// bytes that followed it (still encrypted, where applicable).
type Frame struct {
	Command Command
	Payload []byte
}

// Encode serializes cmd and payload into a length-prefixed frame:
// length:u16_be | magic:u16_be | command:[4]byte | payload.
func Encode(cmd Command, payload []byte) []byte {
	body := HeaderLen + len(payload)
	out := make([]byte, 2+body)
	binary.BigEndian.PutUint16(out[0:2], uint16(body))
	binary.BigEndian.PutUint16(out[2:4], Magic)
	copy(out[4:8], cmd[:])
	copy(out[8:], payload)
	return out
}

// ReadFrame reads exactly one frame from r, honoring bufferSize as the
// maximum permitted size of the whole frame including the 2-byte length
// field, so the length-prefixed body may be at most bufferSize-2 bytes
// ("size + 2 > bufferSize is fatal").
//
// ReadFrame always consumes the 2-byte length prefix first; if the
// declared size would overflow bufferSize, it returns ErrBufferExceeded
// without reading any further bytes from r, matching the invariant in
// spec.md §8 ("A packet with declared size > bufferSize always produces
// buffer_exceeded before any crypto work").
func ReadFrame(r io.Reader, bufferSize int) (Frame, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, fmt.Errorf("packet: read length prefix: %w", err)
	}
	size := binary.BigEndian.Uint16(lenBuf[:])

	if int(size)+2 > bufferSize {
		return Frame{}, ErrBufferExceeded
	}
	if int(size) < HeaderLen {
		return Frame{}, fmt.Errorf("packet: frame shorter than header (%d bytes)", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("packet: read frame body: %w", err)
	}

	magic := binary.BigEndian.Uint16(body[0:2])
	if magic != Magic {
		return Frame{}, fmt.Errorf("packet: bad magic %#x", magic)
	}

	var cmd Command
	copy(cmd[:], body[2:6])

	return Frame{Command: cmd, Payload: body[6:]}, nil
}
