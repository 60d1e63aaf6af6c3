package gridproto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// EncodeMesgBody frames a MESG inner body as spec.md §6 describes:
// size:u16_be | type:u8 | message-bytes. The returned slice is the
// plaintext to hand to packet.EncodeMesg.
func EncodeMesgBody(msgType byte, message []byte) []byte {
	out := make([]byte, 2+1+len(message))
	binary.BigEndian.PutUint16(out[0:2], uint16(1+len(message)))
	out[2] = msgType
	copy(out[3:], message)
	return out
}

// DecodeMesgBody parses a decrypted MESG plaintext body into its type tag
// and message bytes.
func DecodeMesgBody(body []byte) (msgType byte, message []byte, err error) {
	if len(body) < 3 {
		return 0, nil, fmt.Errorf("gridproto: MESG body too short (%d bytes)", len(body))
	}
	size := binary.BigEndian.Uint16(body[0:2])
	if int(size) != len(body)-2 {
		return 0, nil, fmt.Errorf("gridproto: MESG body size mismatch: header says %d, have %d", size, len(body)-2)
	}
	return body[2], body[3:], nil
}

// DataPacket is the unencrypted forwarding envelope carried outside MESG
// (spec.md §6): a 2-byte big-endian size prefix followed by that many
// bytes of data, where the data's first byte is one of the
// MsgForward{Hold,Remote,Reply,Error} tags.
type DataPacket struct {
	Type byte
	Data []byte
}

// Encode serializes a DataPacket.
func (d DataPacket) Encode() []byte {
	out := make([]byte, 2+1+len(d.Data))
	binary.BigEndian.PutUint16(out[0:2], uint16(1+len(d.Data)))
	out[2] = d.Type
	copy(out[3:], d.Data)
	return out
}

// ReadDataPacket reads one DataPacket-framed message from r.
func ReadDataPacket(r io.Reader) (DataPacket, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return DataPacket{}, fmt.Errorf("gridproto: read DataPacket length: %w", err)
	}
	size := binary.BigEndian.Uint16(lenBuf[:])
	if size < 1 {
		return DataPacket{}, fmt.Errorf("gridproto: DataPacket too short")
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return DataPacket{}, fmt.Errorf("gridproto: read DataPacket body: %w", err)
	}

	return DataPacket{Type: body[0], Data: body[1:]}, nil
}
