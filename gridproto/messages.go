package gridproto

import "fmt"

// MESG inner-body message type tags (spec.md §6). Exact values beyond
// those spec.md names must come from an interop capture; these are
// placeholders a real deployment overrides to match its grid.
const (
	MsgProtocolVersion byte = 0x01
	MsgPeerReply       byte = 0x03

	MsgForwardHold   byte = 0x0F
	MsgForwardRemote byte = 0x10
	MsgForwardReply  byte = 0x11
	MsgForwardError  byte = 0x12
)

// ForwardErrorCode enumerates the grid's forwarding failure reasons
// (spec.md §4.3 state table).
type ForwardErrorCode uint32

const (
	ForwardErrorServerError ForwardErrorCode = 1
	ForwardErrorPeerTimeout ForwardErrorCode = 2
)

// ForwardReplySignature is the constant signature value the forwarding
// handshake expects in a FORWARD_REPLY (spec.md §4.3 state table).
const ForwardReplySignature = "MDG-SIG-PLACEHOLDER"

// ProtocolVersion is the grid-mode MESG body exchanged to agree on the
// control-protocol version (spec.md §6, §4.3).
type ProtocolVersion struct {
	Magic uint32
	Major uint32
	Minor uint32
}

// Marshal encodes v using protobuf-style tag/varint framing.
func (v ProtocolVersion) Marshal() []byte {
	var buf []byte
	buf = putUint32Field(buf, 1, v.Magic)
	buf = putUint32Field(buf, 2, v.Major)
	buf = putUint32Field(buf, 3, v.Minor)
	return buf
}

// UnmarshalProtocolVersion decodes a ProtocolVersion message body.
func UnmarshalProtocolVersion(buf []byte) (ProtocolVersion, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return ProtocolVersion{}, fmt.Errorf("gridproto: ProtocolVersion: %w", err)
	}
	var v ProtocolVersion
	for _, f := range fields {
		switch f.num {
		case 1:
			v.Magic = uint32(f.varint)
		case 2:
			v.Major = uint32(f.varint)
		case 3:
			v.Minor = uint32(f.varint)
		}
	}
	return v, nil
}

// PeerReply is dispatched to the grid Connection's addressed Peer by id
// (spec.md §4.6, §4.9 design note on (grid_uid, peer_id) tokens). TunnelId
// is the opaque forwarding token the grid assigns for the target peer.
type PeerReply struct {
	Id       uint32
	TunnelId []byte
}

// Marshal encodes p using protobuf-style tag/varint framing.
func (p PeerReply) Marshal() []byte {
	var buf []byte
	buf = putUint32Field(buf, 1, p.Id)
	if len(p.TunnelId) > 0 {
		buf = putBytesField(buf, 2, p.TunnelId)
	}
	return buf
}

// UnmarshalPeerReply decodes a PeerReply message body.
func UnmarshalPeerReply(buf []byte) (PeerReply, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return PeerReply{}, fmt.Errorf("gridproto: PeerReply: %w", err)
	}
	var p PeerReply
	for _, f := range fields {
		switch f.num {
		case 1:
			p.Id = uint32(f.varint)
		case 2:
			p.TunnelId = append([]byte{}, f.bytes...)
		}
	}
	return p, nil
}

// ForwardRemote requests that the grid forward the connection to the
// device identified by TunnelId (spec.md §4.3, "forwarding" state).
type ForwardRemote struct {
	TunnelId []byte
}

func (m ForwardRemote) Marshal() []byte {
	var buf []byte
	buf = putBytesField(buf, 1, m.TunnelId)
	return buf
}

func UnmarshalForwardRemote(buf []byte) (ForwardRemote, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return ForwardRemote{}, fmt.Errorf("gridproto: ForwardRemote: %w", err)
	}
	var m ForwardRemote
	for _, f := range fields {
		if f.num == 1 {
			m.TunnelId = append([]byte{}, f.bytes...)
		}
	}
	return m, nil
}

// ForwardReply confirms a forward is established; Signature must equal
// ForwardReplySignature for the handshake to proceed to TELL (spec.md
// §4.3 state table).
type ForwardReply struct {
	Signature string
}

func (m ForwardReply) Marshal() []byte {
	var buf []byte
	buf = putBytesField(buf, 1, []byte(m.Signature))
	return buf
}

func UnmarshalForwardReply(buf []byte) (ForwardReply, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return ForwardReply{}, fmt.Errorf("gridproto: ForwardReply: %w", err)
	}
	var m ForwardReply
	for _, f := range fields {
		if f.num == 1 {
			m.Signature = string(f.bytes)
		}
	}
	return m, nil
}

// ForwardError reports that forwarding failed (spec.md §4.3 state table,
// §7 server_error / peer_timeout).
type ForwardError struct {
	Code ForwardErrorCode
}

func (m ForwardError) Marshal() []byte {
	var buf []byte
	buf = putUint32Field(buf, 1, uint32(m.Code))
	return buf
}

func UnmarshalForwardError(buf []byte) (ForwardError, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return ForwardError{}, fmt.Errorf("gridproto: ForwardError: %w", err)
	}
	var m ForwardError
	for _, f := range fields {
		if f.num == 1 {
			m.Code = ForwardErrorCode(f.varint)
		}
	}
	return m, nil
}
