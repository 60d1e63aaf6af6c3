// Package wire implements the big-endian wire conventions and nonce
// construction used by the OSDG handshake and framing layers.
package wire

import "encoding/binary"

// LoadU16BE reads a big-endian uint16 from the start of buf.
func LoadU16BE(buf []byte) uint16 {
	return binary.BigEndian.Uint16(buf)
}

// StoreU16BE writes x as a big-endian uint16 to the start of buf.
func StoreU16BE(buf []byte, x uint16) {
	binary.BigEndian.PutUint16(buf, x)
}

// LoadU64BE reads a big-endian uint64 from the start of buf.
func LoadU64BE(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}

// StoreU64BE writes x as a big-endian uint64 to the start of buf.
func StoreU64BE(buf []byte, x uint64) {
	binary.BigEndian.PutUint64(buf, x)
}

// EncodeU16BE returns x encoded as a big-endian 2-byte array.
func EncodeU16BE(x uint16) [2]byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], x)
	return b
}

// EncodeU64BE returns x encoded as a big-endian 8-byte array.
func EncodeU64BE(x uint64) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], x)
	return b
}

const (
	// ShortNoncePrefixLen is the length, in bytes, of the ASCII prefix used
	// in short-term (per-packet) nonces.
	ShortNoncePrefixLen = 16
	// LongNoncePrefixLen is the length, in bytes, of the ASCII prefix used
	// in long-term (handshake) nonces.
	LongNoncePrefixLen = 8
	// NonceLen is the length, in bytes, of every CurveCP-style nonce.
	NonceLen = 24
)

// Short-term nonce prefixes. The direction and packet type are encoded in
// the prefix so that a nonce can never be valid for more than one kind of
// box.
var (
	ClientHelloNoncePrefix = []byte("CurveCP-client-H")
	ServerCookieNoncePrefix = []byte("CurveCP-server-C")
	ClientVouchNoncePrefix = []byte("CurveCP-client-V")
	ServerReadyNoncePrefix = []byte("CurveCP-server-R")
	ClientMesgNoncePrefix  = []byte("CurveCP-client-M")
	ServerMesgNoncePrefix  = []byte("CurveCP-server-M")
)

// Long-term nonce prefixes, used for the COOK box (server-generated) and
// the VOCH box (client-generated).
var (
	CookieLongNoncePrefix = []byte("CurveCPK")
	VouchLongNoncePrefix  = []byte("CurveCPV")
)

// BuildShortNonce concatenates a 16-byte short-term prefix with an 8-byte
// big-endian counter to produce a 24-byte nonce. It is pure: the only
// varying input is the counter.
func BuildShortNonce(prefix []byte, counter uint64) [NonceLen]byte {
	if len(prefix) != ShortNoncePrefixLen {
		panic("wire: short nonce prefix must be 16 bytes")
	}
	var n [NonceLen]byte
	copy(n[:ShortNoncePrefixLen], prefix)
	tail := EncodeU64BE(counter)
	copy(n[ShortNoncePrefixLen:], tail[:])
	return n
}

// BuildLongNonce concatenates an 8-byte long-term prefix with 16 bytes of
// nonce tail (either freshly generated randomness, for VOCH, or an echoed
// value received from the peer, for COOK) to produce a 24-byte nonce.
func BuildLongNonce(prefix []byte, tail []byte) [NonceLen]byte {
	if len(prefix) != LongNoncePrefixLen {
		panic("wire: long nonce prefix must be 8 bytes")
	}
	if len(tail) != 16 {
		panic("wire: long nonce tail must be 16 bytes")
	}
	var n [NonceLen]byte
	copy(n[:LongNoncePrefixLen], prefix)
	copy(n[LongNoncePrefixLen:], tail)
	return n
}

// ZeroPad zeroes the first n bytes of buf in place. Used to satisfy the
// box_open_afternm/box_open convention that the leading padding bytes of a
// box be zero before decryption.
func ZeroPad(buf []byte, n int) {
	for i := 0; i < n && i < len(buf); i++ {
		buf[i] = 0
	}
}
