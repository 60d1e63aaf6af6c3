package packet

import (
	"fmt"

	"github.com/albert-salai/opensdg-go/boxcrypto"
	"github.com/albert-salai/opensdg-go/wire"
)

const (
	weclPayloadLen = boxcrypto.KeySize

	heloZeroBodyLen = 64
	heloBoxLen      = heloZeroBodyLen + boxcrypto.Overhead // 80
	heloPayloadLen  = boxcrypto.KeySize + 8 + heloBoxLen

	cookPlaintextLen = boxcrypto.KeySize + 96 // server short-term pubkey + cookie
	cookBoxLen       = cookPlaintextLen + boxcrypto.Overhead
	cookPayloadLen   = 16 + cookBoxLen

	vouchInnerPlaintextLen = boxcrypto.KeySize + 32 // client short-term pubkey + zero pad
	vouchInnerBoxLen       = vouchInnerPlaintextLen + boxcrypto.Overhead // 80

	certPrefix       = "certificate"
	certRecordLen    = 1 + len(certPrefix) + 1 + 32
	mesgOuterPadLen  = 16
)

// DecodeWelc extracts the server long-term public key from a WELC
// payload.
func DecodeWelc(payload []byte) ([boxcrypto.KeySize]byte, error) {
	var pub [boxcrypto.KeySize]byte
	if len(payload) < weclPayloadLen {
		return pub, fmt.Errorf("packet: WELC payload too short (%d bytes)", len(payload))
	}
	copy(pub[:], payload[:weclPayloadLen])
	return pub, nil
}

// EncodeHelo builds a HELO payload: the client's short-term public key,
// an 8-byte nonce tail, and a box encrypting 64 zero bytes under
// (serverLongTermPub, clientShortTermSecret), proving the client
// possesses a fresh short-term key without yet revealing its identity.
func EncodeHelo(clientShortPub [boxcrypto.KeySize]byte, counter uint64, serverLongTermPub, clientShortSecret [boxcrypto.KeySize]byte) []byte {
	out := make([]byte, boxcrypto.KeySize+8)
	copy(out[:boxcrypto.KeySize], clientShortPub[:])
	tail := wire.EncodeU64BE(counter)
	copy(out[boxcrypto.KeySize:], tail[:])

	nonce := wire.BuildShortNonce(wire.ClientHelloNoncePrefix, counter)
	zero := make([]byte, heloZeroBodyLen)
	out = boxcrypto.Seal(out, zero, nonce, serverLongTermPub, clientShortSecret)
	return out
}

// DecodeCook opens a COOK payload and returns the server short-term
// public key and the opaque cookie that must be echoed back in VOCH.
// Per spec.md §4.1, the box is opened with the server's long-term public
// key and the client's short-term secret key.
func DecodeCook(payload []byte, serverLongTermPub, clientShortSecret [boxcrypto.KeySize]byte) (serverShortPub [boxcrypto.KeySize]byte, cookie [96]byte, err error) {
	if len(payload) < cookPayloadLen {
		err = fmt.Errorf("packet: COOK payload too short (%d bytes)", len(payload))
		return
	}

	tail := payload[:16]
	box := payload[16:cookPayloadLen]

	nonce := wire.BuildLongNonce(wire.CookieLongNoncePrefix, tail)
	plain, ok := boxcrypto.Open(nil, box, nonce, serverLongTermPub, clientShortSecret)
	if !ok {
		err = fmt.Errorf("packet: COOK box failed to open")
		return
	}
	if len(plain) != cookPlaintextLen {
		err = fmt.Errorf("packet: COOK plaintext wrong length (%d bytes)", len(plain))
		return
	}

	copy(serverShortPub[:], plain[:boxcrypto.KeySize])
	copy(cookie[:], plain[boxcrypto.KeySize:])
	return
}

// VouchParams bundles the key material EncodeVoch needs.
type VouchParams struct {
	Counter uint64 // client short-term session nonce counter for the outer box

	ClientLongTermPub    [boxcrypto.KeySize]byte
	ClientLongTermSecret [boxcrypto.KeySize]byte
	ClientShortTermPub   [boxcrypto.KeySize]byte

	ServerLongTermPub [boxcrypto.KeySize]byte

	// OuterSessionKey is beforenm(serverShortTermPub, clientShortTermSecret).
	OuterSessionKey [boxcrypto.KeySize]byte

	// InnerNonceTail is 16 bytes of fresh randomness used to seal the
	// inner vouch box; it is carried in the outer box's plaintext so the
	// server can reconstruct the nonce after opening the outer box.
	InnerNonceTail [16]byte

	// HaveCertificate, Certificate: grid mode only. When HaveCertificate
	// is false the certificate record is omitted entirely, matching
	// peer mode's haveCertificate == 0 behavior (spec.md §4.3).
	HaveCertificate bool
	Certificate     [32]byte
}

// EncodeVoch builds a VOCH payload per spec.md §4.1/§4.3: an 8-byte outer
// nonce tail, then a box (sealed with OuterSessionKey) whose plaintext is
// 16 bytes of zero padding, the client long-term public key, the inner
// vouch nonce's 16-byte tail, the inner vouch box, and (grid mode only)
// the certificate KV record.
func EncodeVoch(p VouchParams) []byte {
	innerPlain := make([]byte, vouchInnerPlaintextLen)
	copy(innerPlain[:boxcrypto.KeySize], p.ClientShortTermPub[:])
	// trailing 32 bytes remain zero: zero-padding convention (spec.md §2).

	innerNonce := wire.BuildLongNonce(wire.VouchLongNoncePrefix, p.InnerNonceTail[:])
	innerBox := boxcrypto.Seal(nil, innerPlain, innerNonce, p.ServerLongTermPub, p.ClientLongTermSecret)

	outerPlainLen := mesgOuterPadLen + boxcrypto.KeySize + 16 + vouchInnerBoxLen
	if p.HaveCertificate {
		outerPlainLen += certRecordLen
	}
	outerPlain := make([]byte, outerPlainLen)
	off := mesgOuterPadLen // leading bytes are zero padding
	off += copy(outerPlain[off:], p.ClientLongTermPub[:])
	off += copy(outerPlain[off:], p.InnerNonceTail[:])
	off += copy(outerPlain[off:], innerBox)
	if p.HaveCertificate {
		off += encodeCertRecord(outerPlain[off:], p.Certificate)
	}

	out := make([]byte, 8)
	tail := wire.EncodeU64BE(p.Counter)
	copy(out, tail[:])

	outerNonce := wire.BuildShortNonce(wire.ClientVouchNoncePrefix, p.Counter)
	out = boxcrypto.SealAfterNM(out, outerPlain, outerNonce, p.OuterSessionKey)
	return out
}

func encodeCertRecord(buf []byte, cert [32]byte) int {
	buf[0] = byte(len(certPrefix))
	off := 1
	off += copy(buf[off:], certPrefix)
	buf[off] = byte(len(cert))
	off++
	off += copy(buf[off:], cert[:])
	return off
}

// DecodeReady opens a REDY payload's box using the established session
// key and the server's per-connection nonce counter, and returns the
// plaintext body with the 16-byte padding prefix stripped. In grid mode
// the body is opaque beyond logging (spec.md §4.3 / §9); in peer mode the
// caller only needs REDY's presence.
func DecodeReady(payload []byte, sessionKey [boxcrypto.KeySize]byte, counter uint64) ([]byte, error) {
	return decodeMesgLike(payload, sessionKey, wire.ServerReadyNoncePrefix, counter)
}

// EncodeMesg seals body as an outbound MESG payload using the
// connection's session key and its own monotonically increasing nonce
// counter (spec.md §3 invariants).
func EncodeMesg(body []byte, sessionKey [boxcrypto.KeySize]byte, counter uint64) []byte {
	return encodeMesgLike(body, sessionKey, wire.ClientMesgNoncePrefix, counter)
}

// DecodeMesg opens an inbound MESG payload from the server.
func DecodeMesg(payload []byte, sessionKey [boxcrypto.KeySize]byte, counter uint64) ([]byte, error) {
	return decodeMesgLike(payload, sessionKey, wire.ServerMesgNoncePrefix, counter)
}

func encodeMesgLike(body []byte, sessionKey [boxcrypto.KeySize]byte, prefix []byte, counter uint64) []byte {
	plain := make([]byte, mesgOuterPadLen+len(body))
	copy(plain[mesgOuterPadLen:], body)

	out := make([]byte, 8)
	tail := wire.EncodeU64BE(counter)
	copy(out, tail[:])

	nonce := wire.BuildShortNonce(prefix, counter)
	out = boxcrypto.SealAfterNM(out, plain, nonce, sessionKey)
	return out
}

func decodeMesgLike(payload []byte, sessionKey [boxcrypto.KeySize]byte, prefix []byte, counter uint64) ([]byte, error) {
	if len(payload) < 8+boxcrypto.Overhead {
		return nil, fmt.Errorf("packet: payload too short for MESG-like frame (%d bytes)", len(payload))
	}

	tail := payload[:8]
	wireCounter := wire.LoadU64BE(tail)
	if wireCounter != counter {
		return nil, fmt.Errorf("packet: nonce counter mismatch: wire %d, expected %d", wireCounter, counter)
	}

	box := payload[8:]
	nonce := wire.BuildShortNonce(prefix, counter)
	plain, ok := boxcrypto.OpenAfterNM(nil, box, nonce, sessionKey)
	if !ok {
		return nil, fmt.Errorf("packet: MESG-like box failed to open")
	}
	if len(plain) < mesgOuterPadLen {
		return nil, fmt.Errorf("packet: MESG-like plaintext shorter than padding")
	}

	return plain[mesgOuterPadLen:], nil
}
