package packet

import (
	"bytes"
	"testing"

	"github.com/albert-salai/opensdg-go/boxcrypto"
	"github.com/albert-salai/opensdg-go/wire"
)

func TestEncodeHeloPlaintextIsZero(t *testing.T) {
	serverKP, _ := boxcrypto.GenerateKeyPair()
	clientShortKP, _ := boxcrypto.GenerateKeyPair()

	payload := EncodeHelo(clientShortKP.Public, 1, serverKP.Public, clientShortKP.Secret)
	if len(payload) != heloPayloadLen {
		t.Fatalf("unexpected HELO payload length: %d", len(payload))
	}

	gotTail := wire.LoadU64BE(payload[boxcrypto.KeySize : boxcrypto.KeySize+8])
	if gotTail != 1 {
		t.Fatalf("nonce tail: got %d want 1", gotTail)
	}

	nonce := wire.BuildShortNonce(wire.ClientHelloNoncePrefix, 1)
	box := payload[boxcrypto.KeySize+8:]
	plain, ok := boxcrypto.Open(nil, box, nonce, clientShortKP.Public, serverKP.Secret)
	if !ok {
		t.Fatalf("server could not open HELO box")
	}
	for i, b := range plain {
		if b != 0 {
			t.Fatalf("HELO plaintext byte %d not zero: %x", i, b)
		}
	}
}

func TestCookRoundTrip(t *testing.T) {
	serverLongKP, _ := boxcrypto.GenerateKeyPair()
	clientShortKP, _ := boxcrypto.GenerateKeyPair()
	serverShortKP, _ := boxcrypto.GenerateKeyPair()

	var cookie [96]byte
	for i := range cookie {
		cookie[i] = byte(i)
	}

	plain := append(append([]byte{}, serverShortKP.Public[:]...), cookie[:]...)

	var tail [16]byte
	tail[0] = 7
	nonce := wire.BuildLongNonce(wire.CookieLongNoncePrefix, tail[:])
	box := boxcrypto.Seal(nil, plain, nonce, clientShortKP.Public, serverLongKP.Secret)

	payload := append(append([]byte{}, tail[:]...), box...)

	gotShort, gotCookie, err := DecodeCook(payload, serverLongKP.Public, clientShortKP.Secret)
	if err != nil {
		t.Fatalf("DecodeCook: %v", err)
	}
	if gotShort != serverShortKP.Public {
		t.Fatalf("server short-term pubkey mismatch")
	}
	if gotCookie != cookie {
		t.Fatalf("cookie mismatch")
	}
}

func TestVochWithCertificate(t *testing.T) {
	clientLongKP, _ := boxcrypto.GenerateKeyPair()
	clientShortKP, _ := boxcrypto.GenerateKeyPair()
	serverLongKP, _ := boxcrypto.GenerateKeyPair()
	serverShortKP, _ := boxcrypto.GenerateKeyPair()

	outerSessionKey := boxcrypto.BeforeNM(serverShortKP.Public, clientShortKP.Secret)
	outerSessionKeyServer := boxcrypto.BeforeNM(clientShortKP.Public, serverShortKP.Secret)

	var innerTail [16]byte
	innerTail[1] = 0xAB

	var cert [32]byte // zero-filled per spec.md default

	payload := EncodeVoch(VouchParams{
		Counter:              1,
		ClientLongTermPub:    clientLongKP.Public,
		ClientLongTermSecret: clientLongKP.Secret,
		ClientShortTermPub:   clientShortKP.Public,
		ServerLongTermPub:    serverLongKP.Public,
		OuterSessionKey:      outerSessionKey,
		InnerNonceTail:       innerTail,
		HaveCertificate:      true,
		Certificate:          cert,
	})

	tail := payload[:8]
	if wire.LoadU64BE(tail) != 1 {
		t.Fatalf("outer nonce tail mismatch")
	}

	outerNonce := wire.BuildShortNonce(wire.ClientVouchNoncePrefix, 1)
	outerPlain, ok := boxcrypto.OpenAfterNM(nil, payload[8:], outerNonce, outerSessionKeyServer)
	if !ok {
		t.Fatalf("server could not open VOCH outer box")
	}

	off := mesgOuterPadLen
	gotLongPub := outerPlain[off : off+boxcrypto.KeySize]
	if !bytes.Equal(gotLongPub, clientLongKP.Public[:]) {
		t.Fatalf("client long-term pubkey mismatch")
	}
	off += boxcrypto.KeySize

	gotInnerTail := outerPlain[off : off+16]
	if !bytes.Equal(gotInnerTail, innerTail[:]) {
		t.Fatalf("inner nonce tail mismatch")
	}
	off += 16

	innerBox := outerPlain[off : off+vouchInnerBoxLen]
	innerNonce := wire.BuildLongNonce(wire.VouchLongNoncePrefix, innerTail[:])
	innerPlain, ok := boxcrypto.Open(nil, innerBox, innerNonce, clientLongKP.Public, serverLongKP.Secret)
	if !ok {
		t.Fatalf("server could not open VOCH inner box")
	}
	if !bytes.Equal(innerPlain[:boxcrypto.KeySize], clientShortKP.Public[:]) {
		t.Fatalf("vouched short-term pubkey mismatch")
	}
	off += vouchInnerBoxLen

	certRecord := outerPlain[off:]
	if certRecord[0] != byte(len(certPrefix)) {
		t.Fatalf("cert prefix_len mismatch")
	}
	if string(certRecord[1:1+len(certPrefix)]) != certPrefix {
		t.Fatalf("cert prefix mismatch: %q", certRecord[1:1+len(certPrefix)])
	}
	valueLenOff := 1 + len(certPrefix)
	if certRecord[valueLenOff] != 32 {
		t.Fatalf("cert value_len mismatch")
	}
	gotCert := certRecord[valueLenOff+1 : valueLenOff+1+32]
	for _, b := range gotCert {
		if b != 0 {
			t.Fatalf("default certificate value not zero")
		}
	}
}

func TestVochWithoutCertificateOmitsRecord(t *testing.T) {
	clientLongKP, _ := boxcrypto.GenerateKeyPair()
	clientShortKP, _ := boxcrypto.GenerateKeyPair()
	serverLongKP, _ := boxcrypto.GenerateKeyPair()
	serverShortKP, _ := boxcrypto.GenerateKeyPair()

	outerSessionKeyServer := boxcrypto.BeforeNM(clientShortKP.Public, serverShortKP.Secret)
	outerSessionKey := boxcrypto.BeforeNM(serverShortKP.Public, clientShortKP.Secret)

	var innerTail [16]byte

	payload := EncodeVoch(VouchParams{
		Counter:              1,
		ClientLongTermPub:    clientLongKP.Public,
		ClientLongTermSecret: clientLongKP.Secret,
		ClientShortTermPub:   clientShortKP.Public,
		ServerLongTermPub:    serverLongKP.Public,
		OuterSessionKey:      outerSessionKey,
		InnerNonceTail:       innerTail,
		HaveCertificate:      false,
	})

	outerNonce := wire.BuildShortNonce(wire.ClientVouchNoncePrefix, 1)
	outerPlain, ok := boxcrypto.OpenAfterNM(nil, payload[8:], outerNonce, outerSessionKeyServer)
	if !ok {
		t.Fatalf("server could not open VOCH outer box")
	}

	wantLen := mesgOuterPadLen + boxcrypto.KeySize + 16 + vouchInnerBoxLen
	if len(outerPlain) != wantLen {
		t.Fatalf("expected no certificate record appended: got %d bytes, want %d", len(outerPlain), wantLen)
	}
}

func TestMesgRoundTrip(t *testing.T) {
	var sessionKey [boxcrypto.KeySize]byte
	sessionKey[0] = 0x42

	body := []byte("peer payload")
	payload := EncodeMesg(body, sessionKey, 7)

	got, err := DecodeMesg(payload, sessionKey, 7)
	if err != nil {
		t.Fatalf("DecodeMesg: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("body mismatch: got %q", got)
	}
}

func TestMesgNonceMismatchRejected(t *testing.T) {
	var sessionKey [boxcrypto.KeySize]byte
	payload := EncodeMesg([]byte("x"), sessionKey, 5)

	if _, err := DecodeMesg(payload, sessionKey, 6); err == nil {
		t.Fatalf("expected error for nonce counter mismatch")
	}
}
