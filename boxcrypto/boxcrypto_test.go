package boxcrypto

import "testing"

func TestCalcPublicKeyMatchesGenerate(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	derived := CalcPublicKey(kp.Secret)
	if derived != kp.Public {
		t.Fatalf("derived public key does not match generated public key")
	}
}

func TestBeforeNMSymmetric(t *testing.T) {
	client, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate client: %v", err)
	}
	server, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate server: %v", err)
	}

	a := BeforeNM(server.Public, client.Secret)
	b := BeforeNM(client.Public, server.Secret)
	if a != b {
		t.Fatalf("beforenm(serverPub, clientSec) != beforenm(clientPub, serverSec)")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	client, _ := GenerateKeyPair()
	server, _ := GenerateKeyPair()

	var nonce [NonceSize]byte
	nonce[0] = 1

	plaintext := []byte("hello osdg")
	sealed := Seal(nil, plaintext, nonce, server.Public, client.Secret)

	opened, ok := Open(nil, sealed, nonce, client.Public, server.Secret)
	if !ok {
		t.Fatalf("open failed")
	}
	if string(opened) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q", opened)
	}
}

func TestSealOpenAfterNMRoundTrip(t *testing.T) {
	client, _ := GenerateKeyPair()
	server, _ := GenerateKeyPair()

	shared := BeforeNM(server.Public, client.Secret)
	sharedSrv := BeforeNM(client.Public, server.Secret)

	var nonce [NonceSize]byte
	nonce[3] = 9

	plaintext := []byte("after-nm payload")
	sealed := SealAfterNM(nil, plaintext, nonce, shared)

	opened, ok := OpenAfterNM(nil, sealed, nonce, sharedSrv)
	if !ok {
		t.Fatalf("open after nm failed")
	}
	if string(opened) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q", opened)
	}
}
