// Package boxcrypto binds the thin set of NaCl primitives the OSDG
// handshake needs. It does not reimplement any cryptography; it is a
// typed, panic-free wrapper over golang.org/x/crypto/nacl/box and
// curve25519, matching the primitive list in spec.md's Crypto primitives
// component.
package boxcrypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

const (
	// KeySize is the size, in bytes, of every Curve25519 key (public or
	// secret) used by OSDG.
	KeySize = 32
	// NonceSize is the size, in bytes, of every box nonce.
	NonceSize = 24
	// Overhead is the number of authentication-tag bytes a sealed box
	// adds over its plaintext.
	Overhead = box.Overhead
)

// KeyPair is a Curve25519 public/secret key pair.
type KeyPair struct {
	Public [KeySize]byte
	Secret [KeySize]byte
}

// GenerateKeyPair creates a fresh Curve25519 key pair using crypto/rand.
func GenerateKeyPair() (KeyPair, error) {
	pub, sec, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("boxcrypto: generate keypair: %w", err)
	}
	return KeyPair{Public: *pub, Secret: *sec}, nil
}

// CalcPublicKey derives the Curve25519 public key corresponding to secret,
// i.e. scalarmult_base(secret).
func CalcPublicKey(secret [KeySize]byte) [KeySize]byte {
	var pub [KeySize]byte
	curve25519.ScalarBaseMult(&pub, &secret)
	return pub
}

// RandomBytes fills buf with cryptographically secure random bytes.
func RandomBytes(buf []byte) error {
	_, err := rand.Read(buf)
	if err != nil {
		return fmt.Errorf("boxcrypto: randombytes: %w", err)
	}
	return nil
}

// BeforeNM precomputes the shared secret for a (peerPublic, ownSecret)
// pair, for use with the AfterNM family below.
func BeforeNM(peerPublic, ownSecret [KeySize]byte) [KeySize]byte {
	var shared [KeySize]byte
	box.Precompute(&shared, &peerPublic, &ownSecret)
	return shared
}

// Seal encrypts and authenticates plaintext under (peerPublic, ownSecret)
// and the given nonce, appending the result to out.
func Seal(out, plaintext []byte, nonce [NonceSize]byte, peerPublic, ownSecret [KeySize]byte) []byte {
	return box.Seal(out, plaintext, &nonce, &peerPublic, &ownSecret)
}

// Open authenticates and decrypts ciphertext sealed under (peerPublic,
// ownSecret) and the given nonce, appending the plaintext to out.
func Open(out, ciphertext []byte, nonce [NonceSize]byte, peerPublic, ownSecret [KeySize]byte) ([]byte, bool) {
	return box.Open(out, ciphertext, &nonce, &peerPublic, &ownSecret)
}

// SealAfterNM encrypts plaintext using a precomputed shared key (see
// BeforeNM), appending the result to out.
func SealAfterNM(out, plaintext []byte, nonce [NonceSize]byte, shared [KeySize]byte) []byte {
	return box.SealAfterPrecomputation(out, plaintext, &nonce, &shared)
}

// OpenAfterNM decrypts ciphertext using a precomputed shared key,
// appending the plaintext to out. Callers that want in-place decryption
// can pass ciphertext[:0] as out and ciphertext as ciphertext; the packet
// package does not do this and passes a nil out instead.
func OpenAfterNM(out, ciphertext []byte, nonce [NonceSize]byte, shared [KeySize]byte) ([]byte, bool) {
	return box.OpenAfterPrecomputation(out, ciphertext, &nonce, &shared)
}
