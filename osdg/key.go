package osdg

import (
	"encoding/hex"
	"fmt"

	"github.com/albert-salai/opensdg-go/boxcrypto"
)

// CreatePrivateKey generates a fresh Curve25519 long-term secret key
// (spec.md §6, create_private_key).
func CreatePrivateKey() ([32]byte, error) {
	var sk [32]byte
	if err := boxcrypto.RandomBytes(sk[:]); err != nil {
		return sk, fmt.Errorf("osdg: create private key: %w", err)
	}
	return sk, nil
}

// CalcPublicKey derives the public key matching secret (spec.md §6,
// calc_public_key).
func CalcPublicKey(secret [32]byte) [32]byte {
	return boxcrypto.CalcPublicKey(secret)
}

// BinToHex renders b as canonical lowercase hex (spec.md §6, bin_to_hex).
// Adapted from the teacher's curvecp.EncodeKey, which does the same job
// in base32; this module's wire format and key files use hex instead.
func BinToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// HexToBin parses s as lowercase (or uppercase) hex (spec.md §6,
// hex_to_bin). Adapted from the teacher's curvecp.DecodeKey.
func HexToBin(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("osdg: decode hex: %w", err)
	}
	return b, nil
}

// KeyFromHex parses a 32-byte key encoded as hex, erroring on any other
// length the way curvecp.DecodeKey errors on a non-32-byte base32 decode.
func KeyFromHex(s string) ([32]byte, error) {
	var out [32]byte
	b, err := HexToBin(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("osdg: decoded key was wrong length (%d, want 32)", len(b))
	}
	copy(out[:], b)
	return out, nil
}
