package osdg

import (
	"github.com/agl/ed25519"
)

// certificateMessage is the fixed context string signed by
// SignCertificateWithEd25519. The VOCH certificate KV record's value is
// only 32 bytes wide (spec.md §4.3), half an ed25519 signature, so this
// module carries the first half of the signature rather than the whole
// thing; a peer that wants to verify attestation needs the matching
// convention, which is outside this core's scope (see DESIGN.md).
var certificateMessage = []byte("osdg-device-certificate-v1")

// SignCertificateWithEd25519 returns a handshake.Engine.CertificateSigner
// backed by an ed25519 device key, restoring the "device attestation"
// hook spec.md §9 notes the original left as an open question and
// spec.md §4.3 otherwise zero-fills. priv is the 64-byte expanded
// ed25519 private key produced by ed25519.GenerateKey.
func SignCertificateWithEd25519(priv *[64]byte) func() [32]byte {
	return func() [32]byte {
		sig := ed25519.Sign(priv, certificateMessage)
		var out [32]byte
		copy(out[:], sig[:32])
		return out
	}
}
