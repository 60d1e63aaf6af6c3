// Package osdgconfig exposes the handful of library-wide tunables as
// cflag flags, the same way the teacher's packages (e.g. dbutil's pool
// size, xlogconfig's syslog settings) declare package-level configurable
// knobs rather than threading options through every constructor.
package osdgconfig

import "gopkg.in/hlandau/easyconfig.v1/cflag"

var flagGroup = cflag.NewGroup(nil, "osdg")

var (
	bufferSizeFlag = cflag.Int(flagGroup, "buffersize", 1536,
		"Largest inbound frame, in bytes, a connection accepts, including its 2-byte length prefix")

	dialRetriesFlag = cflag.Int(flagGroup, "dialretries", 3,
		"Number of further full passes over the endpoint list connect_to_grid makes after the first before giving up")

	dialRetryDelayMsFlag = cflag.Int(flagGroup, "dialretrydelayms", 250,
		"Initial backoff, in milliseconds, between passes over the endpoint list")

	protocolMagicFlag = cflag.Int(flagGroup, "protocolmagic", 0x4F53,
		"PROTO_MAGIC value advertised in the grid MSG_PROTOCOL_VERSION handshake")

	protocolMajorFlag = cflag.Int(flagGroup, "protocolmajor", 1,
		"Protocol major version advertised and required in MSG_PROTOCOL_VERSION")

	protocolMinorFlag = cflag.Int(flagGroup, "protocolminor", 0,
		"Protocol minor version advertised in MSG_PROTOCOL_VERSION")
)

// BufferSize returns the configured per-connection maximum inbound frame
// size.
func BufferSize() int { return bufferSizeFlag.Value() }

// DialRetries returns how many further full passes over the endpoint
// list connect_to_grid makes after the first one before giving up.
func DialRetries() int { return dialRetriesFlag.Value() }

// DialRetryDelayMs returns the initial backoff, in milliseconds, between
// successive passes over the endpoint list.
func DialRetryDelayMs() int { return dialRetryDelayMsFlag.Value() }

// ProtocolVersion returns the (magic, major, minor) triple this build of
// the library advertises and requires during grid handshakes.
func ProtocolVersion() (magic, major, minor uint32) {
	return uint32(protocolMagicFlag.Value()), uint32(protocolMajorFlag.Value()), uint32(protocolMinorFlag.Value())
}
