// Package handshake drives the CurveCP-derived state machine spec.md
// §4.3 describes: WELC -> HELO -> COOK -> VOCH -> REDY -> MESG, plus the
// FORWARD_HOLD/FORWARD_REPLY/FORWARD_ERROR pre-handshake substate used to
// reach a peer through a grid tunnel.
//
// The engine is purely reactive, the same shape the teacher's
// net/curvecp.Conn.handshake sequence follows internally (hello, then
// server-hello, then commence) but restructured here from a blocking
// call chain into two entry points the event loop drives: OnConnect,
// called once a Connection's socket becomes writable, and OnPacket/
// OnForwardPacket, called once the codec delivers a complete frame.
package handshake

import (
	"fmt"

	"github.com/albert-salai/opensdg-go/boxcrypto"
	"github.com/albert-salai/opensdg-go/conn"
	"github.com/albert-salai/opensdg-go/gridproto"
	"github.com/albert-salai/opensdg-go/log"
	"github.com/albert-salai/opensdg-go/packet"
)

// Engine holds the configuration the handshake needs but a Connection
// does not own itself: the protocol version this build advertises, the
// optional certificate-signing hook (spec.md §4.3 VOCH construction;
// SPEC_FULL.md's certificate signing hook supplement), and the
// upper-layer delivery callbacks spec.md §2's data-flow summary
// describes ("for peer tunnels: raw bytes; for grid: parsed
// control-protocol messages").
type Engine struct {
	Magic, Major, Minor uint32

	// CertificateSigner, if non-nil, is invoked to fill the VOCH
	// certificate record's 32-byte value in grid mode. When nil the
	// record is zero-filled, matching spec.md §4.3's stated default.
	CertificateSigner func() [32]byte

	// OnPeerMessage receives the raw decrypted MESG body of a connected
	// peer Connection.
	OnPeerMessage func(c *conn.Connection, data []byte)

	// OnGridMessage receives a connected grid Connection's MESG body
	// after MSG_PEER_REPLY has been intercepted and dispatched to its
	// waiting Peer; every other recognized or unrecognized type is
	// passed through here.
	OnGridMessage func(c *conn.Connection, msgType byte, message []byte)
}

// New returns an Engine advertising the given protocol version.
func New(magic, major, minor uint32) *Engine {
	return &Engine{Magic: magic, Major: major, Minor: minor}
}

// OnConnect is called once a Connection's socket becomes writable for
// the first time. It sends the handshake's opening message and advances
// status accordingly (spec.md §4.3 state table, "connecting" row).
func (e *Engine) OnConnect(c *conn.Connection) {
	if c.Mode() == conn.ModePeer && len(c.TunnelID()) > 0 {
		dp := gridproto.DataPacket{
			Type: gridproto.MsgForwardRemote,
			Data: gridproto.ForwardRemote{TunnelId: c.TunnelID()}.Marshal(),
		}
		c.EnqueueFrame(dp.Encode())
		c.SetStatus(conn.StatusForwarding)
		return
	}

	c.EnqueueFrame(packet.Encode(packet.CmdTELL, nil))
	c.SetStatus(conn.StatusHandshaking)
}

// OnForwardPacket handles one DataPacket received while c is in the
// "forwarding" pre-handshake substate (spec.md §4.3, FORWARD_HOLD/
// FORWARD_REPLY/FORWARD_ERROR rows).
func (e *Engine) OnForwardPacket(c *conn.Connection, dp gridproto.DataPacket) {
	switch dp.Type {
	case gridproto.MsgForwardHold:
		// Ignored; the grid is still looking for the peer.

	case gridproto.MsgForwardReply:
		reply, err := gridproto.UnmarshalForwardReply(dp.Data)
		if err != nil {
			c.SetResult(conn.ErrProtocol, 0)
			return
		}
		// spec.md §9: the dispatch must use equality, never assignment.
		if reply.Signature == gridproto.ForwardReplySignature {
			c.EnqueueFrame(packet.Encode(packet.CmdTELL, nil))
			c.SetStatus(conn.StatusHandshaking)
			return
		}
		c.SetResult(conn.ErrProtocol, 0)

	case gridproto.MsgForwardError:
		fe, err := gridproto.UnmarshalForwardError(dp.Data)
		if err != nil {
			c.SetResult(conn.ErrProtocol, 0)
			return
		}
		switch fe.Code {
		case gridproto.ForwardErrorPeerTimeout:
			c.SetResult(conn.ErrPeerTimeout, int(fe.Code))
		default:
			c.SetResult(conn.ErrServer, int(fe.Code))
		}

	default:
		log.Info(fmt.Sprintf("handshake: ignoring unknown forward message type %#x", dp.Type))
	}
}

// OnPacket handles one length-prefixed frame received while c is
// handshaking or connected (spec.md §4.3 state table).
func (e *Engine) OnPacket(c *conn.Connection, frame packet.Frame) {
	switch frame.Command {
	case packet.CmdWELC:
		e.handleWelc(c, frame.Payload)
	case packet.CmdCOOK:
		e.handleCook(c, frame.Payload)
	case packet.CmdREDY:
		e.handleRedy(c, frame.Payload)
	case packet.CmdMESG:
		e.handleMesg(c, frame.Payload)
	default:
		c.SetResult(conn.ErrProtocol, 0)
	}
}

func (e *Engine) handleWelc(c *conn.Connection, payload []byte) {
	serverLongTermPub, err := packet.DecodeWelc(payload)
	if err != nil {
		c.SetResult(conn.ErrProtocol, 0)
		return
	}
	c.SetPeerLongTermPub(serverLongTermPub)

	kp, err := boxcrypto.GenerateKeyPair()
	if err != nil {
		c.SetResult(conn.ErrCryptoCore, 0)
		return
	}
	c.SetEphemeral(kp)

	counter := c.NextNonce()
	helo := packet.EncodeHelo(kp.Public, counter, serverLongTermPub, kp.Secret)
	c.EnqueueFrame(packet.Encode(packet.CmdHELO, helo))
}

func (e *Engine) handleCook(c *conn.Connection, payload []byte) {
	ephemeral, ok := c.Ephemeral()
	if !ok {
		c.SetResult(conn.ErrProtocol, 0)
		return
	}

	serverShortPub, cookie, err := packet.DecodeCook(payload, c.PeerLongTermPub(), ephemeral.Secret)
	if err != nil {
		c.SetResult(conn.ErrDecryption, 0)
		return
	}
	c.SetCookie(cookie)

	sessionKey := boxcrypto.BeforeNM(serverShortPub, ephemeral.Secret)
	c.SetSessionKey(sessionKey)

	var nonceTail [16]byte
	if err := boxcrypto.RandomBytes(nonceTail[:]); err != nil {
		c.SetResult(conn.ErrCryptoCore, 0)
		return
	}

	var cert [32]byte
	haveCert := c.Mode() == conn.ModeGrid
	if haveCert && e.CertificateSigner != nil {
		cert = e.CertificateSigner()
	}

	counter := c.NextNonce()
	identity := c.Identity()
	voch := packet.EncodeVoch(packet.VouchParams{
		Counter:              counter,
		ClientLongTermPub:    identity.Public,
		ClientLongTermSecret: identity.Secret,
		ClientShortTermPub:   ephemeral.Public,
		ServerLongTermPub:    c.PeerLongTermPub(),
		OuterSessionKey:      sessionKey,
		InnerNonceTail:       nonceTail,
		HaveCertificate:      haveCert,
		Certificate:          cert,
	})
	c.EnqueueFrame(packet.Encode(packet.CmdVOCH, voch))
}

func (e *Engine) handleRedy(c *conn.Connection, payload []byte) {
	body, err := packet.DecodeReady(payload, c.SessionKey(), c.NextPeerNonce())
	if err != nil {
		c.SetResult(conn.ErrDecryption, 0)
		return
	}

	if c.Mode() == conn.ModePeer {
		c.SetStatus(conn.StatusConnected)
		return
	}

	// Grid mode: REDY's body stays opaque beyond logging (spec.md §9
	// Open Question); the handshake instead proceeds to exchange
	// protocol versions.
	log.Debug(fmt.Sprintf("handshake: REDY body length %d", len(body)))

	version := gridproto.ProtocolVersion{Magic: e.Magic, Major: e.Major, Minor: e.Minor}
	mesgBody := gridproto.EncodeMesgBody(gridproto.MsgProtocolVersion, version.Marshal())
	c.EnqueueFrame(c.BuildMesgFrame(mesgBody))
}

func (e *Engine) handleMesg(c *conn.Connection, payload []byte) {
	body, err := packet.DecodeMesg(payload, c.SessionKey(), c.NextPeerNonce())
	if err != nil {
		c.SetResult(conn.ErrDecryption, 0)
		return
	}

	if c.Status() == conn.StatusConnected {
		if c.Mode() == conn.ModePeer {
			if e.OnPeerMessage != nil {
				e.OnPeerMessage(c, body)
			}
			return
		}
		e.dispatchMesg(c, body)
		return
	}

	// Still handshaking: the only MESG expected here is the server's
	// ProtocolVersion reply completing grid negotiation.
	msgType, message, err := gridproto.DecodeMesgBody(body)
	if err != nil || msgType != gridproto.MsgProtocolVersion {
		c.SetResult(conn.ErrProtocol, 0)
		return
	}

	v, err := gridproto.UnmarshalProtocolVersion(message)
	if err != nil {
		c.SetResult(conn.ErrProtocol, 0)
		return
	}
	if v.Magic != e.Magic || v.Major != e.Major || v.Minor != e.Minor {
		c.SetResult(conn.ErrProtocol, 0)
		return
	}
	c.SetStatus(conn.StatusConnected)
}

// dispatchMesg delivers a decrypted, already-connected grid MESG body to
// the right handler. MSG_PEER_REPLY is routed to the grid Connection's
// peer set; every other type, recognized or not, is handed to
// OnGridMessage, or logged and ignored when OnGridMessage is nil
// (spec.md §7, forward-compatibility).
func (e *Engine) dispatchMesg(c *conn.Connection, body []byte) {
	msgType, message, err := gridproto.DecodeMesgBody(body)
	if err != nil {
		log.Warning(fmt.Sprintf("handshake: malformed MESG body: %v", err))
		return
	}

	// spec.md §9: the original's dispatch contains an assignment-in-
	// condition bug (`=` instead of `==`); this uses equality only.
	if msgType == gridproto.MsgPeerReply {
		pr, err := gridproto.UnmarshalPeerReply(message)
		if err != nil {
			log.Warning(fmt.Sprintf("handshake: malformed PeerReply: %v", err))
			return
		}
		if !c.Peers().Dispatch(pr.Id, pr.TunnelId) {
			log.Info(fmt.Sprintf("handshake: PeerReply for unknown peer id %d", pr.Id))
		}
		return
	}

	if e.OnGridMessage != nil {
		e.OnGridMessage(c, msgType, message)
		return
	}
	log.Debug(fmt.Sprintf("handshake: unhandled MESG type %#x, %d bytes ignored", msgType, len(message)))
}

