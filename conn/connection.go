// Package conn holds the Connection and Peer data model (spec.md §3,
// §4.4): long-term/ephemeral keys, session state, status, and the narrow
// mutation API the event loop and handshake engine use to drive a
// Connection, plus the small application-facing surface (send,
// destroy, error accessors).
//
// Connection mutation after registration is meant to happen from a
// single goroutine — the event loop's dispatch loop — the same
// single-writer discipline jchv-curvecp's conn.pump() enforces by giving
// every conn exactly one goroutine that touches its mutable fields.
// Fields that the application thread also touches (status, error kind,
// the outbound queue) are guarded by a mutex instead.
package conn

import (
	"fmt"
	"io"
	"sync"
	"unsafe"

	"github.com/albert-salai/opensdg-go/boxcrypto"
	"github.com/albert-salai/opensdg-go/packet"
	"github.com/albert-salai/opensdg-go/queue"
)

// sendBlock is one node in a Connection's send queue or freelist
// (spec.md §4.7, grounded on jchv-curvecp's block/toSend/sendFree
// pattern). buf is reused across the freelist to avoid reallocating once
// a Connection is running.
//
// queue.Elem is embedded as the first field so that a *queue.Elem
// recovered from Queue.Get can be converted back to its owning
// *sendBlock via blockOf: Go guarantees a struct's first field sits at
// offset zero, the same container_of trick the intrusive design in
// spec.md §4.7 relies on.
type sendBlock struct {
	queue.Elem
	buf []byte
}

func blockOf(e *queue.Elem) *sendBlock {
	return (*sendBlock)(unsafe.Pointer(e))
}

// Connection is one TCP session to a grid server or, after forwarding, a
// peer device (spec.md §3). Use New to construct one.
type Connection struct {
	mu sync.Mutex

	identity boxcrypto.KeyPair

	haveEphemeral bool
	ephemeral     boxcrypto.KeyPair

	peerLongTermPub [boxcrypto.KeySize]byte
	sessionKey      [boxcrypto.KeySize]byte
	cookie          [96]byte

	nonceCounter     uint64
	peerNonceCounter uint64

	mode   Mode
	status Status

	errKind ErrorKind
	errCode int

	tunnelID []byte

	bufferSize    int
	bytesReceived int
	bytesLeft     int

	uid uint64

	statusCallback func(Status)
	done           chan struct{}
	doneOnce       sync.Once

	toSend   *queue.Queue
	sendFree *queue.Queue

	peers *peerSet // nil unless mode == ModeGrid
}

// New creates a Connection that will use identity as its long-term key
// pair and bufferSize as the largest inbound frame it accepts, 2-byte
// length prefix included (spec.md §4.4, "create(key, bufSize)"). Send
// blocks are sized to each outbound frame, not to bufferSize.
func New(identity boxcrypto.KeyPair, bufferSize int) *Connection {
	c := &Connection{
		identity:   identity,
		bufferSize: bufferSize,
		bytesLeft:  bufferSize,
		status:     StatusClosed,
		done:       make(chan struct{}),
		toSend:     queue.New(),
		sendFree:   queue.New(),
	}
	return c
}

// Identity returns the Connection's long-term key pair.
func (c *Connection) Identity() boxcrypto.KeyPair { return c.identity }

// SetMode sets the Connection's grid/peer mode. It also lazily
// initializes the peer set for grid-mode Connections.
func (c *Connection) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
	if m == ModeGrid && c.peers == nil {
		c.peers = newPeerSet()
	}
}

// Mode returns the Connection's current mode.
func (c *Connection) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetTunnelID stores the opaque tunnel id used for MSG_FORWARD_REMOTE in
// peer mode (spec.md §3).
func (c *Connection) SetTunnelID(id []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tunnelID = append([]byte(nil), id...)
}

// TunnelID returns the tunnel id set via SetTunnelID.
func (c *Connection) TunnelID() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tunnelID
}

// BufferSize returns the configured buffer size.
func (c *Connection) BufferSize() int { return c.bufferSize }

// UID returns the registry uid assigned to this Connection, or 0 if
// unregistered.
func (c *Connection) UID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uid
}

// SetUID records the registry uid assigned at registration.
func (c *Connection) SetUID(uid uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uid = uid
}

// SetEphemeral records the short-term key pair generated on receiving
// WELC (spec.md §3, §4.3).
func (c *Connection) SetEphemeral(kp boxcrypto.KeyPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ephemeral = kp
	c.haveEphemeral = true
}

// Ephemeral returns the short-term key pair, and whether one has been
// generated yet.
func (c *Connection) Ephemeral() (boxcrypto.KeyPair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ephemeral, c.haveEphemeral
}

// SetPeerLongTermPub records the server's long-term public key, captured
// from WELC.
func (c *Connection) SetPeerLongTermPub(pub [boxcrypto.KeySize]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerLongTermPub = pub
}

// PeerLongTermPub returns the server's long-term public key.
func (c *Connection) PeerLongTermPub() [boxcrypto.KeySize]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerLongTermPub
}

// SetSessionKey records the beforenm precomputation derived from the
// COOK exchange (spec.md §3, "Session key").
func (c *Connection) SetSessionKey(key [boxcrypto.KeySize]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionKey = key
}

// SessionKey returns the current session key.
func (c *Connection) SessionKey() [boxcrypto.KeySize]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionKey
}

// SetCookie records the server-issued cookie received in COOK. The
// stored cookie is not included in the VOCH payload EncodeVoch builds.
func (c *Connection) SetCookie(cookie [96]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookie = cookie
}

// Cookie returns the stored cookie.
func (c *Connection) Cookie() [96]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cookie
}

// NextNonce returns the next value of the strictly monotonic client
// nonce counter (spec.md §3 invariants, §8 scenario 6: the sequence
// starts at 1).
func (c *Connection) NextNonce() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonceCounter++
	return c.nonceCounter
}

// NextPeerNonce returns the next expected value of the server's
// per-direction nonce counter, used to validate the nonce tail on each
// inbound REDY/MESG frame (spec.md §4.1, MESG-like layout).
func (c *Connection) NextPeerNonce() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerNonceCounter++
	return c.peerNonceCounter
}

// Status returns the Connection's current status.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus advances the Connection's status and notifies the status
// callback and any Wait()ers. Transitioning to Closed or Failed zeros the
// ephemeral secret key (spec.md §3 invariant) and unblocks Wait.
func (c *Connection) SetStatus(s Status) {
	c.mu.Lock()
	cb := c.statusCallback
	c.status = s
	terminal := s == StatusConnected || s == StatusFailed || s == StatusClosed
	if s == StatusFailed || s == StatusClosed {
		for i := range c.ephemeral.Secret {
			c.ephemeral.Secret[i] = 0
		}
	}
	c.mu.Unlock()

	if cb != nil {
		cb(s)
	}
	if terminal {
		c.doneOnce.Do(func() { close(c.done) })
	}
}

// SetResult records a non-zero error kind/code and transitions the
// Connection to Failed (spec.md §4.4, "set_result(err)"). Calling it
// with ErrNone is a no-op.
func (c *Connection) SetResult(kind ErrorKind, code int) {
	if kind == ErrNone {
		return
	}
	c.mu.Lock()
	c.errKind = kind
	c.errCode = code
	c.mu.Unlock()
	c.SetStatus(StatusFailed)
}

// ErrorKind returns the error kind captured by SetResult, or ErrNone.
func (c *Connection) ErrorKind() ErrorKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errKind
}

// ErrorCode returns the OS/protocol-specific code captured alongside the
// error kind.
func (c *Connection) ErrorCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errCode
}

// SetStatusCallback registers the callback SetStatus invokes on every
// transition. It fires once with the terminal status and the accessors
// keep returning the captured kind/code thereafter (spec.md §7,
// "User-visible behavior").
func (c *Connection) SetStatusCallback(cb func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCallback = cb
}

// Wait blocks until the Connection reaches a terminal status (Connected,
// Failed, or Closed) and returns it. This is the "event_wait" suspension
// point spec.md §5 describes for the application thread.
func (c *Connection) Wait() Status {
	<-c.done
	return c.Status()
}

// Peers returns the Connection's outstanding peer set. It panics if
// called on a non-grid Connection, since only grid Connections track
// peers (spec.md §3, Peer).
func (c *Connection) Peers() *peerSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peers == nil {
		panic("conn: Peers() called on a non-grid Connection")
	}
	return c.peers
}

// BuildMesgFrame seals body as an outbound MESG payload using this
// Connection's session key and the next nonce, and frames it with the
// packet header (spec.md §3 invariant: each outbound MESG packet uses a
// unique (session key, nonce) pair).
func (c *Connection) BuildMesgFrame(body []byte) []byte {
	counter := c.NextNonce()
	payload := packet.EncodeMesg(body, c.SessionKey(), counter)
	return packet.Encode(packet.CmdMESG, payload)
}

// EnqueueFrame appends a fully framed outbound buffer to the send queue.
// It is the Connection-side half of spec.md §4.4's "prepare_send"; the
// event loop drains the queue via DequeueFrame when the socket becomes
// writable.
func (c *Connection) EnqueueFrame(frame []byte) {
	blk := c.acquireSendBlock(len(frame))
	copy(blk.buf, frame)
	blk.buf = blk.buf[:len(frame)]
	c.toSend.Put(&blk.Elem)
}

// OutboundFrame is a queued frame together with the means to recycle its
// backing block onto the Connection's freelist once written, mirroring
// jchv-curvecp's sendFree cycling.
type OutboundFrame struct {
	conn *Connection
	blk  *sendBlock
}

// Bytes returns the framed, ready-to-write buffer.
func (f OutboundFrame) Bytes() []byte { return f.blk.buf }

// Release returns the frame's backing block to the freelist for reuse.
func (f OutboundFrame) Release() {
	f.blk.buf = f.blk.buf[:0]
	f.conn.sendFree.Put(&f.blk.Elem)
}

// DequeueFrame removes and returns the next outbound frame, or ok=false
// if none is queued.
func (c *Connection) DequeueFrame() (f OutboundFrame, ok bool) {
	e := c.toSend.Get()
	if e == nil {
		return OutboundFrame{}, false
	}
	return OutboundFrame{conn: c, blk: blockOf(e)}, true
}

// Send enqueues an application payload as an encrypted MESG frame. It is
// only valid once the Connection is Connected (spec.md §4.4,
// "send(conn, bytes) - valid only in connected").
func (c *Connection) Send(data []byte) error {
	if c.Status() != StatusConnected {
		return fmt.Errorf("conn: Send called while not connected (status=%s)", c.Status())
	}
	c.EnqueueFrame(c.BuildMesgFrame(data))
	return nil
}

// ReadFrame reads one complete frame from r into this Connection's
// receive buffer accounting (spec.md §3, "Receive state": bytesReceived,
// bytesLeft), enforcing the invariant bytesLeft+bytesReceived <=
// bufferSize by construction: the codec never reads more than
// bufferSize-2 body bytes (spec.md §4.1, on_readable's two-phase
// length-then-body read).
func (c *Connection) ReadFrame(r io.Reader) (packet.Frame, error) {
	c.mu.Lock()
	c.bytesReceived = 0
	c.bytesLeft = c.bufferSize
	c.mu.Unlock()

	frame, err := packet.ReadFrame(r, c.bufferSize)

	c.mu.Lock()
	if err == nil {
		c.bytesReceived = packet.HeaderLen + len(frame.Payload)
	}
	c.bytesLeft = c.bufferSize - c.bytesReceived
	c.mu.Unlock()

	return frame, err
}

// acquireSendBlock pops a block off the freelist, growing it to at least
// size, or allocates a fresh one if the freelist is empty.
func (c *Connection) acquireSendBlock(size int) *sendBlock {
	if e := c.sendFree.Get(); e != nil {
		blk := blockOf(e)
		if cap(blk.buf) < size {
			blk.buf = make([]byte, size)
		} else {
			blk.buf = blk.buf[:size]
		}
		return blk
	}
	return &sendBlock{buf: make([]byte, size)}
}
