// Package osdg is the public library surface spec.md §6 describes,
// tying together boxcrypto, conn, handshake, eventloop, registry and
// osdgconfig the way the teacher's net/connect.Connect ties dialing,
// retry and a Connector interface together behind one call for its
// callers.
package osdg

import (
	"fmt"
	"sync"

	"github.com/albert-salai/opensdg-go/boxcrypto"
	"github.com/albert-salai/opensdg-go/conn"
	"github.com/albert-salai/opensdg-go/eventloop"
	"github.com/albert-salai/opensdg-go/handshake"
	"github.com/albert-salai/opensdg-go/osdgconfig"
	"github.com/albert-salai/opensdg-go/registry"
)

// Config customizes the process-wide state Init sets up. The zero Config
// is the spec-default behavior: no certificate signing, every other
// tunable taken from osdgconfig.
type Config struct {
	// CertificateSigner, if set, is forwarded to the handshake engine to
	// fill the VOCH certificate KV record's value in grid mode (spec.md
	// §4.3). SignCertificateWithEd25519 builds one from an ed25519 device
	// key. Leave nil for the zero-filled default.
	CertificateSigner func() [32]byte

	// OnGridMessage and OnPeerMessage are forwarded to the handshake
	// engine unchanged; see handshake.Engine for their semantics.
	OnGridMessage func(c *conn.Connection, msgType byte, message []byte)
	OnPeerMessage func(c *conn.Connection, data []byte)
}

var (
	mu      sync.Mutex
	engine  *handshake.Engine
	loop    *eventloop.Loop
	reg     *registry.Registry
	running bool
)

// Init performs process-wide setup (spec.md §6, init()): it builds a
// handshake.Engine from the configured protocol version and starts the
// single reactor goroutine that owns every Connection created after this
// call. Init must be called once before any Connection is created.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	if running {
		return fmt.Errorf("osdg: already initialized")
	}

	magic, major, minor := osdgconfig.ProtocolVersion()
	e := handshake.New(magic, major, minor)
	e.CertificateSigner = cfg.CertificateSigner
	e.OnGridMessage = cfg.OnGridMessage
	e.OnPeerMessage = cfg.OnPeerMessage

	r := registry.New()
	l := eventloop.New(e, r)
	go l.Run()

	engine, loop, reg, running = e, l, r, true
	return nil
}

// Shutdown tears down the reactor (spec.md §6, shutdown()): every
// registered socket is closed, every live Connection forced to a
// terminal status, and this call blocks until teardown completes.
// Shutdown is a no-op if Init was never called or has already been
// undone by a prior Shutdown.
func Shutdown() {
	mu.Lock()
	l := loop
	mu.Unlock()
	if l == nil {
		return
	}

	l.Shutdown()
	l.Wait()

	mu.Lock()
	engine, loop, reg, running = nil, nil, nil, false
	mu.Unlock()
}

func currentLoop() (*eventloop.Loop, error) {
	mu.Lock()
	defer mu.Unlock()
	if !running {
		return nil, fmt.Errorf("osdg: not initialized (call Init first)")
	}
	return loop, nil
}

// Connection is the application-facing handle spec.md §4.4 describes:
// Create/Destroy, ConnectToGrid/ConnectToPeer, Send, the error
// accessors, and a status callback. It wraps a *conn.Connection; after
// the Connect* call the handshake and socket I/O run on the reactor
// goroutine started by Init, while Send seals and queues its frame on the
// caller's goroutine.
type Connection struct {
	c   *conn.Connection
	uid uint64
}

// Create allocates a Connection bound to identity (spec.md §6,
// connection_create), with a receive buffer sized per
// osdgconfig.BufferSize. The Connection is inert until ConnectToGrid or
// ConnectToPeer registers it with the reactor.
func Create(identity boxcrypto.KeyPair) *Connection {
	return &Connection{c: conn.New(identity, osdgconfig.BufferSize())}
}

// Raw returns the underlying *conn.Connection, for callers that need
// direct access to accessors conn.Connection exposes beyond this
// package's surface (e.g. Peers() on a grid Connection).
func (cn *Connection) Raw() *conn.Connection { return cn.c }

// SetStatusCallback registers cb to be invoked with every status this
// Connection transitions to, the terminal one included (spec.md §6,
// connection_set_status_callback). Transitions made inside ConnectToGrid
// and ConnectToPeer run on the caller's goroutine; later ones run on the
// reactor goroutine.
func (cn *Connection) SetStatusCallback(cb func(conn.Status)) {
	cn.c.SetStatusCallback(cb)
}

// ConnectToGrid dials the given endpoints in order (retrying full passes
// with backoff per the "Endpoint list retry" supplement), registers the
// Connection with the reactor in grid mode, and returns once the socket
// is handed to the reactor — not once the handshake completes. Use
// SetStatusCallback or cn.Raw().Wait() to learn the outcome (spec.md
// §6, connection_connect_to_grid).
func (cn *Connection) ConnectToGrid(endpoints []string) error {
	l, err := currentLoop()
	if err != nil {
		return err
	}

	netConn, err := dialEndpoints(endpoints)
	if err != nil {
		cn.c.SetResult(conn.ErrSocket, 0)
		return err
	}

	cn.c.SetMode(conn.ModeGrid)
	cn.c.SetStatus(conn.StatusConnecting)
	cn.uid = l.AddConnection(cn.c, netConn)
	return nil
}

// ConnectToPeer dials the given grid endpoints, registers the Connection
// with the reactor in peer mode carrying tunnelID, and returns once the
// socket is handed to the reactor (spec.md §6,
// connection_connect_to_peer). tunnelID is normally the id delivered to
// a Peer's OnReply callback after MSG_PEER_REPLY (spec.md §3, Peer).
func (cn *Connection) ConnectToPeer(tunnelID []byte, endpoints []string) error {
	l, err := currentLoop()
	if err != nil {
		return err
	}

	netConn, err := dialEndpoints(endpoints)
	if err != nil {
		cn.c.SetResult(conn.ErrSocket, 0)
		return err
	}

	cn.c.SetMode(conn.ModePeer)
	cn.c.SetTunnelID(tunnelID)
	cn.c.SetStatus(conn.StatusConnecting)
	cn.uid = l.AddConnection(cn.c, netConn)
	return nil
}

// Send enqueues data as an encrypted MESG frame (spec.md §6,
// connection_send). Valid only once the Connection is connected.
func (cn *Connection) Send(data []byte) error {
	if err := cn.c.Send(data); err != nil {
		return err
	}
	if l, err := currentLoop(); err == nil {
		l.Poke(cn.uid)
	}
	return nil
}

// GetErrorKind returns the tagged failure reason captured on failure
// (spec.md §6, connection_get_error_kind), or conn.ErrNone before any
// failure.
func (cn *Connection) GetErrorKind() conn.ErrorKind { return cn.c.ErrorKind() }

// GetErrorCode returns the accompanying error code (spec.md §6,
// connection_get_error_code); meaningful only alongside the
// conn.ErrPeerTimeout/ErrServer kinds, where it carries the grid's
// forward error code. Socket errors are recorded with code 0; no OS errno
// is captured.
func (cn *Connection) GetErrorCode() int { return cn.c.ErrorCode() }

// Wait blocks until the Connection reaches a terminal status and
// returns it.
func (cn *Connection) Wait() conn.Status { return cn.c.Wait() }

// Destroy posts a teardown command for this Connection alone and waits
// for its terminal status (spec.md §4.4, destroy / §5 cancellation: "destroy
// posts a shutdown command; the reactor closes the socket and
// transitions the Connection to closed/failed"). It does not affect any
// other Connection or the reactor itself.
func (cn *Connection) Destroy() {
	l, err := currentLoop()
	if err != nil {
		return
	}
	l.CloseConnection(cn.uid)
	cn.c.Wait()
}
