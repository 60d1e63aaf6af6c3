// Package eventloop implements the single reactor goroutine that
// multiplexes every Connection's socket I/O (spec.md §4.5). It is the Go
// rendering of a single-threaded non-blocking reactor: rather than poll
// non-blocking sockets directly (the teacher's curvecp.Conn has no need
// to, since it runs over UDP and degoutils/net/connect dispatches whole
// connection attempts via a channel instead of polling fds), each
// Connection gets its own blocking reader goroutine — cheap in Go,
// whose net.Conn.Read parks the goroutine without an OS thread — and
// every decoded unit is funneled onto one shared channel that a single
// dispatcher goroutine drains serially. That dispatcher is the reactor:
// it is the only goroutine that ever calls into a handshake.Engine. The
// reader goroutines touch a Connection only through Connection.ReadFrame's
// mutex-guarded receive accounting, and Connection.Send seals and queues
// frames on its caller's goroutine; this avoids a hand-rolled
// non-blocking poll loop Go's scheduler makes unnecessary.
//
// Cross-thread commands (add connection, flush pending sends, shut down)
// travel through the mutex-guarded intrusive queue package spec.md §4.7
// names for exactly this purpose, with a small buffered channel used only
// to wake the dispatcher — the same add-work/poke-a-channel split
// jchv-curvecp's pump() uses for its packetIn/stopListen/ticker select.
package eventloop

import (
	"fmt"
	"net"
	"sync"
	"unsafe"

	"github.com/albert-salai/opensdg-go/conn"
	"github.com/albert-salai/opensdg-go/gridproto"
	"github.com/albert-salai/opensdg-go/handshake"
	"github.com/albert-salai/opensdg-go/log"
	"github.com/albert-salai/opensdg-go/packet"
	"github.com/albert-salai/opensdg-go/queue"
	"github.com/albert-salai/opensdg-go/registry"
)

type cmdKind int

const (
	cmdAdd cmdKind = iota
	cmdFlush
	cmdClose
	cmdShutdown
)

// cmd is one entry in the reactor's command queue. It embeds queue.Elem so
// it can be linked directly into the intrusive FIFO without a separate
// allocation for the list node.
type cmd struct {
	queue.Elem
	kind    cmdKind
	uid     uint64
	conn    *conn.Connection
	netConn net.Conn
}

func cmdOf(e *queue.Elem) *cmd {
	return (*cmd)(unsafe.Pointer(e))
}

// inboundEvent is what a Connection's reader goroutine hands to the
// dispatcher once it has decoded one unit, or the read error that ended
// that goroutine.
type inboundEvent struct {
	uid        uint64
	frame      packet.Frame
	dataPacket gridproto.DataPacket
	isData     bool
	err        error
}

type entry struct {
	conn    *conn.Connection
	netConn net.Conn
}

// Loop is the reactor: one goroutine (started by Run) owns every
// Connection registered with it and is the only goroutine that ever calls
// into its handshake.Engine (spec.md §5, "single-threaded cooperative
// reactor").
type Loop struct {
	engine   *handshake.Engine
	registry *registry.Registry

	cmds *queue.Queue
	wake chan struct{}

	inbound chan inboundEvent

	conns    map[uint64]*entry
	stopping bool
	stopped  chan struct{}

	wg sync.WaitGroup
}

// New returns a Loop that drives engine for every Connection submitted to
// it, addressing connections through reg (spec.md §4.6: the registry does
// not own Connections, the Loop's conns map does).
func New(engine *handshake.Engine, reg *registry.Registry) *Loop {
	return &Loop{
		engine:   engine,
		registry: reg,
		cmds:     queue.New(),
		wake:     make(chan struct{}, 1),
		inbound:  make(chan inboundEvent, 64),
		conns:    map[uint64]*entry{},
		stopped:  make(chan struct{}),
	}
}

func (l *Loop) postCmd(c *cmd) {
	l.cmds.Put(&c.Elem)
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AddConnection registers c with the loop, assigns it a uid via the
// registry, and schedules its initial on_connect step. The Connection is
// owned by the reactor from this call onward (spec.md §4.4 lifecycle:
// "mutated solely by the event-loop thread after submission").
func (l *Loop) AddConnection(c *conn.Connection, netConn net.Conn) uint64 {
	uid := l.registry.NextUID()
	c.SetUID(uid)
	l.registry.Register(uid, c)

	l.postCmd(&cmd{kind: cmdAdd, uid: uid, conn: c, netConn: netConn})
	return uid
}

// Poke schedules a flush of uid's pending outbound frames. The public
// Connection.Send API is safe to call from any goroutine on its own (the
// send queue is mutex-guarded); Poke is what actually gets the bytes onto
// the wire by waking the reactor.
func (l *Loop) Poke(uid uint64) {
	l.postCmd(&cmd{kind: cmdFlush, uid: uid})
}

// CloseConnection schedules teardown of a single Connection: its socket is
// closed and, if it has not already reached a terminal status, its status
// is forced to closed (spec.md §5, "destroy posts a shutdown command").
// Unlike Shutdown, the reactor itself keeps running.
func (l *Loop) CloseConnection(uid uint64) {
	l.postCmd(&cmd{kind: cmdClose, uid: uid})
}

// Shutdown schedules reactor teardown: every registered socket is closed,
// every Connection's status is forced to closed/failed, and Run returns
// once the drain completes (spec.md §4.5, responsibility 4).
func (l *Loop) Shutdown() {
	l.postCmd(&cmd{kind: cmdShutdown})
}

// Wait blocks until Run has returned.
func (l *Loop) Wait() {
	<-l.stopped
}

// Run is the reactor loop itself. Call it in its own goroutine; it
// returns once Shutdown has been processed and every Connection has been
// torn down.
func (l *Loop) Run() {
	defer close(l.stopped)
	defer l.wg.Wait()

	for {
		select {
		case <-l.wake:
			l.drainCommands()
		case ev := <-l.inbound:
			l.handleInbound(ev)
		}

		if l.stopping && len(l.conns) == 0 {
			return
		}
	}
}

func (l *Loop) drainCommands() {
	for {
		e := l.cmds.Get()
		if e == nil {
			return
		}
		c := cmdOf(e)

		switch c.kind {
		case cmdAdd:
			l.handleAdd(c.uid, c.conn, c.netConn)
		case cmdFlush:
			l.flush(c.uid)
		case cmdClose:
			l.closeEntry(c.uid)
		case cmdShutdown:
			l.handleShutdown()
		}
	}
}

func (l *Loop) handleAdd(uid uint64, c *conn.Connection, netConn net.Conn) {
	en := &entry{conn: c, netConn: netConn}
	l.conns[uid] = en

	l.engine.OnConnect(c)
	l.flush(uid)

	if l.terminal(c) {
		l.closeEntry(uid)
		return
	}

	l.wg.Add(1)
	go l.readPump(uid, c, netConn)
}

// readPump owns the blocking read side of one Connection's socket. It
// decides, before every read, which of the two wire framings applies:
// while forwarding, the unencrypted DataPacket envelope; otherwise the
// magic+command frame the handshake and MESG traffic use (spec.md §4.3,
// §6).
func (l *Loop) readPump(uid uint64, c *conn.Connection, netConn net.Conn) {
	defer l.wg.Done()

	for {
		if c.Status() == conn.StatusForwarding {
			dp, err := gridproto.ReadDataPacket(netConn)
			if err != nil {
				l.inbound <- inboundEvent{uid: uid, err: err}
				return
			}
			l.inbound <- inboundEvent{uid: uid, dataPacket: dp, isData: true}
			continue
		}

		frame, err := c.ReadFrame(netConn)
		if err != nil {
			l.inbound <- inboundEvent{uid: uid, err: err}
			return
		}
		l.inbound <- inboundEvent{uid: uid, frame: frame}
	}
}

func (l *Loop) handleInbound(ev inboundEvent) {
	en, ok := l.conns[ev.uid]
	if !ok {
		// Already torn down (e.g. a racing Shutdown); the goroutine that
		// sent this event is exiting on its own.
		return
	}

	if ev.err != nil {
		if en.conn.Status() != conn.StatusFailed && en.conn.Status() != conn.StatusClosed {
			kind := conn.ErrSocket
			if ev.err == packet.ErrBufferExceeded {
				kind = conn.ErrBufferExceeded
			}
			en.conn.SetResult(kind, 0)
		}
		l.closeEntry(ev.uid)
		return
	}

	if ev.isData {
		l.engine.OnForwardPacket(en.conn, ev.dataPacket)
	} else {
		l.engine.OnPacket(en.conn, ev.frame)
	}

	l.flush(ev.uid)

	if l.terminal(en.conn) {
		l.closeEntry(ev.uid)
	}
}

func (l *Loop) flush(uid uint64) {
	en, ok := l.conns[uid]
	if !ok {
		return
	}

	for {
		f, ok := en.conn.DequeueFrame()
		if !ok {
			return
		}
		_, err := en.netConn.Write(f.Bytes())
		f.Release()
		if err != nil {
			log.Warning(fmt.Sprintf("eventloop: write to uid %d failed: %v", uid, err))
			en.conn.SetResult(conn.ErrSocket, 0)
			l.closeEntry(uid)
			return
		}
	}
}

func (l *Loop) terminal(c *conn.Connection) bool {
	switch c.Status() {
	case conn.StatusFailed, conn.StatusClosed:
		return true
	default:
		return false
	}
}

func (l *Loop) closeEntry(uid uint64) {
	en, ok := l.conns[uid]
	if !ok {
		return
	}
	en.netConn.Close()
	if !l.terminal(en.conn) {
		en.conn.SetStatus(conn.StatusClosed)
	}
	delete(l.conns, uid)
	l.registry.Unregister(uid)
}

func (l *Loop) handleShutdown() {
	for uid := range l.conns {
		l.closeEntry(uid)
	}
	l.stopping = true
}
