// Package server implements the TcpServer facade of spec §4.8: owns the
// acceptor, the worker-loop pool, and the live connection set, and wires
// accepted fds into conn.Conn instances named per spec's "<server>-<ip:port>#<id>"
// scheme. Grounded on the original muduo-lite TcpServer.cc (original_source/).
package server

import (
	"fmt"
	"sync/atomic"

	"github.com/tinyreactor/tinyreactor/internal/acceptor"
	"github.com/tinyreactor/tinyreactor/internal/conn"
	"github.com/tinyreactor/tinyreactor/internal/eventloop"
	"github.com/tinyreactor/tinyreactor/internal/loopthread"
	"github.com/tinyreactor/tinyreactor/internal/netaddr"
	"github.com/tinyreactor/tinyreactor/internal/sockopt"
)

// DefaultHighWaterMark is applied to every connection unless overridden via
// SetHighWaterMark, per spec §6.
const DefaultHighWaterMark = 64 * 1024 * 1024

// Server is the facade applications construct: one acceptor on a base loop,
// a pool of worker loops, and the name -> Conn map those workers' accepted
// connections are registered under.
type Server struct {
	baseLoop *eventloop.EventLoop
	name     string
	addr     netaddr.Address

	acceptor *acceptor.Acceptor
	pool     *loopthread.Pool

	started atomic.Bool
	nextID  int

	connections map[string]*conn.Conn

	highWaterMark int

	connectionCallback    conn.ConnectionFunc
	messageCallback       conn.MessageFunc
	writeCompleteCallback conn.WriteCompleteFunc
	highWaterMarkCallback conn.HighWaterMarkFunc
}

// New constructs a server named name, listening on addr once Start is
// called. baseLoop is the loop the acceptor runs on; it is also the loop
// GetNextLoop falls back to when numWorkers is zero (spec §4.5).
func New(baseLoop *eventloop.EventLoop, name string, addr netaddr.Address, numWorkers int, reusePort bool) *Server {
	s := &Server{
		baseLoop:      baseLoop,
		name:          name,
		addr:          addr,
		pool:          loopthread.NewPool(baseLoop, numWorkers),
		connections:   make(map[string]*conn.Conn),
		highWaterMark: DefaultHighWaterMark,
	}

	s.acceptor = acceptor.New(baseLoop, addr, reusePort)
	s.acceptor.SetNewConnectionCallback(s.newConnection)

	return s
}

// SetConnectionCallback installs the callback fired on every connection's
// establishment and on its transition to disconnected.
func (s *Server) SetConnectionCallback(cb conn.ConnectionFunc) { s.connectionCallback = cb }

// SetMessageCallback installs the callback fired when a connection has
// readable bytes.
func (s *Server) SetMessageCallback(cb conn.MessageFunc) { s.messageCallback = cb }

// SetWriteCompleteCallback installs the callback fired once a connection's
// sent bytes have all been written, whether by a direct write or by
// draining the output buffer.
func (s *Server) SetWriteCompleteCallback(cb conn.WriteCompleteFunc) { s.writeCompleteCallback = cb }

// SetHighWaterMarkCallback installs the callback fired when a connection's
// output buffer crosses mark while growing, and overrides the server-wide
// default for all connections accepted afterward.
func (s *Server) SetHighWaterMarkCallback(cb conn.HighWaterMarkFunc, mark int) {
	s.highWaterMarkCallback = cb
	s.highWaterMark = mark
}

// SetHighWaterMark overrides the default high-water mark without installing
// a callback change.
func (s *Server) SetHighWaterMark(mark int) { s.highWaterMark = mark }

// Start begins listening, idempotently: a second call is a no-op. The
// worker pool is spawned on first call, before the acceptor starts
// listening, so no connection can be accepted before workers exist.
func (s *Server) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.pool.Start(nil)
	s.baseLoop.RunInLoop(func() {
		s.acceptor.Listen()
	})
}

// newConnection runs on the base loop (the acceptor's loop): it picks the
// next worker loop, builds the connection's stable name, constructs it, and
// posts ConnectEstablished to the connection's own (worker) loop.
func (s *Server) newConnection(connFD int, peer netaddr.Address) {
	ioLoop := s.pool.GetNextLoop()

	s.nextID++
	name := fmt.Sprintf("%s-%s#%d", s.name, peer.String(), s.nextID)

	local, err := sockopt.GetSockName(connFD)
	if err != nil {
		local = s.addr
	}
	c := conn.New(ioLoop, name, connFD, local, peer)
	c.SetConnectionCallback(s.connectionCallback)
	c.SetMessageCallback(s.messageCallback)
	c.SetWriteCompleteCallback(s.writeCompleteCallback)
	c.SetHighWaterMarkCallback(s.highWaterMarkCallback, s.highWaterMark)
	c.SetCloseCallback(s.removeConnection)

	s.connections[name] = c

	ioLoop.RunInLoop(c.ConnectEstablished)
}

// removeConnection is installed as each connection's internal close
// callback; it runs on that connection's worker loop, so the map mutation
// below is bounced to the base loop exactly as muduo's TcpServer does.
func (s *Server) removeConnection(c *conn.Conn) {
	s.baseLoop.RunInLoop(func() { s.removeConnectionInLoop(c) })
}

func (s *Server) removeConnectionInLoop(c *conn.Conn) {
	delete(s.connections, c.Name())
	ioLoop := c.Loop()
	ioLoop.QueueInLoop(c.ConnectDestroyed)
}

// Stop first stops the acceptor from handing out new connections, then asks
// every live connection to shut down; each half-closes once its output
// buffer has drained. It does not wait for drains to complete — callers observing a clean
// shutdown should pair this with the connectionCallback's disconnected
// notifications, per the seed "graceful shutdown under backlog" scenario.
func (s *Server) Stop() {
	s.baseLoop.RunInLoop(func() {
		s.acceptor.StopAccepting()
		for _, c := range s.connections {
			c.Shutdown()
		}
	})
}

// Addr returns the listen socket's actual bound address, resolving any
// ephemeral port (addr supplied to New with port 0) to what the OS assigned.
func (s *Server) Addr() (netaddr.Address, error) {
	return s.acceptor.Addr()
}

// Connections returns a snapshot of the currently tracked connection names.
// Intended for diagnostics/tests, not hot-path use.
func (s *Server) Connections() []string {
	names := make([]string, 0, len(s.connections))
	for name := range s.connections {
		names = append(names, name)
	}
	return names
}
