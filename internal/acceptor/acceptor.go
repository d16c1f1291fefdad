// Package acceptor listens on the bound address and dispatches each
// accepted connection to a callback, per spec §4.6. Grounded on the
// original muduo-lite Acceptor.cc (original_source/).
package acceptor

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tinyreactor/tinyreactor/internal/channel"
	"github.com/tinyreactor/tinyreactor/internal/eventloop"
	"github.com/tinyreactor/tinyreactor/internal/logx"
	"github.com/tinyreactor/tinyreactor/internal/netaddr"
	"github.com/tinyreactor/tinyreactor/internal/sockopt"
)

// NewConnectionFunc is invoked with each accepted connection's fd and peer
// address. It always runs on the base loop.
type NewConnectionFunc func(connFD int, peer netaddr.Address)

// Acceptor owns the listen socket and its channel on the base loop.
type Acceptor struct {
	loop      *eventloop.EventLoop
	listenFD  int
	ch        *channel.Channel
	listening bool

	newConnectionCallback NewConnectionFunc
}

// New creates a non-blocking, close-on-exec listen socket bound to addr and
// a channel for it on loop; the channel is registered with the poller only
// when Listen enables reading. Socket
// creation, bind, and listen failures are fatal configuration errors
// (spec §7).
func New(loop *eventloop.EventLoop, addr netaddr.Address, reusePort bool) *Acceptor {
	fd, err := sockopt.NewListenSocket(addr, reusePort)
	if err != nil {
		logx.Fatal("acceptor: %v", err)
	}

	a := &Acceptor{loop: loop, listenFD: fd}
	a.ch = channel.New(loop, fd)
	a.ch.SetReadCallback(func(_ time.Time) { a.handleRead() })
	return a
}

// Addr returns the listen socket's actual bound address — useful when New
// was given port 0 and the OS assigned an ephemeral one.
func (a *Acceptor) Addr() (netaddr.Address, error) {
	return sockopt.GetSockName(a.listenFD)
}

// SetNewConnectionCallback installs the callback invoked per accepted
// connection. If none is set, accepted connections are closed immediately.
func (a *Acceptor) SetNewConnectionCallback(cb NewConnectionFunc) {
	a.newConnectionCallback = cb
}

// Listen begins accepting connections.
func (a *Acceptor) Listen() {
	a.listening = true
	if err := sockopt.Listen(a.listenFD); err != nil {
		logx.Fatal("acceptor: %v", err)
	}
	a.ch.EnableReading()
}

// StopAccepting disables the read interest on the listen socket's channel,
// so already-queued backlog connections are never handed to the callback.
// The listen socket itself stays open; the OS continues completing
// in-flight handshakes into the kernel backlog until it is closed.
func (a *Acceptor) StopAccepting() {
	a.ch.DisableReading()
}

func (a *Acceptor) handleRead() {
	connFD, peer, err := sockopt.Accept4(a.listenFD)
	if err != nil {
		if errors.Is(err, unix.EMFILE) {
			logx.Warning("acceptor: accept4 hit the process fd limit (EMFILE); channel remains registered and will re-wake")
			return
		}
		logx.Error("acceptor: accept4 failed: %v", err)
		return
	}

	if a.newConnectionCallback != nil {
		a.newConnectionCallback(connFD, peer)
		return
	}
	sockopt.Close(connFD)
}
