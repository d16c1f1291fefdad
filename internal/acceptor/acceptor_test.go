package acceptor

import (
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/tinyreactor/tinyreactor/internal/eventloop"
	"github.com/tinyreactor/tinyreactor/internal/netaddr"
	"github.com/tinyreactor/tinyreactor/internal/sockopt"
)

func newTestLoop(t *testing.T) *eventloop.EventLoop {
	t.Helper()
	readyCh := make(chan *eventloop.EventLoop, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		loop := eventloop.New()
		readyCh <- loop
		loop.Loop()
		loop.Close()
	}()
	loop := <-readyCh
	t.Cleanup(loop.Quit)
	return loop
}

func TestAcceptorDispatchesNewConnection(t *testing.T) {
	loop := newTestLoop(t)
	addr, err := netaddr.Parse("127.0.0.1:0")
	if err != nil {
		t.Fatalf("netaddr.Parse: %v", err)
	}

	a := New(loop, addr, false)
	acceptedCh := make(chan int, 1)
	a.SetNewConnectionCallback(func(fd int, _ netaddr.Address) {
		acceptedCh <- fd
	})
	loop.RunInLoop(a.Listen)

	bound, err := a.Addr()
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}

	var cli net.Conn
	deadline := time.Now().Add(2 * time.Second)
	for {
		cli, err = net.DialTimeout("tcp", bound.String(), 200*time.Millisecond)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	defer cli.Close()

	select {
	case fd := <-acceptedCh:
		defer sockopt.Close(fd)
		if fd < 0 {
			t.Fatal("accepted fd < 0")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("new connection callback never fired")
	}
}

func TestAcceptorClosesWithoutCallback(t *testing.T) {
	loop := newTestLoop(t)
	addr, _ := netaddr.Parse("127.0.0.1:0")

	a := New(loop, addr, false)
	loop.RunInLoop(a.Listen)

	bound, _ := a.Addr()

	var cli net.Conn
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for {
		cli, err = net.DialTimeout("tcp", bound.String(), 200*time.Millisecond)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cli.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	n, readErr := cli.Read(buf)
	if n != 0 || readErr == nil {
		t.Fatalf("expected EOF on a connection with no installed callback, got n=%d err=%v", n, readErr)
	}
}
