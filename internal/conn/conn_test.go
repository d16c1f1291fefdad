package conn

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tinyreactor/tinyreactor/internal/buffer"
	"github.com/tinyreactor/tinyreactor/internal/eventloop"
	"github.com/tinyreactor/tinyreactor/internal/netaddr"
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

func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestHandleReadDeliversMessage(t *testing.T) {
	loop := newTestLoop(t)
	fd, peerFD := socketpair(t)

	var mu sync.Mutex
	var received string
	done := make(chan struct{})

	c := New(loop, "test-conn", fd, netaddr.Address{}, netaddr.Address{})
	c.SetMessageCallback(func(_ *Conn, in *buffer.Buffer, _ time.Time) {
		mu.Lock()
		received = in.RetrieveAllAsString()
		mu.Unlock()
		close(done)
	})

	loop.RunInLoop(c.ConnectEstablished)

	if _, err := unix.Write(peerFD, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if received != "ping" {
		t.Fatalf("received = %q, want %q", received, "ping")
	}
}

func TestSendWritesToPeer(t *testing.T) {
	loop := newTestLoop(t)
	fd, peerFD := socketpair(t)

	c := New(loop, "test-conn", fd, netaddr.Address{}, netaddr.Address{})
	loop.RunInLoop(c.ConnectEstablished)

	c.Send([]byte("pong"))

	deadline := time.Now().Add(2 * time.Second)
	buf := make([]byte, 16)
	var n int
	var err error
	for time.Now().Before(deadline) {
		n, err = unix.Read(peerFD, buf)
		if err == nil && n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n != 4 || string(buf[:n]) != "pong" {
		t.Fatalf("peer read %q (err=%v), want %q", buf[:n], err, "pong")
	}
}

func TestHandleReadEOFTriggersClose(t *testing.T) {
	loop := newTestLoop(t)
	fd, peerFD := socketpair(t)

	closed := make(chan struct{})
	c := New(loop, "test-conn", fd, netaddr.Address{}, netaddr.Address{})
	c.SetConnectionCallback(func(cn *Conn) {
		if cn.Disconnected() {
			close(closed)
		}
	})
	loop.RunInLoop(c.ConnectEstablished)

	unix.Close(peerFD)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection callback never observed disconnect")
	}
	if !c.Disconnected() {
		t.Fatal("Disconnected() = false after peer closed")
	}
}

func TestHighWaterMarkCallbackFiresOnThreshold(t *testing.T) {
	loop := newTestLoop(t)
	fd, _ := socketpair(t)

	fired := make(chan int, 1)
	c := New(loop, "test-conn", fd, netaddr.Address{}, netaddr.Address{})
	c.SetHighWaterMarkCallback(func(_ *Conn, bytes int) { fired <- bytes }, 8)
	loop.RunInLoop(c.ConnectEstablished)

	// Fill the socket's own kernel send buffer so sendInLoop cannot write the
	// fast path synchronously, forcing bytes to accumulate in outputBuffer
	// past the 8-byte mark.
	big := make([]byte, 1<<20)
	c.Send(big)

	select {
	case n := <-fired:
		if n < 8 {
			t.Fatalf("high water mark fired at %d bytes, want >= 8", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("high water mark callback never fired")
	}
}
