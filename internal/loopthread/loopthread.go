// Package loopthread spawns worker threads that each host one EventLoop and
// hands them out round-robin to the acceptor, per spec §3/§4.5. Grounded on
// the original muduo-lite EventLoopThread/EventLoopThreadPool design
// referenced from TcpServer.cc (original_source/); "thread" here is a
// goroutine pinned to its OS thread with runtime.LockOSThread so the loop's
// thread-affinity invariants hold for real.
package loopthread

import (
	"runtime"
	"sync"

	"github.com/tinyreactor/tinyreactor/internal/eventloop"
)

// Thread owns exactly one EventLoop, running on a dedicated, pinned OS
// thread.
type Thread struct {
	initFn func(*eventloop.EventLoop)

	once  sync.Once
	ready chan struct{}
	loop  *eventloop.EventLoop
}

// New returns a Thread that will run initFn (if non-nil) on the worker's own
// thread immediately after constructing its EventLoop and before entering
// Loop().
func New(initFn func(*eventloop.EventLoop)) *Thread {
	return &Thread{initFn: initFn, ready: make(chan struct{})}
}

// Start spawns the worker goroutine and blocks until its EventLoop has been
// constructed (and initFn, if any, has run), returning that loop — mirroring
// muduo's condition-variable handoff in EventLoopThread::startLoop.
func (t *Thread) Start() *eventloop.EventLoop {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		loop := eventloop.New()
		t.loop = loop
		if t.initFn != nil {
			t.initFn(loop)
		}
		close(t.ready)

		loop.Loop()
		loop.Close()
	}()

	<-t.ready
	return t.loop
}

// Loop returns the worker's EventLoop. Only valid after Start has returned.
func (t *Thread) Loop() *eventloop.EventLoop { return t.loop }
