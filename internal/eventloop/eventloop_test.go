package eventloop

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

func newTestLoop(t *testing.T) *EventLoop {
	t.Helper()
	readyCh := make(chan *EventLoop, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		loop := New()
		readyCh <- loop
		loop.Loop()
		loop.Close()
	}()
	loop := <-readyCh
	t.Cleanup(loop.Quit)
	return loop
}

func TestRunInLoopExecutesImmediatelyOnOwnThread(t *testing.T) {
	loop := newTestLoop(t)

	done := make(chan struct{})
	loop.QueueInLoop(func() {
		ran := false
		loop.RunInLoop(func() {
			if !loop.IsInLoopGoroutine() {
				t.Error("RunInLoop body not running on loop's thread")
			}
			ran = true
		})
		if !ran {
			t.Error("RunInLoop on the loop's own thread did not run the task inline")
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunInLoop task never ran")
	}
}

func TestQueueInLoopFromOtherGoroutineRuns(t *testing.T) {
	loop := newTestLoop(t)

	var mu sync.Mutex
	ran := false

	loop.QueueInLoop(func() {
		mu.Lock()
		ran = true
		mu.Unlock()
	})

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		r := ran
		mu.Unlock()
		if r {
			return
		}
		select {
		case <-deadline:
			t.Fatal("queued task never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestQuitStopsTheLoop(t *testing.T) {
	loop := newTestLoop(t)
	loop.Quit()

	deadline := time.Now().Add(2 * time.Second)
	for loop.looping.Load() {
		if time.Now().After(deadline) {
			t.Fatal("loop did not stop after Quit")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
