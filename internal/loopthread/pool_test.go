package loopthread

import (
	"runtime"
	"testing"

	"github.com/tinyreactor/tinyreactor/internal/eventloop"
)

func TestPoolRoundRobinsAcrossWorkers(t *testing.T) {
	pool := NewPool(nil, 3)
	pool.Start(nil)
	t.Cleanup(func() {
		for _, loop := range pool.AllLoops() {
			loop.Quit()
		}
	})

	seen := map[*eventloop.EventLoop]bool{}
	for i := 0; i < 6; i++ {
		seen[pool.GetNextLoop()] = true
	}

	if len(seen) != 3 {
		t.Fatalf("round robin visited %d distinct loops, want 3", len(seen))
	}
}

func TestPoolWithZeroWorkersReturnsBaseLoop(t *testing.T) {
	readyCh := make(chan *eventloop.EventLoop, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		loop := eventloop.New()
		readyCh <- loop
		loop.Loop()
	}()
	base := <-readyCh
	t.Cleanup(base.Quit)

	pool := NewPool(base, 0)
	pool.Start(nil)

	for i := 0; i < 3; i++ {
		if pool.GetNextLoop() != base {
			t.Fatal("GetNextLoop() did not return base loop when pool has zero workers")
		}
	}
}
