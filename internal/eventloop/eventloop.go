// Package eventloop implements the single-threaded reactor run loop of
// spec §3/§4.4: poll, dispatch channel events, drain cross-thread tasks.
// Grounded on the original muduo-lite EventLoop.h/EventLoop.cc
// (original_source/): the wakeup-fd, pending-task-queue, and
// calling-pending-while-draining design are carried over unchanged in
// spirit, replacing pthread/eventfd with a goroutine pinned to an OS thread
// via runtime.LockOSThread plus the platform wakeup fd in wakeup_*.go.
package eventloop

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyreactor/tinyreactor/internal/channel"
	"github.com/tinyreactor/tinyreactor/internal/logx"
	"github.com/tinyreactor/tinyreactor/internal/poller"
)

var (
	threadLoopsMu sync.Mutex
	threadLoops   = map[int64]*EventLoop{}
)

// EventLoop is pinned to exactly one thread for its lifetime. Every method
// that mutates channel registrations or the poller must be called from
// that thread (directly, or via RunInLoop/QueueInLoop from elsewhere).
type EventLoop struct {
	threadID int64

	looping atomic.Bool
	quit    atomic.Bool

	poller         poller.Poller
	pollReturnTime time.Time

	wakeupFd      int
	wakeupChannel *channel.Channel

	activeChannels []*channel.Channel

	mu             sync.Mutex
	pendingTasks   []func()
	callingPending atomic.Bool
}

// New constructs an EventLoop on the calling goroutine's OS thread. The
// caller must have pinned the goroutine with runtime.LockOSThread first.
// Constructing a second loop on a thread that already holds one is a fatal
// configuration error (spec §3: "at most one loop per thread").
func New() *EventLoop {
	tid := currentThreadID()

	threadLoopsMu.Lock()
	if existing, ok := threadLoops[tid]; ok && existing != nil {
		threadLoopsMu.Unlock()
		logx.Fatal("eventloop: another EventLoop already exists on thread %d", tid)
	}
	threadLoopsMu.Unlock()

	loop := &EventLoop{
		threadID: tid,
		wakeupFd: newWakeupFd(),
		poller:   poller.New(),
	}
	loop.wakeupChannel = channel.New(loop, loop.wakeupFd)
	loop.wakeupChannel.SetReadCallback(func(time.Time) { loop.handleWakeupRead() })
	loop.wakeupChannel.EnableReading()

	threadLoopsMu.Lock()
	threadLoops[tid] = loop
	threadLoopsMu.Unlock()

	logx.Debug("eventloop: created on thread %d", tid)

	return loop
}

func (l *EventLoop) handleWakeupRead() {
	wakeupDrain(l.wakeupFd)
}

// PollReturnTime is the timestamp the most recent Poll call returned.
func (l *EventLoop) PollReturnTime() time.Time { return l.pollReturnTime }

// IsInLoopGoroutine reports whether the calling goroutine's OS thread is the
// one this loop was constructed on. This is an assertion aid, not the sole
// correctness mechanism — see SPEC_FULL.md §5.
func (l *EventLoop) IsInLoopGoroutine() bool {
	return currentThreadID() == l.threadID
}

func (l *EventLoop) assertInLoopGoroutine(what string) {
	if !l.IsInLoopGoroutine() {
		panic(fmt.Sprintf("eventloop: %s called off-loop (thread %d, owner %d)", what, currentThreadID(), l.threadID))
	}
}

// Loop runs the reactor until Quit is called. It must be invoked on the
// thread the EventLoop was constructed on.
func (l *EventLoop) Loop() {
	l.assertInLoopGoroutine("Loop")

	l.looping.Store(true)
	l.quit.Store(false)
	logx.Info("eventloop: thread %d starting loop", l.threadID)

	for !l.quit.Load() {
		l.activeChannels = l.activeChannels[:0]

		returnTime, err := l.poller.Poll(poller.DefaultTimeout, &l.activeChannels)
		l.pollReturnTime = returnTime
		if err != nil {
			// EINTR is folded into a nil error by the Poller backends;
			// anything else was already logged there. Keep looping either
			// way — the loop never propagates poll errors upward.
		}

		for _, ch := range l.activeChannels {
			ch.HandleEvent(l.pollReturnTime)
		}

		l.doPendingTasks()
	}

	l.looping.Store(false)
	logx.Info("eventloop: thread %d stopped looping", l.threadID)
}

// Quit requests the loop to stop after its current iteration. Safe to call
// from any goroutine; if called off-thread it also wakes the loop so a
// pending 10-second poll wait doesn't delay shutdown.
func (l *EventLoop) Quit() {
	l.quit.Store(true)
	if !l.IsInLoopGoroutine() {
		l.Wakeup()
	}
}

// RunInLoop executes task immediately if called on the loop's own thread,
// otherwise enqueues it and wakes the loop.
func (l *EventLoop) RunInLoop(task func()) {
	if l.IsInLoopGoroutine() {
		task()
		return
	}
	l.QueueInLoop(task)
}

// QueueInLoop always enqueues task under the mutex, waking the loop if the
// caller is off-thread or if the loop is currently draining pending tasks
// (so a task enqueued by another pending task is seen on the loop's next
// wake, not after an unbounded further poll wait — spec §4.4/§9).
func (l *EventLoop) QueueInLoop(task func()) {
	l.mu.Lock()
	l.pendingTasks = append(l.pendingTasks, task)
	l.mu.Unlock()

	if !l.IsInLoopGoroutine() || l.callingPending.Load() {
		l.Wakeup()
	}
}

// doPendingTasks swaps the pending-task slice out under the lock, then runs
// the local copy without holding it, so tasks may themselves call
// QueueInLoop without deadlocking (spec §4.4/§5).
func (l *EventLoop) doPendingTasks() {
	l.callingPending.Store(true)

	l.mu.Lock()
	tasks := l.pendingTasks
	l.pendingTasks = nil
	l.mu.Unlock()

	for _, task := range tasks {
		task()
	}

	l.callingPending.Store(false)
}

// Wakeup interrupts a pending Poll wait from another thread by writing to
// the wakeup fd.
func (l *EventLoop) Wakeup() {
	wakeupWrite(l.wakeupFd)
}

// UpdateChannel routes a registration change to the poller. Must run on the
// loop's own thread.
func (l *EventLoop) UpdateChannel(ch *channel.Channel) {
	l.assertInLoopGoroutine("UpdateChannel")
	l.poller.UpdateChannel(ch)
}

// RemoveChannel routes a channel removal to the poller. Must run on the
// loop's own thread.
func (l *EventLoop) RemoveChannel(ch *channel.Channel) {
	l.assertInLoopGoroutine("RemoveChannel")
	l.poller.RemoveChannel(ch)
}

// HasChannel reports whether ch is currently registered with this loop's poller.
func (l *EventLoop) HasChannel(ch *channel.Channel) bool {
	return l.poller.HasChannel(ch)
}

// Close tears the loop down: removes the wakeup channel, closes the poller
// and wakeup fd, and releases this thread's loop-singleton slot.
func (l *EventLoop) Close() {
	l.wakeupChannel.DisableAll()
	l.wakeupChannel.Remove()
	_ = l.poller.Close()
	closeWakeupFd(l.wakeupFd)

	threadLoopsMu.Lock()
	delete(threadLoops, l.threadID)
	threadLoopsMu.Unlock()
}
