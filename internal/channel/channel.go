// Package channel implements the binding between a file descriptor, its
// registered interest mask, the most recently reported readiness mask, and
// the four dispatch callbacks, per spec §3/§4.3. Grounded on the original
// muduo-lite Channel.h/Channel.cc (original_source/).
package channel

import "time"

// Events is a bitmask of I/O conditions. Its bit values are its own, not
// epoll's: each Poller backend translates the OS readiness flags it gets
// (EPOLLIN et al., kqueue filters) into this mask.
type Events uint32

const (
	EventNone Events = 0
	EventRead Events = 1 << iota
	EventWrite
	EventError
	EventHup
)

// State is a channel's registration state with its Poller.
type State int

const (
	// StateNew means the channel has never been added to a Poller, or was
	// removed via RemoveChannel (which resets it back to New).
	StateNew State = iota
	// StateAdded means the channel is currently registered.
	StateAdded
	// StateDeleted means the channel was added, then had its interest
	// cleared to none (DEL'd from the poller) but not fully removed.
	StateDeleted
)

// Loop is the subset of EventLoop a Channel needs: routing registration
// changes to the poller. Declared here (rather than imported) so this leaf
// package has no dependency on eventloop, avoiding an import cycle — the
// EventLoop type satisfies this interface structurally.
type Loop interface {
	UpdateChannel(ch *Channel)
	RemoveChannel(ch *Channel)
}

// Tie is a liveness probe a higher-level owner (TcpConnection) installs on a
// Channel so that an event delivered after the owner has logically torn
// itself down — but before the channel was removed from the poller — is
// dropped instead of running stale callbacks. This models muduo's
// weak_ptr-guarded dispatch without requiring shared_ptr-style reference
// counting: Go's GC already rules out use-after-free, so what this guards
// against is a Channel whose fd has already been closed and callbacks that
// assume otherwise, within the same poll iteration (see DESIGN.md).
type Tie interface {
	Alive() bool
}

// Channel is owned by exactly one EventLoop and must never outlive it.
type Channel struct {
	loop  Loop
	fd    int
	index State

	interest Events
	revents  Events

	tie  Tie
	tied bool

	readCallback  func(receivedAt time.Time)
	writeCallback func()
	closeCallback func()
	errorCallback func()
}

// New creates a Channel for fd, bound to loop. It is not registered with any
// Poller until an interest is enabled.
func New(loop Loop, fd int) *Channel {
	return &Channel{loop: loop, fd: fd, index: StateNew}
}

// Fd returns the underlying file descriptor.
func (c *Channel) Fd() int { return c.fd }

// Interest returns the currently registered interest mask.
func (c *Channel) Interest() Events { return c.interest }

// State returns the channel's current Poller registration state.
func (c *Channel) State() State { return c.index }

// SetState is called by the Poller backend to record ADD/MOD/DEL outcomes.
func (c *Channel) SetState(s State) { c.index = s }

// SetRevents records the readiness mask the Poller reported this round.
func (c *Channel) SetRevents(ev Events) { c.revents = ev }

// Revents returns the most recently reported readiness mask.
func (c *Channel) Revents() Events { return c.revents }

// SetReadCallback installs the callback fired on EventRead.
func (c *Channel) SetReadCallback(cb func(time.Time)) { c.readCallback = cb }

// SetWriteCallback installs the callback fired on EventWrite.
func (c *Channel) SetWriteCallback(cb func()) { c.writeCallback = cb }

// SetCloseCallback installs the callback fired on hangup-without-readable.
func (c *Channel) SetCloseCallback(cb func()) { c.closeCallback = cb }

// SetErrorCallback installs the callback fired on EventError.
func (c *Channel) SetErrorCallback(cb func()) { c.errorCallback = cb }

// Tie installs a liveness probe; see the Tie type doc.
func (c *Channel) Tie(t Tie) {
	c.tie = t
	c.tied = true
}

// EnableReading adds EventRead to the interest mask and pushes the change.
func (c *Channel) EnableReading() {
	c.interest |= EventRead
	c.update()
}

// DisableReading removes EventRead from the interest mask and pushes the change.
func (c *Channel) DisableReading() {
	c.interest &^= EventRead
	c.update()
}

// EnableWriting adds EventWrite to the interest mask and pushes the change.
func (c *Channel) EnableWriting() {
	c.interest |= EventWrite
	c.update()
}

// DisableWriting removes EventWrite from the interest mask and pushes the change.
func (c *Channel) DisableWriting() {
	c.interest &^= EventWrite
	c.update()
}

// DisableAll clears the interest mask entirely and pushes the change.
func (c *Channel) DisableAll() {
	c.interest = EventNone
	c.update()
}

// IsNoneEvent reports whether the channel currently has no registered interest.
func (c *Channel) IsNoneEvent() bool { return c.interest == EventNone }

// IsWriting reports whether EventWrite is currently registered.
func (c *Channel) IsWriting() bool { return c.interest&EventWrite != 0 }

// IsReading reports whether EventRead is currently registered.
func (c *Channel) IsReading() bool { return c.interest&EventRead != 0 }

func (c *Channel) update() { c.loop.UpdateChannel(c) }

// Remove unregisters the channel from its loop's poller entirely.
func (c *Channel) Remove() { c.loop.RemoveChannel(c) }

// HandleEvent dispatches the callbacks whose reported-events bit is set, in
// the fixed order required by spec §4.3: hangup, error, read, write. If the
// channel is tied and its owner is no longer alive, no callbacks run.
func (c *Channel) HandleEvent(receivedAt time.Time) {
	if c.tied {
		if c.tie == nil || !c.tie.Alive() {
			return
		}
	}
	c.handleEventGuarded(receivedAt)
}

func (c *Channel) handleEventGuarded(receivedAt time.Time) {
	if c.revents&EventHup != 0 && c.revents&EventRead == 0 {
		if c.closeCallback != nil {
			c.closeCallback()
		}
	}
	if c.revents&EventError != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
	}
	if c.revents&(EventRead) != 0 {
		if c.readCallback != nil {
			c.readCallback(receivedAt)
		}
	}
	if c.revents&EventWrite != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	}
}
