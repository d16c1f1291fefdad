// Package poller is the abstract readiness source behind spec §4.2: given a
// timeout, it returns the channels whose registered interests have become
// ready, in level-triggered mode. Grounded on the original muduo-lite
// EpollPoller.cc (original_source/) and on SeleniaProject-Orizon's
// kqueue_poller_bsd.go, which already calls golang.org/x/sys/unix directly
// for a BSD kqueue backend — the pattern this package generalizes to a real
// Linux epoll backend and applies level-triggered semantics to both.
package poller

import (
	"time"

	"github.com/tinyreactor/tinyreactor/internal/channel"
)

// DefaultTimeout is the fixed poll wait used by EventLoop.Loop, per spec
// §4.2/§4.4: long enough to avoid a busy spin, short enough that quit() is
// observed promptly even without an external wakeup.
const DefaultTimeout = 10 * time.Second

// Poller abstracts the OS-specific readiness facility.
type Poller interface {
	// Poll waits up to timeout for ready channels, appends them to active,
	// and returns the time the wait returned.
	Poll(timeout time.Duration, active *[]*channel.Channel) (time.Time, error)
	UpdateChannel(ch *channel.Channel)
	RemoveChannel(ch *channel.Channel)
	HasChannel(ch *channel.Channel) bool
	Close() error
}

// action is the ADD/MODIFY/DELETE decision UpdateChannel must make, derived
// purely from the channel's registration state and interest mask — the part
// of spec §4.2 that does not depend on which OS facility backs it.
type action int

const (
	actionAdd action = iota
	actionModify
	actionDelete
	actionNone
)

// decide implements: a New or Deleted channel with any interest is ADDed; an
// Added channel with empty interest is DELeted; an Added channel with
// non-empty interest is MODified. A New channel with no interest is a no-op
// (nothing to register yet).
func decide(ch *channel.Channel) action {
	switch ch.State() {
	case channel.StateNew, channel.StateDeleted:
		if ch.IsNoneEvent() {
			return actionNone
		}
		return actionAdd
	case channel.StateAdded:
		if ch.IsNoneEvent() {
			return actionDelete
		}
		return actionModify
	default:
		return actionNone
	}
}

// growEvents doubles cap when the OS call filled every slot, per spec §4.2
// ("if the returned event count equals the current event-array capacity,
// the array doubles before the next call").
func growEvents[T any](events []T, n int) []T {
	if n == len(events) {
		return make([]T, len(events)*2)
	}
	return events
}
