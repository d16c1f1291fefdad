//go:build darwin || freebsd || netbsd || openbsd

package poller

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/tinyreactor/tinyreactor/internal/channel"
	"github.com/tinyreactor/tinyreactor/internal/clock"
	"github.com/tinyreactor/tinyreactor/internal/logx"
)

// kqueuePoller is the BSD/Darwin backend, grounded on
// SeleniaProject-Orizon's internal/runtime/asyncio/kqueue_poller_bsd.go
// (same golang.org/x/sys/unix calling convention), adapted to this
// package's New/Added/Deleted registration state machine instead of a bare
// fd map, so both backends share spec §4.2's ADD/MOD/DEL decision in
// poller.go. EVFILT_READ/WRITE with EV_ADD (no EV_CLEAR) is level-triggered,
// matching spec's requirement.
type kqueuePoller struct {
	kq       int
	channels map[int]*channel.Channel
}

// New returns the OS-appropriate Poller backend; on BSD/Darwin this is kqueue.
func New() Poller {
	fd, err := unix.Kqueue()
	if err != nil {
		logx.Fatal("poller: kqueue() failed: %v", err)
	}
	return &kqueuePoller{kq: fd, channels: make(map[int]*channel.Channel)}
}

func (p *kqueuePoller) Poll(timeout time.Duration, active *[]*channel.Channel) (time.Time, error) {
	events := make([]unix.Kevent_t, 64)
	ts := unix.NsecToTimespec(timeout.Nanoseconds())

	n, err := unix.Kevent(p.kq, nil, events, &ts)
	now := clock.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		logx.Error("poller: kevent wait failed: %v", err)
		return now, err
	}

	seen := make(map[int]channel.Events, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)
		var ev channel.Events
		switch events[i].Filter {
		case unix.EVFILT_READ:
			ev = channel.EventRead
		case unix.EVFILT_WRITE:
			ev = channel.EventWrite
		}
		if events[i].Flags&unix.EV_ERROR != 0 {
			ev |= channel.EventError
		}
		if events[i].Flags&unix.EV_EOF != 0 {
			ev |= channel.EventHup
		}
		seen[fd] |= ev
	}

	for fd, ev := range seen {
		ch, ok := p.channels[fd]
		if !ok {
			continue
		}
		ch.SetRevents(ev)
		*active = append(*active, ch)
	}

	return now, nil
}

func (p *kqueuePoller) UpdateChannel(ch *channel.Channel) {
	switch decide(ch) {
	case actionAdd:
		p.channels[ch.Fd()] = ch
		p.apply(ch, unix.EV_ADD|unix.EV_ENABLE)
		ch.SetState(channel.StateAdded)
	case actionModify:
		p.apply(ch, unix.EV_ADD|unix.EV_ENABLE)
	case actionDelete:
		p.apply(ch, unix.EV_DELETE)
		ch.SetState(channel.StateDeleted)
	case actionNone:
	}
}

func (p *kqueuePoller) RemoveChannel(ch *channel.Channel) {
	delete(p.channels, ch.Fd())
	if ch.State() == channel.StateAdded {
		p.apply(ch, unix.EV_DELETE)
	}
	ch.SetState(channel.StateNew)
}

func (p *kqueuePoller) HasChannel(ch *channel.Channel) bool {
	_, ok := p.channels[ch.Fd()]
	return ok
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}

// apply pushes read/write filter changes matching the channel's current
// interest mask. Disabling an interest issues EV_DELETE for that filter
// only; enabling issues EV_ADD|EV_ENABLE.
func (p *kqueuePoller) apply(ch *channel.Channel, baseFlags uint16) {
	var changes []unix.Kevent_t
	readFlags, writeFlags := uint16(unix.EV_DELETE), uint16(unix.EV_DELETE)
	if baseFlags != unix.EV_DELETE {
		if ch.Interest()&channel.EventRead != 0 {
			readFlags = baseFlags
		}
		if ch.Interest()&channel.EventWrite != 0 {
			writeFlags = baseFlags
		}
	}
	changes = append(changes,
		unix.Kevent_t{Ident: uint64(ch.Fd()), Filter: unix.EVFILT_READ, Flags: readFlags},
		unix.Kevent_t{Ident: uint64(ch.Fd()), Filter: unix.EVFILT_WRITE, Flags: writeFlags},
	)
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		if baseFlags == unix.EV_DELETE {
			logx.Error("poller: kevent(DELETE) fd=%d: %v", ch.Fd(), err)
			return
		}
		logx.Fatal("poller: kevent(ADD) fd=%d: %v", ch.Fd(), err)
	}
}
