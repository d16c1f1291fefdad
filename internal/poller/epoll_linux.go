//go:build linux

package poller

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tinyreactor/tinyreactor/internal/channel"
	"github.com/tinyreactor/tinyreactor/internal/clock"
	"github.com/tinyreactor/tinyreactor/internal/logx"
)

const initialEventCap = 16

// epollPoller is the concrete level-triggered backend for spec §4.2: a
// scalable OS readiness facility, addressed through epoll_create1/epoll_ctl/
// epoll_wait. Level-triggered is the default epoll mode (no EPOLLET), which
// is exactly what the spec requires.
type epollPoller struct {
	epfd     int
	channels map[int]*channel.Channel
	events   []unix.EpollEvent
}

// New returns the OS-appropriate Poller backend; on Linux this is epoll.
func New() Poller {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		logx.Fatal("poller: epoll_create1 failed: %v", err)
	}
	return &epollPoller{
		epfd:     fd,
		channels: make(map[int]*channel.Channel),
		events:   make([]unix.EpollEvent, initialEventCap),
	}
}

func toEpollEvents(interest channel.Events) uint32 {
	var e uint32
	if interest&channel.EventRead != 0 {
		e |= unix.EPOLLIN | unix.EPOLLPRI
	}
	if interest&channel.EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpollEvents(e uint32) channel.Events {
	var ev channel.Events
	if e&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		ev |= channel.EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		ev |= channel.EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		ev |= channel.EventError
	}
	if e&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		ev |= channel.EventHup
	}
	return ev
}

func (p *epollPoller) Poll(timeout time.Duration, active *[]*channel.Channel) (time.Time, error) {
	ms := int(timeout / time.Millisecond)

	n, err := unix.EpollWait(p.epfd, p.events, ms)
	now := clock.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		logx.Error("poller: epoll_wait failed: %v", err)
		return now, err
	}

	for i := 0; i < n; i++ {
		ch, ok := p.channels[int(p.events[i].Fd)]
		if !ok {
			continue
		}
		ch.SetRevents(fromEpollEvents(p.events[i].Events))
		*active = append(*active, ch)
	}

	p.events = growEvents(p.events, n)

	return now, nil
}

func (p *epollPoller) UpdateChannel(ch *channel.Channel) {
	switch decide(ch) {
	case actionAdd:
		p.channels[ch.Fd()] = ch
		p.ctl(unix.EPOLL_CTL_ADD, ch)
		ch.SetState(channel.StateAdded)
	case actionModify:
		p.ctl(unix.EPOLL_CTL_MOD, ch)
	case actionDelete:
		p.ctl(unix.EPOLL_CTL_DEL, ch)
		ch.SetState(channel.StateDeleted)
	case actionNone:
	}
}

func (p *epollPoller) RemoveChannel(ch *channel.Channel) {
	delete(p.channels, ch.Fd())
	if ch.State() == channel.StateAdded {
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, ch.Fd(), nil); err != nil {
			logx.Error("poller: epoll_ctl(DEL) fd=%d: %v", ch.Fd(), err)
		}
	}
	ch.SetState(channel.StateNew)
}

func (p *epollPoller) HasChannel(ch *channel.Channel) bool {
	_, ok := p.channels[ch.Fd()]
	return ok
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func (p *epollPoller) ctl(op int, ch *channel.Channel) {
	ev := unix.EpollEvent{Events: toEpollEvents(ch.Interest()), Fd: int32(ch.Fd())}
	if err := unix.EpollCtl(p.epfd, op, ch.Fd(), &ev); err != nil {
		// ADD/MOD failures are protocol violations at the epoll layer
		// (spec §7): fatal, since the loop can no longer make progress on
		// this fd's readiness. DEL failures are merely logged — the fd may
		// already be gone.
		if op == unix.EPOLL_CTL_DEL {
			logx.Error("poller: epoll_ctl(DEL) fd=%d: %v", ch.Fd(), err)
			return
		}
		logx.Fatal("poller: epoll_ctl(%s) fd=%d: %v", epollOpName(op), ch.Fd(), err)
	}
}

func epollOpName(op int) string {
	switch op {
	case unix.EPOLL_CTL_ADD:
		return "ADD"
	case unix.EPOLL_CTL_MOD:
		return "MOD"
	case unix.EPOLL_CTL_DEL:
		return "DEL"
	default:
		return fmt.Sprintf("OP(%d)", op)
	}
}
