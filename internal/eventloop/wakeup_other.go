//go:build darwin || freebsd || netbsd || openbsd

package eventloop

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/tinyreactor/tinyreactor/internal/logx"
)

// newWakeupFd returns the read end of a non-blocking, close-on-exec pipe.
// BSD/Darwin have no eventfd; a self-pipe is the standard substitute and
// still satisfies spec §9's requirement that the wakeup read always drains
// to completion regardless of triggering mode.
//
// wakeupWriteFds is keyed by read fd and consulted from whichever goroutine
// calls Wakeup/Close for that loop — other goroutines as well as the loop's
// own — and shared by every loop in the process, so it's guarded by a mutex
// rather than assumed single-threaded.
var (
	wakeupWriteFdsMu sync.Mutex
	wakeupWriteFds   = map[int]int{}
)

func newWakeupFd() int {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		logx.Fatal("eventloop: pipe2() failed: %v", err)
	}

	wakeupWriteFdsMu.Lock()
	wakeupWriteFds[fds[0]] = fds[1]
	wakeupWriteFdsMu.Unlock()

	return fds[0]
}

func wakeupWriteFd(readFd int) int {
	wakeupWriteFdsMu.Lock()
	defer wakeupWriteFdsMu.Unlock()
	return wakeupWriteFds[readFd]
}

func wakeupWrite(readFd int) {
	writeFd := wakeupWriteFd(readFd)
	if _, err := unix.Write(writeFd, []byte{1}); err != nil && err != unix.EAGAIN {
		logx.Error("eventloop: wakeup() write failed: %v", err)
	}
}

func wakeupDrain(readFd int) {
	var buf [64]byte
	for {
		n, err := unix.Read(readFd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func closeWakeupFd(readFd int) {
	writeFd := wakeupWriteFd(readFd)

	_ = unix.Close(readFd)
	_ = unix.Close(writeFd)

	wakeupWriteFdsMu.Lock()
	delete(wakeupWriteFds, readFd)
	wakeupWriteFdsMu.Unlock()
}
