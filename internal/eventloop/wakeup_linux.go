//go:build linux

package eventloop

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/tinyreactor/tinyreactor/internal/logx"
)

// newWakeupFd returns an eventfd in non-blocking, close-on-exec mode — the
// "eventfd-like object for wakeup (writes of 8-byte unsigned counters)" from
// spec §6.
func newWakeupFd() int {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		logx.Fatal("eventloop: eventfd() failed: %v", err)
	}
	return fd
}

func wakeupWrite(fd int) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	n, err := unix.Write(fd, buf[:])
	if err != nil || n != 8 {
		logx.Error("eventloop: wakeup() wrote %d bytes: %v", n, err)
	}
}

func wakeupDrain(fd int) {
	var buf [8]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil || n != 8 {
		logx.Error("eventloop: handleWakeupRead() read %d bytes: %v", n, err)
	}
}

func closeWakeupFd(fd int) {
	_ = unix.Close(fd)
}
