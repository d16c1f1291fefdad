//go:build linux || darwin || freebsd || netbsd || openbsd

package buffer

import (
	"golang.org/x/sys/unix"
)

// scatterSize is the on-stack auxiliary buffer muduo's readFd uses so a
// single readv() drains an unknown-size TCP message regardless of how small
// the steady-state buffer is.
const scatterSize = 65536

// ReadFd performs one scatter read from fd into the writable tail and, if
// the kernel had more queued than that, into a 64 KiB auxiliary buffer whose
// overflow is appended (growing storage if necessary). It returns the number
// of bytes read and the syscall error, if any (EAGAIN/EWOULDBLOCK/EINTR
// included — callers decide what is transient).
func (b *Buffer) ReadFd(fd int) (int, error) {
	var extra [scatterSize]byte

	writable := b.WritableBytes()
	iovs := [][]byte{b.buf[b.writer:len(b.buf)], extra[:]}
	if writable >= scatterSize {
		iovs = iovs[:1]
	}

	n, err := unix.Readv(fd, iovs)
	if n < 0 {
		n = 0
	}
	if err != nil {
		return n, err
	}

	switch {
	case n <= writable:
		b.writer += n
	default:
		b.writer = len(b.buf)
		b.Append(extra[:n-writable])
	}

	return n, nil
}

// WriteFd issues a single non-blocking write of the entire readable region.
// It does not advance the reader cursor; callers advance it by the returned
// count once the write is known to have been accepted.
func (b *Buffer) WriteFd(fd int) (int, error) {
	n, err := unix.Write(fd, b.Peek())
	if n < 0 {
		n = 0
	}
	return n, err
}
