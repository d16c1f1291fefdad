//go:build darwin || freebsd || netbsd || openbsd

package sockopt

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tinyreactor/tinyreactor/internal/netaddr"
)

// Accept4 accepts one connection from listenFD. BSD/Darwin have no accept4
// syscall, so non-blocking and close-on-exec are applied with separate
// fcntl calls right after accept — still before the fd is handed to any
// caller, preserving the "new sockets are non-blocking, close-on-exec"
// guarantee from spec §6.
func Accept4(listenFD int) (int, netaddr.Address, error) {
	connFD, sa, err := unix.Accept(listenFD)
	if err != nil {
		return -1, netaddr.Address{}, fmt.Errorf("sockopt: accept: %w", err)
	}
	if err := unix.SetNonblock(connFD, true); err != nil {
		unix.Close(connFD)
		return -1, netaddr.Address{}, fmt.Errorf("sockopt: set nonblocking: %w", err)
	}
	unix.CloseOnExec(connFD)
	return connFD, fromSockaddr(sa), nil
}
