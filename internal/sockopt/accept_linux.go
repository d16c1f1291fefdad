//go:build linux

package sockopt

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tinyreactor/tinyreactor/internal/netaddr"
)

// Accept4 accepts one connection from listenFD with SOCK_NONBLOCK|
// SOCK_CLOEXEC set atomically, per spec §4.6.
func Accept4(listenFD int) (int, netaddr.Address, error) {
	connFD, sa, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, netaddr.Address{}, fmt.Errorf("sockopt: accept4: %w", err)
	}
	return connFD, fromSockaddr(sa), nil
}
