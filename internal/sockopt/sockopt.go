// Package sockopt wraps the raw socket syscalls the Acceptor and
// TcpConnection need: non-blocking/close-on-exec socket creation, bind,
// listen, getsockname, shutdown-for-write, and SO_ERROR retrieval. Grounded
// on the original muduo-lite Socket.cc (original_source/, referenced from
// Acceptor.cc/TcpConnection.h), reworked onto golang.org/x/sys/unix the same
// way SeleniaProject-Orizon's kqueue backend already calls raw unix syscalls
// rather than going through net.Conn.
package sockopt

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tinyreactor/tinyreactor/internal/netaddr"
)

// ListenBacklog is the fixed listen backlog per spec §6.
const ListenBacklog = 1024

// NewListenSocket creates a non-blocking, close-on-exec IPv4 TCP listen
// socket bound to addr, with SO_REUSEADDR always on and SO_REUSEPORT on
// when reusePort is requested.
func NewListenSocket(addr netaddr.Address, reusePort bool) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("sockopt: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("sockopt: SO_REUSEADDR: %w", err)
	}
	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("sockopt: SO_REUSEPORT: %w", err)
		}
	}

	sa := &unix.SockaddrInet4{Port: int(addr.Port), Addr: addr.IP}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("sockopt: bind: %w", err)
	}

	return fd, nil
}

// Listen begins accepting connections on a listen socket created by
// NewListenSocket.
func Listen(fd int) error {
	if err := unix.Listen(fd, ListenBacklog); err != nil {
		return fmt.Errorf("sockopt: listen: %w", err)
	}
	return nil
}

// GetSockName returns the local address bound to fd.
func GetSockName(fd int) (netaddr.Address, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return netaddr.Address{}, fmt.Errorf("sockopt: getsockname: %w", err)
	}
	return fromSockaddr(sa), nil
}

func fromSockaddr(sa unix.Sockaddr) netaddr.Address {
	inet4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return netaddr.Address{}
	}
	var a netaddr.Address
	a.IP = inet4.Addr
	a.Port = uint16(inet4.Port)
	return a
}

// SetTCPNoDelay toggles Nagle's algorithm. Not set by default, per spec §6.
func SetTCPNoDelay(fd int, on bool) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(on))
}

// SetKeepAlive toggles TCP keepalive. Not set by default, per spec §6.
func SetKeepAlive(fd int, on bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(on))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ShutdownWrite half-closes the write direction, per spec §4.7's shutdown path.
func ShutdownWrite(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_WR)
}

// SocketError retrieves and clears the socket's pending SO_ERROR, for the
// handle_error path in spec §4.7.
func SocketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

// Write issues a single write syscall, used by TcpConnection's direct-write
// fast path in send_in_loop.
func Write(fd int, data []byte) (int, error) {
	n, err := unix.Write(fd, data)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Close closes fd.
func Close(fd int) error {
	return unix.Close(fd)
}
