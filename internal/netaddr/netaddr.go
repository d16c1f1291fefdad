// Package netaddr is the IPv4 address value type the reactor core treats as
// an external collaborator: something convertible to/from a host sockaddr,
// with no invariants of its own beyond parse/format round-tripping.
package netaddr

import (
	"fmt"
	"net"
)

// Address is an IPv4 host:port pair.
type Address struct {
	IP   [4]byte
	Port uint16
}

// Parse builds an Address from a "host:port" string, resolving host to IPv4.
func Parse(hostPort string) (Address, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Address{}, fmt.Errorf("netaddr: %w", err)
	}

	ipAddr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return Address{}, fmt.Errorf("netaddr: resolve %q: %w", host, err)
	}

	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return Address{}, fmt.Errorf("netaddr: bad port %q: %w", port, err)
	}

	var a Address
	copy(a.IP[:], ipAddr.IP.To4())
	a.Port = uint16(p)

	return a, nil
}

// FromTCPAddr converts a *net.TCPAddr (as returned by getsockname/accept4's
// sockaddr) into an Address. Only the IPv4 form is kept, per spec scope.
func FromTCPAddr(a *net.TCPAddr) Address {
	var out Address
	if a == nil {
		return out
	}
	if ip4 := a.IP.To4(); ip4 != nil {
		copy(out.IP[:], ip4)
	}
	out.Port = uint16(a.Port)
	return out
}

// String renders the address as "a.b.c.d:port".
func (a Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
}

// ToTCPAddr converts back to the standard library representation, e.g. for
// net.ResolveTCPAddr-compatible APIs used by socket helpers.
func (a Address) ToTCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: net.IPv4(a.IP[0], a.IP[1], a.IP[2], a.IP[3]), Port: int(a.Port)}
}
