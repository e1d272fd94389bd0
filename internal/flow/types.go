// Package flow holds the connection-identity data model shared by capture,
// socket attribution, and aggregation: the vocabulary in which a byte is
// attributed to a flow and a flow is attributed to a process.
package flow

import (
	"fmt"
	"net/netip"
)

// Protocol is the transport protocol of a Segment or Socket.
type Protocol uint8

const (
	TCP Protocol = iota
	UDP
)

func (p Protocol) String() string {
	switch p {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	default:
		return "unknown"
	}
}

// Direction says which way a frame travelled relative to the capturing
// interface.
type Direction uint8

const (
	Upload Direction = iota
	Download
)

// Socket is a bare (ip, port) pair — used for the remote side of a
// Connection, which carries no protocol of its own.
type Socket struct {
	IP   netip.Addr
	Port uint16
}

func (s Socket) String() string {
	return fmt.Sprintf("%s:%d", s.IP, s.Port)
}

// LocalSocket is the key used for process attribution: our side of a
// Connection, tagged with the transport protocol so TCP and UDP binds to
// the same (ip, port) don't collide.
type LocalSocket struct {
	IP       netip.Addr
	Port     uint16
	Protocol Protocol
}

func (s LocalSocket) String() string {
	return fmt.Sprintf("%s:%d/%s", s.IP, s.Port, s.Protocol)
}

// Connection is the direction-independent identity of a flow: two frames
// travelling opposite ways over the same 5-tuple share a Connection.
type Connection struct {
	Remote Socket
	Local  LocalSocket
}

// NewConnection builds a Connection from a decoded frame, always labeling
// "local" as the side the capturing interface owns.
func NewConnection(remote netip.Addr, remotePort uint16, localIP netip.Addr, localPort uint16, proto Protocol) Connection {
	return Connection{
		Remote: Socket{IP: remote, Port: remotePort},
		Local:  LocalSocket{IP: localIP, Port: localPort, Protocol: proto},
	}
}

// Segment is one decoded frame's contribution to counters.
type Segment struct {
	InterfaceName string
	Connection    Connection
	Direction     Direction
	ByteCount     uint64
}

// ProcessInfo identifies the process that owns a LocalSocket.
type ProcessInfo struct {
	Name string
	PID  uint32
}

// Unknown is the placeholder used when a LocalSocket cannot be attributed to
// any process after every fallback in the resolver chain is exhausted.
var Unknown = ProcessInfo{Name: "<UNKNOWN>", PID: 0}

func (p ProcessInfo) String() string {
	return fmt.Sprintf("%s[%d]", p.Name, p.PID)
}

// DisplayConnection renders a Connection the way the raw-output and table
// views print it: "<iface>:lport => host:rport (proto)".
func DisplayConnection(c Connection, ifaceName string, host func(netip.Addr) string) string {
	return fmt.Sprintf("<%s>:%d => %s:%d (%s)", ifaceName, c.Local.Port, host(c.Remote.IP), c.Remote.Port, c.Local.Protocol)
}
