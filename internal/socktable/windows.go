//go:build windows

package socktable

import (
	"fmt"
	"net/netip"

	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/bandtop/bandtop/internal/flow"
)

func parseGopsutilIP(s string) (netip.Addr, error) {
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return ip, nil
}

// WindowsProvider enumerates sockets via gopsutil's wrapper over the
// GetExtendedTcpTable/GetExtendedUdpTable Windows API, joined against a
// process name snapshot, per spec.md's "enumerate sockets via the OS API and
// associate with a process snapshot" contract.
type WindowsProvider struct{}

func NewProvider() (*WindowsProvider, error) {
	return &WindowsProvider{}, nil
}

func (p *WindowsProvider) Close() error { return nil }

func (p *WindowsProvider) Snapshot() (map[flow.LocalSocket]flow.ProcessInfo, error) {
	conns, err := net.Connections("inet")
	if err != nil {
		return nil, fmt.Errorf("enumerate connections: %w", err)
	}

	names := make(map[int32]string)
	out := make(map[flow.LocalSocket]flow.ProcessInfo, len(conns))

	for _, c := range conns {
		if c.Pid == 0 || c.Laddr.IP == "" {
			continue
		}
		ip, err := parseGopsutilIP(c.Laddr.IP)
		if err != nil {
			continue
		}

		var proto flow.Protocol
		switch c.Type {
		case 1: // syscall.SOCK_STREAM
			proto = flow.TCP
		case 2: // syscall.SOCK_DGRAM
			proto = flow.UDP
		default:
			continue
		}

		name, ok := names[c.Pid]
		if !ok {
			if proc, err := process.NewProcess(c.Pid); err == nil {
				if n, err := proc.Name(); err == nil {
					name = n
				}
			}
			names[c.Pid] = name
		}
		if name == "" {
			name = flow.Unknown.Name
		}

		ls := flow.LocalSocket{IP: ip, Port: uint16(c.Laddr.Port), Protocol: proto}
		out[ls] = flow.ProcessInfo{Name: name, PID: uint32(c.Pid)}
	}

	return out, nil
}
