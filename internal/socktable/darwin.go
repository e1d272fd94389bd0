//go:build darwin || freebsd

package socktable

import (
	"bufio"
	"fmt"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bandtop/bandtop/internal/flow"
)

// BSDProvider enumerates sockets on macOS/FreeBSD by shelling out to lsof,
// the same contract spec.md §6 documents: `lsof -n -P -i4 -i6 +c 0`.
type BSDProvider struct{}

func NewProvider() (*BSDProvider, error) {
	return &BSDProvider{}, nil
}

func (p *BSDProvider) Close() error { return nil }

func (p *BSDProvider) Snapshot() (map[flow.LocalSocket]flow.ProcessInfo, error) {
	out, err := exec.Command("lsof", "-n", "-P", "-i4", "-i6", "+c", "0").Output()
	if err != nil {
		return nil, fmt.Errorf("run lsof: %w", err)
	}
	return parseLsof(string(out)), nil
}

// parseLsof parses `lsof -i` output in its default column layout:
//
//	COMMAND   PID USER  FD TYPE DEVICE SIZE/OFF NODE NAME
//	chrome   1234 user  50u IPv4 ...        0t0  TCP 10.0.0.5:54321->93.184.216.34:443 (ESTABLISHED)
func parseLsof(output string) map[flow.LocalSocket]flow.ProcessInfo {
	out := make(map[flow.LocalSocket]flow.ProcessInfo)

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 9 {
			continue
		}
		command := fields[0]
		pid, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			continue
		}

		var proto flow.Protocol
		switch strings.ToUpper(fields[7]) {
		case "TCP":
			proto = flow.TCP
		case "UDP":
			proto = flow.UDP
		default:
			continue
		}

		localAddr := fields[8]
		if idx := strings.Index(localAddr, "->"); idx >= 0 {
			localAddr = localAddr[:idx]
		}
		ip, port, ok := parseLsofAddr(localAddr)
		if !ok {
			continue
		}

		ls := flow.LocalSocket{IP: ip, Port: port, Protocol: proto}
		out[ls] = flow.ProcessInfo{Name: command, PID: uint32(pid)}
	}
	return out
}

// parseLsofAddr parses "ip:port", "[ip6]:port", or "*:port" (any address,
// returned as 0.0.0.0).
func parseLsofAddr(addr string) (netip.Addr, uint16, bool) {
	if addr == "" || addr == "*:*" {
		return netip.Addr{}, 0, false
	}

	if strings.HasPrefix(addr, "[") {
		end := strings.Index(addr, "]")
		if end < 0 {
			return netip.Addr{}, 0, false
		}
		ip, err := netip.ParseAddr(addr[1:end])
		if err != nil {
			return netip.Addr{}, 0, false
		}
		rest := addr[end+1:]
		if !strings.HasPrefix(rest, ":") {
			return netip.Addr{}, 0, false
		}
		port, err := strconv.ParseUint(rest[1:], 10, 16)
		if err != nil {
			return netip.Addr{}, 0, false
		}
		return ip, uint16(port), true
	}

	last := strings.LastIndex(addr, ":")
	if last < 0 {
		return netip.Addr{}, 0, false
	}
	ipStr, portStr := addr[:last], addr[last+1:]
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return netip.Addr{}, 0, false
	}
	if ipStr == "*" {
		return netip.IPv4Unspecified(), uint16(port), true
	}
	ip, err := netip.ParseAddr(ipStr)
	if err != nil {
		return netip.Addr{}, 0, false
	}
	return ip, uint16(port), true
}
