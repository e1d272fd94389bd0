//go:build linux

package socktable

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bandtop/bandtop/internal/flow"
)

// procNetFile describes one /proc/net/{tcp,tcp6,udp,udp6} file.
type procNetFile struct {
	path   string
	family uint8
	proto  flow.Protocol
}

// queryRowsFromProc parses /proc/net/{tcp,tcp6,udp,udp6} to enumerate every
// open socket when netlink INET_DIAG is unavailable. These files expose no
// per-socket byte counters, which is fine here: byte counting is the
// capture package's job, this package only attributes sockets to processes.
func queryRowsFromProc() ([]socketRow, error) {
	files := []procNetFile{
		{"/proc/net/tcp", afINET, flow.TCP},
		{"/proc/net/tcp6", afINET6, flow.TCP},
		{"/proc/net/udp", afINET, flow.UDP},
		{"/proc/net/udp6", afINET6, flow.UDP},
	}

	var all []socketRow
	for _, pf := range files {
		rows, err := parseProcNetFile(pf.path, pf.family, pf.proto)
		if err != nil {
			if pf.proto == flow.UDP {
				continue
			}
			return nil, fmt.Errorf("parse %s: %w", pf.path, err)
		}
		all = append(all, rows...)
	}
	return all, nil
}

func parseProcNetFile(path string, family uint8, proto flow.Protocol) ([]socketRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []socketRow
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() { // header line
		return nil, scanner.Err()
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r, ok := parseProcNetLine(line, family, proto)
		if ok {
			rows = append(rows, r)
		}
	}
	return rows, scanner.Err()
}

// parseProcNetLine parses one data line of /proc/net/{tcp,tcp6,udp,udp6}:
//
//	sl  local_address rem_address   st ... uid ... inode
//	0:  0100007F:0035 00000000:0000 0A ... 1000     12345 ...
func parseProcNetLine(line string, family uint8, proto flow.Protocol) (socketRow, bool) {
	fields := strings.Fields(line)
	if len(fields) < 10 {
		return socketRow{}, false
	}

	localIP, localPort, err := parseProcAddr(fields[1], family)
	if err != nil {
		return socketRow{}, false
	}

	inode, err := strconv.ParseUint(fields[9], 10, 64)
	if err != nil {
		return socketRow{}, false
	}

	return socketRow{proto: proto, localIP: localIP, localPort: localPort, inode: inode}, true
}

// parseProcAddr parses a /proc/net address "HEXIP:HEXPORT". IPv4 addresses
// are 4 bytes little-endian; IPv6 addresses are 4 little-endian uint32
// groups.
func parseProcAddr(s string, family uint8) (netip.Addr, uint16, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return netip.Addr{}, 0, fmt.Errorf("invalid address %q", s)
	}
	port, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return netip.Addr{}, 0, fmt.Errorf("invalid port: %w", err)
	}

	raw, err := hex.DecodeString(parts[0])
	if err != nil {
		return netip.Addr{}, 0, fmt.Errorf("invalid ip hex: %w", err)
	}

	var b []byte
	if family == afINET {
		if len(raw) != 4 {
			return netip.Addr{}, 0, fmt.Errorf("expected 4 bytes for AF_INET, got %d", len(raw))
		}
		b = []byte{raw[3], raw[2], raw[1], raw[0]}
	} else {
		if len(raw) != 16 {
			return netip.Addr{}, 0, fmt.Errorf("expected 16 bytes for AF_INET6, got %d", len(raw))
		}
		b = make([]byte, 16)
		for i := 0; i < 4; i++ {
			b[i*4+0] = raw[i*4+3]
			b[i*4+1] = raw[i*4+2]
			b[i*4+2] = raw[i*4+1]
			b[i*4+3] = raw[i*4+0]
		}
	}

	ip, ok := netip.AddrFromSlice(b)
	if !ok {
		return netip.Addr{}, 0, fmt.Errorf("malformed address bytes")
	}
	return ip, uint16(port), nil
}

// scanProcessInodes walks /proc/[pid]/fd to build an inode -> ProcessInfo
// map. Socket file descriptors appear as symlinks named "socket:[INODE]".
func scanProcessInodes() (map[uint64]flow.ProcessInfo, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}

	out := make(map[uint64]flow.ProcessInfo)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			continue
		}

		name, err := processName(uint32(pid))
		if err != nil {
			continue
		}

		fdDir := filepath.Join("/proc", e.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			// Process exited between the readdir and now, or we lack
			// permission to inspect it; skip silently, same as the socket
			// table being momentarily stale for that process.
			continue
		}
		info := flow.ProcessInfo{Name: name, PID: uint32(pid)}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if !strings.HasPrefix(link, "socket:[") {
				continue
			}
			inodeStr := strings.TrimSuffix(strings.TrimPrefix(link, "socket:["), "]")
			inode, err := strconv.ParseUint(inodeStr, 10, 64)
			if err != nil {
				continue
			}
			out[inode] = info
		}
	}
	return out, nil
}

// processName reads /proc/[pid]/comm for the process's short name.
func processName(pid uint32) (string, error) {
	b, err := os.ReadFile(filepath.Join("/proc", strconv.FormatUint(uint64(pid), 10), "comm"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
