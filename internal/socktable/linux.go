//go:build linux

package socktable

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"os/exec"
	"syscall"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/mdlayher/netlink"

	"github.com/bandtop/bandtop/internal/flow"
)

const (
	sockDiagByFamily = 20 // SOCK_DIAG_BY_FAMILY
	netlinkSockDiag  = 4  // NETLINK_SOCK_DIAG

	afINET  = 2
	afINET6 = 10

	ipprotoTCP = 6
	ipprotoUDP = 17

	allTCPStates = 0xFFF
)

// inetDiagReqV2 is the wire format of a sock_diag request (56 bytes).
type inetDiagReqV2 struct {
	Family   uint8
	Protocol uint8
	Ext      uint8
	Pad      uint8
	States   uint32
	ID       inetDiagSockID
}

type inetDiagSockID struct {
	SPort  [2]byte
	DPort  [2]byte
	Src    [16]byte
	Dst    [16]byte
	If     uint32
	Cookie [2]uint32
}

// inetDiagMsg is the response header (72 bytes, before attributes).
type inetDiagMsg struct {
	Family  uint8
	State   uint8
	Timer   uint8
	Retrans uint8
	ID      inetDiagSockID
	Expires uint32
	RQueue  uint32
	WQueue  uint32
	UID     uint32
	Inode   uint32
}

// LinuxProvider enumerates sockets via netlink INET_DIAG, falling back to
// /proc/net/{tcp,tcp6,udp,udp6} text parsing transparently when the
// inet_diag kernel module is unavailable.
type LinuxProvider struct {
	conn    *netlink.Conn
	useProc bool
}

// NewProvider opens a netlink SOCK_DIAG connection and probes whether the
// kernel actually answers INET_DIAG queries (modprobe'ing tcp_diag/udp_diag
// once if the first probe fails), falling back to /proc on persistent
// failure.
func NewProvider() (*LinuxProvider, error) {
	p := &LinuxProvider{}

	conn, err := netlink.Dial(netlinkSockDiag, nil)
	if err != nil {
		log.Warn("netlink dial failed, falling back to /proc/net", "err", err)
		p.useProc = true
		return p, nil
	}

	if probeErr := probeNetlinkDiag(conn); probeErr != nil {
		loaded := false
		for _, mod := range []string{"tcp_diag", "udp_diag"} {
			if err := exec.Command("modprobe", mod).Run(); err == nil {
				loaded = true
			}
		}
		if loaded && probeNetlinkDiag(conn) == nil {
			p.conn = conn
			return p, nil
		}
		conn.Close()
		log.Warn("netlink INET_DIAG unavailable, falling back to /proc/net", "err", probeErr)
		p.useProc = true
		return p, nil
	}

	p.conn = conn
	return p, nil
}

func probeNetlinkDiag(conn *netlink.Conn) error {
	req := inetDiagReqV2{Family: afINET, Protocol: ipprotoTCP, States: allTCPStates}
	reqBytes := (*[unsafe.Sizeof(req)]byte)(unsafe.Pointer(&req))[:]
	msg := netlink.Message{
		Header: netlink.Header{Type: sockDiagByFamily, Flags: netlink.Request | netlink.Dump},
		Data:   reqBytes,
	}
	_, err := conn.Execute(msg)
	return err
}

func isNetlinkModuleError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ENOENT
	}
	var opErr *netlink.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.ENOENT)
	}
	return false
}

func (p *LinuxProvider) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Snapshot enumerates every open TCP/UDP socket and joins it against the
// /proc inode->process table, keyed by LocalSocket.
func (p *LinuxProvider) Snapshot() (map[flow.LocalSocket]flow.ProcessInfo, error) {
	var rows []socketRow
	var err error
	if p.useProc {
		rows, err = queryRowsFromProc()
	} else {
		rows, err = p.queryAllRows()
		if err != nil && isNetlinkModuleError(err) {
			log.Warn("netlink query failed at runtime, falling back to /proc/net", "err", err)
			p.useProc = true
			if p.conn != nil {
				p.conn.Close()
				p.conn = nil
			}
			rows, err = queryRowsFromProc()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("query sockets: %w", err)
	}

	inodeToProc, err := scanProcessInodes()
	if err != nil {
		return nil, fmt.Errorf("scan process inodes: %w", err)
	}

	out := make(map[flow.LocalSocket]flow.ProcessInfo, len(rows))
	for _, r := range rows {
		proc, ok := inodeToProc[r.inode]
		if !ok {
			continue
		}
		ls := flow.LocalSocket{IP: r.localIP, Port: r.localPort, Protocol: r.proto}
		out[ls] = proc
	}
	return out, nil
}

// socketRow is one entry of the kernel's socket table, local fields only
// (the remote address is not needed: process attribution is keyed on the
// local (ip, port, protocol) triple alone).
type socketRow struct {
	proto    flow.Protocol
	localIP  netip.Addr
	localPort uint16
	inode    uint64
}

func (p *LinuxProvider) queryAllRows() ([]socketRow, error) {
	var all []socketRow
	for _, af := range []uint8{afINET, afINET6} {
		rows, err := p.queryRows(af, ipprotoTCP, flow.TCP)
		if err != nil {
			return nil, fmt.Errorf("query tcp af=%d: %w", af, err)
		}
		all = append(all, rows...)
	}
	for _, af := range []uint8{afINET, afINET6} {
		rows, err := p.queryRows(af, ipprotoUDP, flow.UDP)
		if err != nil {
			continue
		}
		all = append(all, rows...)
	}
	return all, nil
}

func (p *LinuxProvider) queryRows(family, protocol uint8, proto flow.Protocol) ([]socketRow, error) {
	req := inetDiagReqV2{Family: family, Protocol: protocol, States: allTCPStates}
	reqBytes := (*[unsafe.Sizeof(req)]byte)(unsafe.Pointer(&req))[:]
	msg := netlink.Message{
		Header: netlink.Header{Type: sockDiagByFamily, Flags: netlink.Request | netlink.Dump},
		Data:   reqBytes,
	}
	msgs, err := p.conn.Execute(msg)
	if err != nil {
		return nil, err
	}

	var rows []socketRow
	for _, m := range msgs {
		r, ok := parseDiagMsg(m.Data, family, proto)
		if ok {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func parseDiagMsg(data []byte, family uint8, proto flow.Protocol) (socketRow, bool) {
	if len(data) < int(unsafe.Sizeof(inetDiagMsg{})) {
		return socketRow{}, false
	}
	msg := (*inetDiagMsg)(unsafe.Pointer(&data[0]))

	sport := binary.BigEndian.Uint16(msg.ID.SPort[:])

	var ip netip.Addr
	var ok bool
	if family == afINET {
		ip, ok = netip.AddrFromSlice(msg.ID.Src[:4])
	} else {
		ip, ok = netip.AddrFromSlice(msg.ID.Src[:])
	}
	if !ok {
		return socketRow{}, false
	}

	return socketRow{
		proto:     proto,
		localIP:   ip,
		localPort: sport,
		inode:     uint64(msg.Inode),
	}, true
}
