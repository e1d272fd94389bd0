package capture

import (
	"net/netip"
	"testing"

	"github.com/bandtop/bandtop/internal/flow"
)

func mustAddr(s string) netip.Addr {
	a, err := netip.ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

// buildIPv4TCP constructs a minimal 20-byte-IP-header + 20-byte-TCP-header
// frame, matching the layout the teacher's linux_pcap_test.go builds by hand.
func buildIPv4TCP(src, dst string, srcPort, dstPort uint16, payloadLen int) []byte {
	total := 20 + 20 + payloadLen
	pkt := make([]byte, total)
	pkt[0] = 0x45
	pkt[2] = byte(total >> 8)
	pkt[3] = byte(total)
	pkt[9] = 6 // TCP

	srcIP := netip.MustParseAddr(src).As4()
	dstIP := netip.MustParseAddr(dst).As4()
	copy(pkt[12:16], srcIP[:])
	copy(pkt[16:20], dstIP[:])

	pkt[20] = byte(srcPort >> 8)
	pkt[21] = byte(srcPort)
	pkt[22] = byte(dstPort >> 8)
	pkt[23] = byte(dstPort)
	return pkt
}

func buildIPv4UDP(src, dst string, srcPort, dstPort uint16, payloadLen int) []byte {
	total := 20 + 8 + payloadLen
	pkt := make([]byte, total)
	pkt[0] = 0x45
	pkt[2] = byte(total >> 8)
	pkt[3] = byte(total)
	pkt[9] = 17 // UDP

	srcIP := netip.MustParseAddr(src).As4()
	dstIP := netip.MustParseAddr(dst).As4()
	copy(pkt[12:16], srcIP[:])
	copy(pkt[16:20], dstIP[:])

	pkt[20] = byte(srcPort >> 8)
	pkt[21] = byte(srcPort)
	pkt[22] = byte(dstPort >> 8)
	pkt[23] = byte(dstPort)
	return pkt
}

func TestParsePacketIPv4TCPUpload(t *testing.T) {
	ifc := InterfaceInfo{Name: "eth0", IPs: []netip.Addr{mustAddr("10.0.0.1")}}
	pkt := buildIPv4TCP("10.0.0.1", "10.0.0.2", 12345, 80, 0)

	seg, ok := ParsePacket(pkt, 0, ifc, true)
	if !ok {
		t.Fatalf("ParsePacket returned ok=false")
	}
	if seg.Direction != flow.Upload {
		t.Errorf("Direction = %v, want Upload", seg.Direction)
	}
	if seg.Connection.Local.IP != mustAddr("10.0.0.1") || seg.Connection.Local.Port != 12345 {
		t.Errorf("Local = %+v, want 10.0.0.1:12345", seg.Connection.Local)
	}
	if seg.Connection.Remote.IP != mustAddr("10.0.0.2") || seg.Connection.Remote.Port != 80 {
		t.Errorf("Remote = %+v, want 10.0.0.2:80", seg.Connection.Remote)
	}
	if seg.ByteCount != 20 {
		t.Errorf("ByteCount = %d, want 20 (TCP header only)", seg.ByteCount)
	}
	if seg.InterfaceName != "eth0" {
		t.Errorf("InterfaceName = %q, want eth0", seg.InterfaceName)
	}
}

func TestParsePacketIPv4UDPDownload(t *testing.T) {
	ifc := InterfaceInfo{Name: "eth0", IPs: []netip.Addr{mustAddr("10.0.0.1")}}
	pkt := buildIPv4UDP("10.0.0.2", "10.0.0.1", 53, 5000, 12)

	seg, ok := ParsePacket(pkt, 0, ifc, true)
	if !ok {
		t.Fatalf("ParsePacket returned ok=false")
	}
	if seg.Direction != flow.Download {
		t.Errorf("Direction = %v, want Download", seg.Direction)
	}
	if seg.Connection.Local.Port != 5000 || seg.Connection.Remote.Port != 53 {
		t.Errorf("ports = local:%d remote:%d, want local:5000 remote:53", seg.Connection.Local.Port, seg.Connection.Remote.Port)
	}
}

func TestParsePacketDropsDNSWhenShowDNSFalse(t *testing.T) {
	ifc := InterfaceInfo{Name: "eth0", IPs: []netip.Addr{mustAddr("10.0.0.1")}}
	pkt := buildIPv4UDP("10.0.0.1", "8.8.8.8", 5000, 53, 12)

	_, ok := ParsePacket(pkt, 0, ifc, false)
	if ok {
		t.Fatalf("expected DNS segment to be dropped when showDNS=false")
	}

	seg, ok := ParsePacket(pkt, 0, ifc, true)
	if !ok {
		t.Fatalf("expected DNS segment to pass through when showDNS=true")
	}
	if seg.Connection.Remote.Port != 53 {
		t.Errorf("Remote.Port = %d, want 53", seg.Connection.Remote.Port)
	}
}

func TestParsePacketNeverGuardsOnByteCount(t *testing.T) {
	// A bare TCP header with no application payload still produces a
	// Segment (ByteCount counts the TCP header itself); nothing in the
	// parser requires ByteCount > 0 before emitting.
	ifc := InterfaceInfo{Name: "eth0", IPs: []netip.Addr{mustAddr("10.0.0.1")}}
	pkt := buildIPv4TCP("10.0.0.1", "10.0.0.2", 12345, 80, 0)

	seg, ok := ParsePacket(pkt, 0, ifc, true)
	if !ok {
		t.Fatalf("ParsePacket returned ok=false")
	}
	if seg.ByteCount != 20 {
		t.Errorf("ByteCount = %d, want 20", seg.ByteCount)
	}
}

func TestParsePacketIgnoresNonTCPUDP(t *testing.T) {
	ifc := InterfaceInfo{Name: "eth0", IPs: []netip.Addr{mustAddr("10.0.0.1")}}
	pkt := make([]byte, 28)
	pkt[0] = 0x45
	pkt[3] = 28
	pkt[9] = 1 // ICMP

	srcIP := netip.MustParseAddr("10.0.0.1").As4()
	dstIP := netip.MustParseAddr("10.0.0.2").As4()
	copy(pkt[12:16], srcIP[:])
	copy(pkt[16:20], dstIP[:])

	_, ok := ParsePacket(pkt, 0, ifc, true)
	if ok {
		t.Errorf("ICMP packet should not produce a Segment")
	}
}

func TestParsePacketShortPacketsIgnored(t *testing.T) {
	ifc := InterfaceInfo{Name: "eth0"}

	if _, ok := ParsePacket(nil, 0, ifc, true); ok {
		t.Error("nil packet should be ignored")
	}
	if _, ok := ParsePacket([]byte{0x45, 0, 0, 10}, 0, ifc, true); ok {
		t.Error("short IPv4 header should be ignored")
	}
}

func TestParsePacketOffsetOutOfRange(t *testing.T) {
	ifc := InterfaceInfo{Name: "lo0"}
	if _, ok := ParsePacket([]byte{1, 2, 3}, 14, ifc, true); ok {
		t.Error("offset beyond packet length should be ignored, not panic")
	}
}
