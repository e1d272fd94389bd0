// Package capture implements the packet parser (C1) and the per-interface
// sniffer (C2): turning raw link-layer frames into directional transport
// Segments.
package capture

import (
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/bandtop/bandtop/internal/flow"
)

// InterfaceInfo is the subset of a capturing interface's identity the parser
// needs: its name (stamped onto every Segment) and the set of IPs it owns
// (used to compute Direction).
type InterfaceInfo struct {
	Name string
	IPs  []netip.Addr
}

func (ifc InterfaceInfo) ownsIP(ip netip.Addr) bool {
	for _, owned := range ifc.IPs {
		if owned == ip {
			return true
		}
	}
	return false
}

// ParsePacket decodes one frame at offset o into a Segment, or returns
// (Segment{}, false) if the frame is not IPv4/IPv6-over-TCP/UDP. showDNS
// controls whether segments to/from remote port 53 are dropped.
//
// Offset rule: o is 0 for most interfaces. Loopback/point-to-point captures
// on platforms whose BPF layer prepends a zeroed 14-byte Ethernet header use
// o=14 (see IsLoopbackOrPointToPoint and NewSniffer).
func ParsePacket(b []byte, o int, ifc InterfaceInfo, showDNS bool) (flow.Segment, bool) {
	if o > len(b) {
		return flow.Segment{}, false
	}
	payload := b[o:]

	if len(payload) < 1 {
		return flow.Segment{}, false
	}

	version := payload[0] >> 4
	switch version {
	case 4:
		return parseIPv4(payload, ifc, showDNS)
	case 6:
		return parseIPv6(payload, ifc, showDNS)
	}

	// Not a bare IP packet at this offset: try decoding the whole frame as
	// Ethernet and recurse into its payload.
	eth := gopacket.NewPacket(b, layers.LayerTypeEthernet, gopacket.NoCopy)
	ethLayer, ok := eth.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		return flow.Segment{}, false
	}
	switch ethLayer.EthernetType {
	case layers.EthernetTypeIPv4:
		return parseIPv4(ethLayer.Payload, ifc, showDNS)
	case layers.EthernetTypeIPv6:
		return parseIPv6(ethLayer.Payload, ifc, showDNS)
	default:
		return flow.Segment{}, false
	}
}

func parseIPv4(b []byte, ifc InterfaceInfo, showDNS bool) (flow.Segment, bool) {
	packet := gopacket.NewPacket(b, layers.LayerTypeIPv4, gopacket.NoCopy)
	ip4, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return flow.Segment{}, false
	}
	src, ok1 := netip.AddrFromSlice(ip4.SrcIP.To4())
	dst, ok2 := netip.AddrFromSlice(ip4.DstIP.To4())
	if !ok1 || !ok2 {
		return flow.Segment{}, false
	}
	return buildSegment(src, dst, ip4.Protocol, ip4.Payload, uint64(ip4.Length)-uint64(ip4.IHL)*4, ifc, showDNS)
}

func parseIPv6(b []byte, ifc InterfaceInfo, showDNS bool) (flow.Segment, bool) {
	packet := gopacket.NewPacket(b, layers.LayerTypeIPv6, gopacket.NoCopy)
	ip6, ok := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	if !ok {
		return flow.Segment{}, false
	}
	src, ok1 := netip.AddrFromSlice(ip6.SrcIP.To16())
	dst, ok2 := netip.AddrFromSlice(ip6.DstIP.To16())
	if !ok1 || !ok2 {
		return flow.Segment{}, false
	}
	return buildSegment(src, dst, ip6.NextHeader, ip6.Payload, uint64(ip6.Length), ifc, showDNS)
}

// buildSegment reads ports from the captured ipPayload; dataLength is the IP
// payload length taken from the IP header, so a frame cut short by the
// capture's snap length still counts its full on-wire payload.
func buildSegment(src, dst netip.Addr, nextProto layers.IPProtocol, ipPayload []byte, dataLength uint64, ifc InterfaceInfo, showDNS bool) (flow.Segment, bool) {
	var proto flow.Protocol
	var srcPort, dstPort uint16

	switch nextProto {
	case layers.IPProtocolTCP:
		if len(ipPayload) < 4 {
			return flow.Segment{}, false
		}
		proto = flow.TCP
		srcPort = uint16(ipPayload[0])<<8 | uint16(ipPayload[1])
		dstPort = uint16(ipPayload[2])<<8 | uint16(ipPayload[3])
	case layers.IPProtocolUDP:
		if len(ipPayload) < 4 {
			return flow.Segment{}, false
		}
		proto = flow.UDP
		srcPort = uint16(ipPayload[0])<<8 | uint16(ipPayload[1])
		dstPort = uint16(ipPayload[2])<<8 | uint16(ipPayload[3])
	default:
		return flow.Segment{}, false
	}

	direction := flow.Download
	if ifc.ownsIP(src) {
		direction = flow.Upload
	}

	var conn flow.Connection
	switch direction {
	case flow.Upload:
		conn = flow.NewConnection(dst, dstPort, src, srcPort, proto)
	case flow.Download:
		conn = flow.NewConnection(src, srcPort, dst, dstPort, proto)
	}

	if !showDNS && conn.Remote.Port == 53 {
		return flow.Segment{}, false
	}

	return flow.Segment{
		InterfaceName: ifc.Name,
		Connection:    conn,
		Direction:     direction,
		ByteCount:     dataLength,
	}, true
}
