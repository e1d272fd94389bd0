package capture

import (
	"fmt"
	"net"
	"net/netip"
	"runtime"

	"github.com/google/gopacket/pcap"
)

// DetectDefaultInterface returns the name of the interface used for the
// default route, by dialing a UDP socket to a public address and reading
// back which local interface the kernel picked. Falls back to the first
// non-loopback UP interface with an address.
func DetectDefaultInterface() string {
	conn, err := net.Dial("udp4", "8.8.8.8:53")
	if err == nil {
		defer conn.Close()
		targetIP := conn.LocalAddr().(*net.UDPAddr).IP
		if name, ok := interfaceOwning(targetIP); ok {
			return name
		}
	}
	return fallbackInterface()
}

func interfaceOwning(target net.IP) (string, bool) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", false
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip != nil && ip.Equal(target) {
				return iface.Name, true
			}
		}
	}
	return "", false
}

func fallbackInterface() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if addrs, _ := iface.Addrs(); len(addrs) > 0 {
			return iface.Name
		}
	}
	return ""
}

// AllInterfaces returns the name of every device pcap can open. main.go does
// not call it: -i takes a single interface name, and without -i every UP
// interface with an address is captured (UpInterfacesWithIPs).
func AllInterfaces() ([]string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	names := make([]string, 0, len(devs))
	for _, d := range devs {
		names = append(names, d.Name)
	}
	return names, nil
}

// UpInterfacesWithIPs returns the names of every UP, non-loopback interface
// carrying at least one address — the default capture set when no -i flag
// is given, per spec.md §6.
func UpInterfacesWithIPs() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("enumerate interfaces: %w", err)
	}
	var names []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		names = append(names, iface.Name)
	}
	return names, nil
}

// ResolveInterface builds an InterfaceInfo for name by reading its assigned
// addresses out of the standard library's interface table (pcap's device
// list carries addresses too, but net.Interfaces is what the teacher already
// uses for this and needs no libpcap device-list round trip).
func ResolveInterface(name string) (InterfaceInfo, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return InterfaceInfo{}, fmt.Errorf("lookup interface %s: %w", name, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return InterfaceInfo{}, fmt.Errorf("list addresses for %s: %w", name, err)
	}
	info := InterfaceInfo{Name: name}
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil {
			continue
		}
		if a, ok := netip.AddrFromSlice(ip.To4()); ok {
			info.IPs = append(info.IPs, a)
			continue
		}
		if a, ok := netip.AddrFromSlice(ip.To16()); ok {
			info.IPs = append(info.IPs, a)
		}
	}
	return info, nil
}

// IsLoopbackOrPointToPoint reports whether name needs the 14-byte
// zeroed-Ethernet-header offset some platforms' BPF layer prepends to
// loopback and point-to-point captures (DLT_NULL/DLT_RAW-ish quirks on BSD
// and its descendants, including macOS). Linux emits these as DLT_RAW or
// DLT_LINUX_SLL with no such padding, so this must stay gated to BSD-derived
// platforms — applying it on Linux skips into the IP header and drops every
// frame on interfaces like tun/WireGuard/PPP.
func IsLoopbackOrPointToPoint(name string) bool {
	if runtime.GOOS != "darwin" && runtime.GOOS != "freebsd" {
		return false
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return false
	}
	return iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagPointToPoint != 0
}
