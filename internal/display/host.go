package display

import "net/netip"

// HostResolver returns a lookup function that returns ip's resolved
// hostname if present in table, else ip's textual form. The tables and the
// raw renderer take any func(netip.Addr) string; main.go passes
// engine.Engine.HostFor, which applies the same fallback to the DNS cache.
func HostResolver(table map[netip.Addr]string) func(netip.Addr) string {
	return func(ip netip.Addr) string {
		if host, ok := table[ip]; ok && host != "" {
			return host
		}
		return ip.String()
	}
}
