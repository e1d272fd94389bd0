package display

import (
	"fmt"
	"net/netip"

	"github.com/bandtop/bandtop/internal/aggregate"
	"github.com/bandtop/bandtop/internal/flow"
)

// RawOptions selects which sections OutputText emits. If all three are
// false, every section is emitted (the teacher's "no flags means show
// everything" default).
type RawOptions struct {
	Processes   bool
	Connections bool
	Addresses   bool
}

// OutputText renders one tick of rollup as the raw line-oriented grammar
// documented in spec.md §6, writing each line via write. timestamp is a Unix
// epoch second, passed in rather than read from the clock so this function
// stays pure and testable.
func OutputText(rollup aggregate.Rollup, hostFor func(netip.Addr) string, opts RawOptions, timestamp int64, write func(string)) {
	noTraffic := true

	outputProcesses := func() {
		for _, p := range rollup.Processes {
			write(fmt.Sprintf(
				"process: <%d> %q up/down Bps: %d/%d connections: %d",
				timestamp, p.Process.Name, p.BytesUp, p.BytesDown, p.ConnectionCount,
			))
			noTraffic = false
		}
	}
	outputConnections := func() {
		for _, c := range rollup.Connections {
			write(fmt.Sprintf(
				"connection: <%d> %s up/down Bps: %d/%d process: %q",
				timestamp, flow.DisplayConnection(c.Connection, c.InterfaceName, hostFor), c.BytesUp, c.BytesDown, c.ProcessName,
			))
			noTraffic = false
		}
	}
	outputAddresses := func() {
		for _, r := range rollup.Remotes {
			write(fmt.Sprintf(
				"remote_address: <%d> %s up/down Bps: %d/%d connections: %d",
				timestamp, hostFor(r.IP), r.BytesUp, r.BytesDown, r.ConnectionCount,
			))
			noTraffic = false
		}
	}

	write("Refreshing:")

	switch {
	case opts.Processes || opts.Connections || opts.Addresses:
		if opts.Processes {
			outputProcesses()
		}
		if opts.Connections {
			outputConnections()
		}
		if opts.Addresses {
			outputAddresses()
		}
	default:
		outputProcesses()
		outputConnections()
		outputAddresses()
	}

	if noTraffic {
		write("<NO TRAFFIC>")
	}

	write("")
}
