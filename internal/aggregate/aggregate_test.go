package aggregate

import (
	"net/netip"
	"testing"

	"github.com/bandtop/bandtop/internal/buffer"
	"github.com/bandtop/bandtop/internal/flow"
)

func mustAddr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func TestUpdateSingleTickPerTickMode(t *testing.T) {
	e := New(5, false)

	local := flow.LocalSocket{IP: mustAddr("10.0.0.1"), Port: 12345, Protocol: flow.TCP}
	remote := flow.Socket{IP: mustAddr("93.184.216.34"), Port: 80}
	conn := flow.Connection{Remote: remote, Local: local}

	procs := map[flow.LocalSocket]flow.ProcessInfo{local: {Name: "curl", PID: 42}}
	util := map[flow.Connection]buffer.ConnectionInfo{
		conn: {InterfaceName: "eth0", BytesUploaded: 100, BytesDownloaded: 900},
	}

	rollup := e.Update(procs, util)

	if len(rollup.Connections) != 1 {
		t.Fatalf("len(Connections) = %d, want 1", len(rollup.Connections))
	}
	row := rollup.Connections[0]
	if row.BytesUp != 100 || row.BytesDown != 900 {
		t.Errorf("row bytes = %d/%d, want 100/900 (single tick, divisor=1)", row.BytesUp, row.BytesDown)
	}
	if row.ProcessName != "curl" {
		t.Errorf("ProcessName = %q, want curl", row.ProcessName)
	}

	if len(rollup.Processes) != 1 || rollup.Processes[0].ConnectionCount != 1 {
		t.Fatalf("Processes rollup = %+v", rollup.Processes)
	}
	if len(rollup.Remotes) != 1 || rollup.Remotes[0].ConnectionCount != 1 {
		t.Fatalf("Remotes rollup = %+v", rollup.Remotes)
	}
}

func TestUpdateDivisorIsWindowLength(t *testing.T) {
	e := New(5, false)
	local := flow.LocalSocket{IP: mustAddr("10.0.0.1"), Port: 1, Protocol: flow.TCP}
	conn := flow.Connection{Remote: flow.Socket{IP: mustAddr("1.1.1.1"), Port: 53}, Local: local}
	procs := map[flow.LocalSocket]flow.ProcessInfo{local: {Name: "p", PID: 1}}

	// Tick 1: 100 bytes up. Window length becomes 1, divisor 1.
	r1 := e.Update(procs, map[flow.Connection]buffer.ConnectionInfo{
		conn: {InterfaceName: "eth0", BytesUploaded: 100},
	})
	if r1.Connections[0].BytesUp != 100 {
		t.Errorf("tick1 BytesUp = %d, want 100", r1.Connections[0].BytesUp)
	}

	// Tick 2: another 100 bytes up on the same connection. Window length 2,
	// summed bytes across window = 200, divisor 2 => 100.
	r2 := e.Update(procs, map[flow.Connection]buffer.ConnectionInfo{
		conn: {InterfaceName: "eth0", BytesUploaded: 100},
	})
	if r2.Connections[0].BytesUp != 100 {
		t.Errorf("tick2 BytesUp = %d, want 100 (200 summed / divisor 2)", r2.Connections[0].BytesUp)
	}
}

func TestUpdateCumulativeModeAccumulates(t *testing.T) {
	e := New(5, true)
	local := flow.LocalSocket{IP: mustAddr("10.0.0.1"), Port: 1, Protocol: flow.TCP}
	conn := flow.Connection{Remote: flow.Socket{IP: mustAddr("1.1.1.1"), Port: 53}, Local: local}
	procs := map[flow.LocalSocket]flow.ProcessInfo{local: {Name: "p", PID: 1}}

	e.Update(procs, map[flow.Connection]buffer.ConnectionInfo{conn: {BytesUploaded: 100}})
	r2 := e.Update(procs, map[flow.Connection]buffer.ConnectionInfo{conn: {BytesUploaded: 100}})

	if r2.TotalBytesUploaded == 0 {
		t.Fatal("cumulative total should not be zero")
	}
	// Cumulative mode sums tick totals rather than replacing, so after two
	// ticks the cumulative total strictly exceeds a single tick's average.
	if r2.TotalBytesUploaded <= 100 {
		t.Errorf("TotalBytesUploaded = %d, want > 100 under cumulative mode", r2.TotalBytesUploaded)
	}
}

func TestResolveProcessFallbackChain(t *testing.T) {
	e := New(5, false)

	v4 := netip.MustParseAddr("10.0.0.1")
	v4mapped := netip.AddrFrom16(v4.As16())

	table := map[flow.LocalSocket]flow.ProcessInfo{
		{IP: v4mapped, Port: 80, Protocol: flow.TCP}: {Name: "mapped-owner", PID: 7},
	}

	got := e.resolveProcess(table, flow.LocalSocket{IP: v4, Port: 80, Protocol: flow.TCP})
	if got.Name != "mapped-owner" {
		t.Errorf("resolveProcess via v4-mapped swap = %+v, want mapped-owner", got)
	}
}

func TestResolveProcessWildcardFallback(t *testing.T) {
	e := New(5, false)
	table := map[flow.LocalSocket]flow.ProcessInfo{
		{IP: netip.IPv4Unspecified(), Port: 443, Protocol: flow.TCP}: {Name: "listener", PID: 9},
	}
	got := e.resolveProcess(table, flow.LocalSocket{IP: mustAddr("192.168.1.5"), Port: 443, Protocol: flow.TCP})
	if got.Name != "listener" {
		t.Errorf("resolveProcess via wildcard = %+v, want listener", got)
	}
}

func TestResolveProcessOrphanFallsBackToUnknown(t *testing.T) {
	e := New(5, false)
	got := e.resolveProcess(map[flow.LocalSocket]flow.ProcessInfo{}, flow.LocalSocket{IP: mustAddr("10.0.0.9"), Port: 1, Protocol: flow.TCP})
	if got != flow.Unknown {
		t.Errorf("resolveProcess orphan = %+v, want Unknown", got)
	}
}

func TestSortAndPruneCapsAtMaxBandwidthItems(t *testing.T) {
	m := make(map[flow.Connection]*ConnectionRow)
	for i := 0; i < MaxBandwidthItems+10; i++ {
		conn := flow.Connection{
			Remote: flow.Socket{IP: mustAddr("10.0.0.1"), Port: uint16(i)},
			Local:  flow.LocalSocket{IP: mustAddr("10.0.0.2"), Port: uint16(i), Protocol: flow.TCP},
		}
		m[conn] = &ConnectionRow{Connection: conn, BytesUp: uint64(i)}
	}
	rows := sortAndPruneConnections(m)
	if len(rows) != MaxBandwidthItems {
		t.Fatalf("len(rows) = %d, want %d", len(rows), MaxBandwidthItems)
	}
	if len(m) != MaxBandwidthItems {
		t.Fatalf("backing map len = %d, want %d (pruned)", len(m), MaxBandwidthItems)
	}
	// Highest BytesUp values should survive.
	if rows[0].BytesUp < rows[len(rows)-1].BytesUp {
		t.Error("rows not sorted descending by bytes")
	}
}
