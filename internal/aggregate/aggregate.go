// Package aggregate implements the Aggregation Engine (C6): the bounded
// sliding window over per-tick utilization snapshots, and the per-connection
// / per-process / per-remote-address rollups derived from it.
package aggregate

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/bandtop/bandtop/internal/buffer"
	"github.com/bandtop/bandtop/internal/flow"
)

// DefaultWindowSize is the sliding window length W used unless overridden.
const DefaultWindowSize = 5

// MaxBandwidthItems bounds how many rows survive pruning in each rollup
// table after sorting.
const MaxBandwidthItems = 1000

// knownOrphanCap bounds the recency list used to suppress duplicate orphan
// warnings: the oldest entry is evicted once the list would exceed this.
const knownOrphanCap = 10000

// TickRecord pairs one tick's socket-to-process snapshot with the
// Utilization Buffer contents collected during that tick.
type TickRecord struct {
	ConnectionsToProcs map[flow.LocalSocket]flow.ProcessInfo
	Utilization        map[flow.Connection]buffer.ConnectionInfo
}

// ConnectionRow is one row of the connections rollup.
type ConnectionRow struct {
	Connection    flow.Connection
	BytesUp       uint64
	BytesDown     uint64
	ProcessName   string
	InterfaceName string
}

// ProcessRow is one row of the processes rollup.
type ProcessRow struct {
	Process         flow.ProcessInfo
	BytesUp         uint64
	BytesDown       uint64
	ConnectionCount int
}

// RemoteRow is one row of the remote-addresses rollup.
type RemoteRow struct {
	IP              netip.Addr
	BytesUp         uint64
	BytesDown       uint64
	ConnectionCount int
}

// Rollup is the engine's output for one tick: sorted, pruned rows for each
// of the three tables, plus running totals.
type Rollup struct {
	Connections []ConnectionRow
	Processes   []ProcessRow
	Remotes     []RemoteRow

	TotalBytesUploaded   uint64
	TotalBytesDownloaded uint64
}

// Engine holds the sliding window and the cumulative-mode state carried
// across ticks.
type Engine struct {
	windowSize int
	window     []TickRecord // index 0 is oldest

	cumulativeMode bool

	cumConnections map[flow.Connection]*ConnectionRow
	cumProcesses   map[flow.ProcessInfo]*ProcessRow
	cumRemotes     map[netip.Addr]*RemoteRow
	cumTotalUp     uint64
	cumTotalDown   uint64

	knownOrphans  map[flow.LocalSocket]struct{}
	orphanRecency []flow.LocalSocket
}

// New creates an Engine with the given window size (spec.md's default is 5)
// and initial cumulative-mode setting.
func New(windowSize int, cumulativeMode bool) *Engine {
	if windowSize < 1 {
		windowSize = DefaultWindowSize
	}
	return &Engine{
		windowSize:     windowSize,
		cumulativeMode: cumulativeMode,
		cumConnections: make(map[flow.Connection]*ConnectionRow),
		cumProcesses:   make(map[flow.ProcessInfo]*ProcessRow),
		cumRemotes:     make(map[netip.Addr]*RemoteRow),
		knownOrphans:   make(map[flow.LocalSocket]struct{}),
	}
}

// SetCumulativeMode toggles accumulation across ticks vs. per-tick replace.
func (e *Engine) SetCumulativeMode(v bool) { e.cumulativeMode = v }

// Reset clears the window, every cumulative map, and the running totals.
func (e *Engine) Reset() {
	e.window = e.window[:0]
	e.cumConnections = make(map[flow.Connection]*ConnectionRow)
	e.cumProcesses = make(map[flow.ProcessInfo]*ProcessRow)
	e.cumRemotes = make(map[netip.Addr]*RemoteRow)
	e.cumTotalUp = 0
	e.cumTotalDown = 0
}

// Update runs one tick: pushes the new TickRecord, recomputes per-tick
// accumulators over the whole window, merges into cumulative state per
// spec.md §4.6, and returns the sorted, pruned Rollup.
func (e *Engine) Update(connectionsToProcs map[flow.LocalSocket]flow.ProcessInfo, utilization map[flow.Connection]buffer.ConnectionInfo) Rollup {
	e.window = append(e.window, TickRecord{ConnectionsToProcs: connectionsToProcs, Utilization: utilization})
	if len(e.window) > e.windowSize {
		e.window = e.window[1:]
	}

	connections := make(map[flow.Connection]*ConnectionRow)
	processes := make(map[flow.ProcessInfo]*ProcessRow)
	remotes := make(map[netip.Addr]*RemoteRow)
	var tickTotalUp, tickTotalDown uint64

	seen := make(map[flow.Connection]struct{})

	// Iterate newest to oldest: recency bias matters for orphan searches.
	// A connection's interface_name/process_name are overwritten on every
	// tick that saw it, so the oldest such tick in the window (the last one
	// iterated) wins.
	for i := len(e.window) - 1; i >= 0; i-- {
		tick := e.window[i]
		for conn, info := range tick.Utilization {
			_, alreadySeen := seen[conn]
			newConnection := !alreadySeen
			seen[conn] = struct{}{}

			cRow, ok := connections[conn]
			if !ok {
				cRow = &ConnectionRow{Connection: conn, ProcessName: flow.Unknown.Name}
				connections[conn] = cRow
			}
			cRow.BytesUp += info.BytesUploaded
			cRow.BytesDown += info.BytesDownloaded
			cRow.InterfaceName = info.InterfaceName

			rRow, ok := remotes[conn.Remote.IP]
			if !ok {
				rRow = &RemoteRow{IP: conn.Remote.IP}
				remotes[conn.Remote.IP] = rRow
			}
			rRow.BytesUp += info.BytesUploaded
			rRow.BytesDown += info.BytesDownloaded
			if newConnection {
				rRow.ConnectionCount++
			}

			tickTotalUp += info.BytesUploaded
			tickTotalDown += info.BytesDownloaded

			proc := e.resolveProcess(tick.ConnectionsToProcs, conn.Local)
			pRow, ok := processes[proc]
			if !ok {
				pRow = &ProcessRow{Process: proc}
				processes[proc] = pRow
			}
			pRow.BytesUp += info.BytesUploaded
			pRow.BytesDown += info.BytesDownloaded
			if newConnection {
				pRow.ConnectionCount++
			}
			cRow.ProcessName = proc.Name
		}
	}

	divisor := uint64(len(e.window))
	if divisor < 1 {
		divisor = 1
	}
	for _, r := range connections {
		r.BytesUp /= divisor
		r.BytesDown /= divisor
	}
	for _, r := range processes {
		r.BytesUp /= divisor
		r.BytesDown /= divisor
	}
	for _, r := range remotes {
		r.BytesUp /= divisor
		r.BytesDown /= divisor
	}
	tickTotalUp /= divisor
	tickTotalDown /= divisor

	if e.cumulativeMode {
		mergeConnections(e.cumConnections, connections)
		mergeProcesses(e.cumProcesses, processes)
		mergeRemotes(e.cumRemotes, remotes)
		e.cumTotalUp += tickTotalUp
		e.cumTotalDown += tickTotalDown
	} else {
		e.cumConnections = connections
		e.cumProcesses = processes
		e.cumRemotes = remotes
		e.cumTotalUp = tickTotalUp
		e.cumTotalDown = tickTotalDown
	}

	return Rollup{
		Connections:          sortAndPruneConnections(e.cumConnections),
		Processes:            sortAndPruneProcesses(e.cumProcesses),
		Remotes:              sortAndPruneRemotes(e.cumRemotes),
		TotalBytesUploaded:   e.cumTotalUp,
		TotalBytesDownloaded: e.cumTotalDown,
	}
}

func mergeConnections(dst map[flow.Connection]*ConnectionRow, src map[flow.Connection]*ConnectionRow) {
	for conn, row := range src {
		d, ok := dst[conn]
		if !ok {
			cp := *row
			dst[conn] = &cp
			continue
		}
		d.BytesUp += row.BytesUp
		d.BytesDown += row.BytesDown
		d.ProcessName = row.ProcessName
		d.InterfaceName = row.InterfaceName
	}
}

func mergeProcesses(dst map[flow.ProcessInfo]*ProcessRow, src map[flow.ProcessInfo]*ProcessRow) {
	for proc, row := range src {
		d, ok := dst[proc]
		if !ok {
			cp := *row
			dst[proc] = &cp
			continue
		}
		d.BytesUp += row.BytesUp
		d.BytesDown += row.BytesDown
		d.ConnectionCount = row.ConnectionCount
	}
}

func mergeRemotes(dst map[netip.Addr]*RemoteRow, src map[netip.Addr]*RemoteRow) {
	for ip, row := range src {
		d, ok := dst[ip]
		if !ok {
			cp := *row
			dst[ip] = &cp
			continue
		}
		d.BytesUp += row.BytesUp
		d.BytesDown += row.BytesDown
		d.ConnectionCount = row.ConnectionCount
	}
}

func sortAndPruneConnections(m map[flow.Connection]*ConnectionRow) []ConnectionRow {
	rows := make([]ConnectionRow, 0, len(m))
	for _, r := range m {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].BytesUp+rows[i].BytesDown > rows[j].BytesUp+rows[j].BytesDown
	})
	if len(rows) > MaxBandwidthItems {
		for _, dropped := range rows[MaxBandwidthItems:] {
			delete(m, dropped.Connection)
		}
		rows = rows[:MaxBandwidthItems]
	}
	return rows
}

func sortAndPruneProcesses(m map[flow.ProcessInfo]*ProcessRow) []ProcessRow {
	rows := make([]ProcessRow, 0, len(m))
	for _, r := range m {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].BytesUp+rows[i].BytesDown > rows[j].BytesUp+rows[j].BytesDown
	})
	if len(rows) > MaxBandwidthItems {
		for _, dropped := range rows[MaxBandwidthItems:] {
			delete(m, dropped.Process)
		}
		rows = rows[:MaxBandwidthItems]
	}
	return rows
}

func sortAndPruneRemotes(m map[netip.Addr]*RemoteRow) []RemoteRow {
	rows := make([]RemoteRow, 0, len(m))
	for _, r := range m {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].BytesUp+rows[i].BytesDown > rows[j].BytesUp+rows[j].BytesDown
	})
	if len(rows) > MaxBandwidthItems {
		for _, dropped := range rows[MaxBandwidthItems:] {
			delete(m, dropped.IP)
		}
		rows = rows[:MaxBandwidthItems]
	}
	return rows
}

// resolveProcess implements get_proc_info: direct hit, IPv4-mapped-IPv6
// swap, then wildcard substitution (0.0.0.0, then ::). Falls back to
// flow.Unknown and logs a diagnostic the first time each orphan LocalSocket
// is observed.
func (e *Engine) resolveProcess(table map[flow.LocalSocket]flow.ProcessInfo, local flow.LocalSocket) flow.ProcessInfo {
	if proc, ok := table[local]; ok {
		return proc
	}

	if swapped, ok := swapIPv4Mapped(local); ok {
		if proc, ok := table[swapped]; ok {
			return proc
		}
	}

	for _, wildcard := range wildcardsFor(local) {
		if proc, ok := table[wildcard]; ok {
			return proc
		}
	}

	e.logOrphan(table, local)
	return flow.Unknown
}

// swapIPv4Mapped tries the other representation of local.IP: if it's a bare
// IPv4 address, the IPv4-mapped-IPv6 form (::ffff:a.b.c.d); if it's already
// in IPv4-mapped-IPv6 form, the bare IPv4 form.
func swapIPv4Mapped(local flow.LocalSocket) (flow.LocalSocket, bool) {
	ip := local.IP
	if ip.Is4() {
		mapped := netip.AddrFrom16(ip.As16())
		return flow.LocalSocket{IP: mapped, Port: local.Port, Protocol: local.Protocol}, true
	}
	if ip.Is4In6() {
		return flow.LocalSocket{IP: ip.Unmap(), Port: local.Port, Protocol: local.Protocol}, true
	}
	return flow.LocalSocket{}, false
}

var (
	wildcardV4 = netip.IPv4Unspecified()
	wildcardV6 = netip.IPv6Unspecified()
)

func wildcardsFor(local flow.LocalSocket) []flow.LocalSocket {
	return []flow.LocalSocket{
		{IP: wildcardV4, Port: local.Port, Protocol: local.Protocol},
		{IP: wildcardV6, Port: local.Port, Protocol: local.Protocol},
	}
}

// logOrphan records local in the bounded recency list and, the first time it
// is seen, logs a diagnostic hinting at a possible owner: another socket in
// the same table sharing (port, protocol) that does have a process.
func (e *Engine) logOrphan(table map[flow.LocalSocket]flow.ProcessInfo, local flow.LocalSocket) {
	if _, ok := e.knownOrphans[local]; ok {
		return
	}
	e.knownOrphans[local] = struct{}{}
	e.orphanRecency = append(e.orphanRecency, local)
	if len(e.orphanRecency) > knownOrphanCap {
		oldest := e.orphanRecency[0]
		e.orphanRecency = e.orphanRecency[1:]
		delete(e.knownOrphans, oldest)
	}

	for candidate, proc := range table {
		if candidate.Port == local.Port && candidate.Protocol == local.Protocol && candidate != local {
			log.Warn("socket owner not found directly, but a similar socket exists",
				"local", local, "possible_owner", proc, "possible_owner_socket", candidate,
				"hint", fmt.Sprintf("%s looks similar but local ip doesn't match", candidate))
			return
		}
	}
	log.Warn("could not determine owning process for socket", "local", local)
}
