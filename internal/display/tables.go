package display

import (
	"net/netip"
	"strconv"

	"github.com/bandtop/bandtop/internal/aggregate"
	"github.com/bandtop/bandtop/internal/flow"
)

// Table is one tick's fully-built table: a title, the width cutoffs that
// select a Layout for a given terminal width, and the rendered rows for
// every logical column (column selection happens at render time, once the
// available width is known).
type Table struct {
	Title       string
	Cutoffs     []WidthCutoff
	ColumnNames []string
	Rows        [][]string
	ColumnsFor  func(Layout) []int
}

// dataOrRateLabel is "Data (Up / Down)" in cumulative mode, "Rate (Up /
// Down)" otherwise — the one header that changes between modes.
func dataOrRateLabel(cumulative bool) string {
	if cumulative {
		return "Data (Up / Down)"
	}
	return "Rate (Up / Down)"
}

// BuildConnectionsTable builds the "Utilization by connection" table.
func BuildConnectionsTable(rollup aggregate.Rollup, hostFor func(netip.Addr) string, family UnitFamily, cumulative bool) Table {
	rows := make([][]string, 0, len(rollup.Connections))
	for _, c := range rollup.Connections {
		rows = append(rows, []string{
			flow.DisplayConnection(c.Connection, c.InterfaceName, hostFor),
			c.ProcessName,
			FormatUpDown(c.BytesUp, c.BytesDown, family),
		})
	}
	return Table{
		Title: "Utilization by connection",
		Cutoffs: []WidthCutoff{
			{0, Layout{32, 18}},
			{80, Layout{36, 12, 18}},
			{100, Layout{54, 18, 22}},
			{120, Layout{72, 24, 22}},
		},
		ColumnNames: []string{"Connection", "Process", dataOrRateLabel(cumulative)},
		Rows:        rows,
		ColumnsFor: func(l Layout) []int {
			switch len(l) {
			case 2:
				return []int{0, 2}
			default:
				return []int{0, 1, 2}
			}
		},
	}
}

// BuildProcessesTable builds the "Utilization by process name" table.
func BuildProcessesTable(rollup aggregate.Rollup, family UnitFamily, cumulative bool) Table {
	rows := make([][]string, 0, len(rollup.Processes))
	for _, p := range rollup.Processes {
		rows = append(rows, []string{
			p.Process.Name,
			strconv.FormatUint(uint64(p.Process.PID), 10),
			strconv.Itoa(p.ConnectionCount),
			FormatUpDown(p.BytesUp, p.BytesDown, family),
		})
	}
	return Table{
		Title: "Utilization by process name",
		Cutoffs: []WidthCutoff{
			{0, Layout{16, 18}},
			{50, Layout{16, 12, 20}},
			{60, Layout{24, 12, 20}},
			{80, Layout{28, 12, 12, 24}},
		},
		ColumnNames: []string{"Process", "PID", "Connections", dataOrRateLabel(cumulative)},
		Rows:        rows,
		ColumnsFor: func(l Layout) []int {
			switch len(l) {
			case 2:
				return []int{0, 3}
			case 3:
				return []int{0, 2, 3}
			default:
				return []int{0, 1, 2, 3}
			}
		},
	}
}

// BuildRemoteAddressesTable builds the "Utilization by remote address"
// table.
func BuildRemoteAddressesTable(rollup aggregate.Rollup, hostFor func(netip.Addr) string, family UnitFamily, cumulative bool) Table {
	rows := make([][]string, 0, len(rollup.Remotes))
	for _, r := range rollup.Remotes {
		rows = append(rows, []string{
			hostFor(r.IP),
			strconv.Itoa(r.ConnectionCount),
			FormatUpDown(r.BytesUp, r.BytesDown, family),
		})
	}
	return Table{
		Title: "Utilization by remote address",
		Cutoffs: []WidthCutoff{
			{0, Layout{16, 16}},
			{40, Layout{20, 16}},
			{60, Layout{24, 10, 20}},
			{100, Layout{54, 16, 24}},
		},
		ColumnNames: []string{"Remote Address", "Connections", dataOrRateLabel(cumulative)},
		Rows:        rows,
		ColumnsFor: func(l Layout) []int {
			switch len(l) {
			case 2:
				return []int{0, 2}
			default:
				return []int{0, 1, 2}
			}
		},
	}
}

// Render resolves t's layout against available width and returns the header
// labels and truncated row cells ready to hand to a renderer.
func (t Table) Render(available int) (headers []string, rows [][]string, spacer int) {
	layout := SelectLayout(t.Cutoffs, available)
	computed := ComputeActualWidths(layout, available)
	columns := t.ColumnsFor(layout)

	headers = make([]string, len(columns))
	for i, col := range columns {
		headers[i] = t.ColumnNames[col]
	}

	rows = make([][]string, len(t.Rows))
	for ri, rowData := range t.Rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = TruncateMiddle(rowData[col], computed.Widths[i])
		}
		rows[ri] = cells
	}

	return headers, rows, computed.Spacer
}
