// Package ui implements the Display Model's bubbletea front end. In this
// implementation bubbletea's single event loop stands in for both the
// terminal-event-handler and display-handler threads spec.md's concurrency
// model describes (see internal/engine's package doc): Model.Update reacts
// to key and resize events directly and to ticks delivered by the engine's
// Ticks channel, with no separate display-command channel of its own.
package ui

import (
	"fmt"
	"net/netip"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/bandtop/bandtop/internal/aggregate"
	"github.com/bandtop/bandtop/internal/display"
	"github.com/bandtop/bandtop/internal/engine"
)

// TableKind is one of the three rollup views; a Model cycles the order they
// render in via the Tab key.
type TableKind int

const (
	TableConnections TableKind = iota
	TableProcesses
	TableAddresses
)

// tickMsg wraps one aggregation tick for bubbletea's message pump.
type tickMsg aggregate.Rollup

// Model is the root bubbletea model for bandtop.
type Model struct {
	width  int
	height int

	eng        *engine.Engine
	hostFor    func(netip.Addr) string
	family     display.UnitFamily
	cumulative bool
	iface      string

	pauseState engine.PauseState
	rollup     aggregate.Rollup

	order  []TableKind
	offset int

	quitting bool
}

// New builds a Model. sections selects which of the three tables are shown
// (all three if empty, matching the "no flags means show everything" CLI
// default). iface is the interface name shown in the header ("all" when
// capturing on every interface).
func New(eng *engine.Engine, hostFor func(netip.Addr) string, family display.UnitFamily, cumulative bool, sections []TableKind, iface string) Model {
	if len(sections) == 0 {
		sections = []TableKind{TableConnections, TableProcesses, TableAddresses}
	}
	if iface == "" {
		iface = "all"
	}
	return Model{
		eng:     eng,
		hostFor: hostFor,
		family:  family,
		cumulative: cumulative,
		iface:   iface,
		order:   sections,
	}
}

func waitForTick(ch <-chan aggregate.Rollup) tea.Cmd {
	return func() tea.Msg {
		rollup, ok := <-ch
		if !ok {
			return tea.Quit()
		}
		return tickMsg(rollup)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForTick(m.eng.Ticks)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.rollup = aggregate.Rollup(msg)
		return m, waitForTick(m.eng.Ticks)

	case tea.KeyMsg:
		switch matchKey(msg) {
		case keyQuit:
			m.quitting = true
			m.eng.Stop()
			return m, tea.Quit
		case keyPause:
			m.pauseState = m.eng.AdvancePause(m.pauseState)
			return m, nil
		case keyCycleTables:
			if len(m.order) > 0 {
				m.offset = (m.offset + 1) % len(m.order)
			}
			return m, nil
		default:
			log.Debug("ignoring unrecognized key", "key", msg.String())
		}
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	for i := range m.order {
		kind := m.order[(i+m.offset)%len(m.order)]
		sections = append(sections, m.renderTable(kind))
	}

	body := strings.Join(sections, "\n\n")
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

func (m Model) renderHeader() string {
	state := ""
	switch m.pauseState {
	case engine.Frozen:
		state = " " + styleFrozen.Render("FROZEN")
	case engine.Paused:
		state = " " + stylePaused.Render("PAUSED")
	}
	return styleTitle.Render("bandtop") + fmt.Sprintf("  iface=%s%s", m.iface, state)
}

func (m Model) renderFooter() string {
	parts := []string{
		styleFooterKey.Render("space") + styleFooter.Render(" pause"),
		styleFooterKey.Render("tab") + styleFooter.Render(" cycle tables"),
		styleFooterKey.Render("q") + styleFooter.Render(" quit"),
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderTable(kind TableKind) string {
	var tbl display.Table
	switch kind {
	case TableConnections:
		tbl = display.BuildConnectionsTable(m.rollup, m.hostFor, m.family, m.cumulative)
	case TableProcesses:
		tbl = display.BuildProcessesTable(m.rollup, m.family, m.cumulative)
	case TableAddresses:
		tbl = display.BuildRemoteAddressesTable(m.rollup, m.hostFor, m.family, m.cumulative)
	}

	headers, rows, spacer := tbl.Render(m.width)
	sep := strings.Repeat(" ", spacer)

	var b strings.Builder
	b.WriteString(styleTitle.Render(tbl.Title))
	b.WriteString("\n")
	b.WriteString(styleHeaderCell.Render(strings.Join(headers, sep)))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(styleRow.Render(strings.Join(row, sep)))
	}
	return b.String()
}
