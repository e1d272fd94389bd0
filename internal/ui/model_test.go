package ui

import (
	"net/netip"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bandtop/bandtop/internal/display"
	"github.com/bandtop/bandtop/internal/engine"
)

func hostFor(a netip.Addr) string { return a.String() }

func TestNewDefaultsToAllThreeTables(t *testing.T) {
	m := New(engine.New(nil, nil, nil, nil), hostFor, display.BinBytes, false, nil, "")
	if len(m.order) != 3 {
		t.Fatalf("order = %v, want all 3 table kinds", m.order)
	}
	if m.iface != "all" {
		t.Errorf("iface = %q, want \"all\" when none given", m.iface)
	}
}

func TestCycleTablesAdvancesModularOffset(t *testing.T) {
	m := New(engine.New(nil, nil, nil, nil), hostFor, display.BinBytes, false, []TableKind{TableConnections, TableProcesses}, "eth0")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if m.offset != 1 {
		t.Errorf("offset after one Tab = %d, want 1", m.offset)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if m.offset != 0 {
		t.Errorf("offset after two Tabs (mod 2) = %d, want 0", m.offset)
	}
}

func TestQuitKeySetsQuittingAndReturnsTeaQuit(t *testing.T) {
	m := New(engine.New(nil, nil, nil, nil), hostFor, display.BinBytes, false, nil, "")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected a tea.Quit command on Ctrl+C")
	}
	if !next.(Model).quitting {
		t.Error("quitting = false after Ctrl+C, want true")
	}
}

func TestWindowSizeMsgSetsDimensions(t *testing.T) {
	m := New(engine.New(nil, nil, nil, nil), hostFor, display.BinBytes, false, nil, "")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(Model)
	if m.width != 100 || m.height != 40 {
		t.Errorf("width/height = %d/%d, want 100/40", m.width, m.height)
	}
}
