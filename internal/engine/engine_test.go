package engine

import (
	"net/netip"
	"testing"
	"time"

	"github.com/bandtop/bandtop/internal/aggregate"
	"github.com/bandtop/bandtop/internal/buffer"
	"github.com/bandtop/bandtop/internal/flow"
)

type fakeProvider struct {
	table map[flow.LocalSocket]flow.ProcessInfo
}

func (f *fakeProvider) Snapshot() (map[flow.LocalSocket]flow.ProcessInfo, error) {
	return f.table, nil
}
func (f *fakeProvider) Close() error { return nil }

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	if err != nil {
		t.Fatalf("ParseAddr(%q): %v", s, err)
	}
	return a
}

func TestEngineTickProducesRollupFromBufferAndProvider(t *testing.T) {
	local := flow.LocalSocket{IP: mustAddr(t, "10.0.0.1"), Port: 5555, Protocol: flow.TCP}
	provider := &fakeProvider{table: map[flow.LocalSocket]flow.ProcessInfo{
		local: {Name: "curl", PID: 7},
	}}
	e := &Engine{
		buf:         buffer.New(),
		provider:    provider,
		agg:         aggregate.New(aggregate.DefaultWindowSize, false),
		clockCmds:   make(chan ClockCmd, cmdChanCapacity),
		trackerCmds: make(chan TrackerCmd, cmdChanCapacity),
		kick:        make(chan struct{}, 1),
		Ticks:       make(chan aggregate.Rollup, 1),
	}
	e.collecting.Store(true)

	conn := flow.NewConnection(mustAddr(t, "1.2.3.4"), 443, local.IP, local.Port, flow.TCP)
	e.buf.Ingest(flow.Segment{Connection: conn, Direction: flow.Upload, ByteCount: 100, InterfaceName: "eth0"})

	e.tick()

	select {
	case rollup := <-e.Ticks:
		if len(rollup.Processes) != 1 || rollup.Processes[0].Process.Name != "curl" {
			t.Fatalf("rollup.Processes = %+v, want one row attributed to curl", rollup.Processes)
		}
	default:
		t.Fatal("tick did not deliver a Rollup on Ticks")
	}
}

func TestEngineTickDropsWhenUIFellBehind(t *testing.T) {
	e := &Engine{
		buf:      buffer.New(),
		provider: &fakeProvider{},
		agg:      aggregate.New(aggregate.DefaultWindowSize, false),
		Ticks:    make(chan aggregate.Rollup, 1),
	}
	e.Ticks <- aggregate.Rollup{} // fill the buffer so the next tick must drop
	e.tick()                     // must not block despite the full channel
}

func TestAdvancePauseRunningToFrozenSendsClockPause(t *testing.T) {
	e := &Engine{
		clockCmds:   make(chan ClockCmd, cmdChanCapacity),
		trackerCmds: make(chan TrackerCmd, cmdChanCapacity),
		kick:        make(chan struct{}, 1),
	}

	next := e.AdvancePause(Running)
	if next != Frozen {
		t.Fatalf("AdvancePause(Running) = %v, want Frozen", next)
	}
	select {
	case cmd := <-e.clockCmds:
		if cmd != ClockPause {
			t.Errorf("clockCmds received %v, want ClockPause", cmd)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a ClockPause command")
	}
}

func TestAdvancePausePausedToRunningKicksAndResumes(t *testing.T) {
	e := &Engine{
		clockCmds:   make(chan ClockCmd, cmdChanCapacity),
		trackerCmds: make(chan TrackerCmd, cmdChanCapacity),
		kick:        make(chan struct{}, 1),
	}

	next := e.AdvancePause(Paused)
	if next != Running {
		t.Fatalf("AdvancePause(Paused) = %v, want Running", next)
	}
	if got := <-e.trackerCmds; got != TrackerUnpause {
		t.Errorf("trackerCmds received %v, want TrackerUnpause", got)
	}
	if got := <-e.clockCmds; got != ClockUnpause {
		t.Errorf("clockCmds received %v, want ClockUnpause", got)
	}
	select {
	case <-e.kick:
	default:
		t.Error("expected a kick to force an immediate tick on resume")
	}
}
