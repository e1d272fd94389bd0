// Package engine implements the Concurrency Fabric (C8): the thread
// topology, pause tri-state, command channels, and shutdown sequencing that
// glue the capture, socket-attribution, aggregation, and DNS subsystems
// together. The terminal-event-handler and display-handler threads spec.md
// describes are absorbed into the bubbletea program's own event loop (see
// internal/ui); this package owns everything that keeps running underneath
// it: the update clock, the utilization tracker, and one goroutine per
// captured interface.
package engine

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bandtop/bandtop/internal/aggregate"
	"github.com/bandtop/bandtop/internal/buffer"
	"github.com/bandtop/bandtop/internal/capture"
	"github.com/bandtop/bandtop/internal/dnsresolve"
	"github.com/bandtop/bandtop/internal/socktable"
)

// updateInterval is UPDATE_INTERVAL: how often the clock thread wakes to
// produce a new tick while Running.
const updateInterval = time.Second

// cmdChanCapacity is generous enough that a human mashing keys never blocks
// on a command send; every producer here is rate-limited by input or the 1Hz
// clock, so an unbounded channel would be just as safe per spec.md §4.8.
const cmdChanCapacity = 8

// Engine owns the sniffer, clock, and tracker goroutines and the Utilization
// Buffer, Socket Table Provider, Aggregation Engine, and DNS Client they
// drive. It does not own the terminal: callers read Ticks to learn about new
// Rollups and call AdvancePause/Stop in response to UI events.
type Engine struct {
	buf      *buffer.Utilization
	provider socktable.Provider
	agg      *aggregate.Engine
	dns      *dnsresolve.Client

	sniffers []*capture.Sniffer
	cancels  []context.CancelFunc

	clockCmds   chan ClockCmd
	trackerCmds chan TrackerCmd
	kick        chan struct{}

	collecting atomic.Bool

	// Ticks delivers one Rollup per clock tick. Buffered by one so the clock
	// goroutine never blocks on a UI that is mid-render; a tick that can't
	// be delivered is dropped; the next one supersedes it.
	Ticks chan aggregate.Rollup

	wg sync.WaitGroup
}

// New builds an Engine. sniffers holds one opened Sniffer per interface to
// capture on; dns may be nil to disable reverse lookups entirely (the
// --no-resolve case).
func New(provider socktable.Provider, agg *aggregate.Engine, dns *dnsresolve.Client, sniffers []*capture.Sniffer) *Engine {
	e := &Engine{
		buf:         buffer.New(),
		provider:    provider,
		agg:         agg,
		dns:         dns,
		sniffers:    sniffers,
		clockCmds:   make(chan ClockCmd, cmdChanCapacity),
		trackerCmds: make(chan TrackerCmd, cmdChanCapacity),
		kick:        make(chan struct{}, 1),
		Ticks:       make(chan aggregate.Rollup, 1),
	}
	e.collecting.Store(true)
	return e
}

// Run starts the sniffer, ingestion-pump, clock, and tracker goroutines.
// Each sniffer gets its own cancellable context so the tracker can stop them
// independently of the parent ctx during ordinary shutdown.
func (e *Engine) Run(ctx context.Context) {
	for _, sn := range e.sniffers {
		snCtx, cancel := context.WithCancel(ctx)
		e.cancels = append(e.cancels, cancel)

		e.wg.Add(2)
		go func(sn *capture.Sniffer, snCtx context.Context) {
			defer e.wg.Done()
			sn.Run(snCtx)
		}(sn, snCtx)
		go func(sn *capture.Sniffer) {
			defer e.wg.Done()
			e.pump(sn)
		}(sn)
	}

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.runClock(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.runTracker(ctx)
	}()
}

// pump reads every Segment a sniffer produces and ingests it into the
// Utilization Buffer, unless the tracker has paused collection — in which
// case the segment is drained and discarded so the sniffer's bounded output
// channel never backs up.
func (e *Engine) pump(sn *capture.Sniffer) {
	for seg := range sn.Out {
		if e.collecting.Load() {
			e.buf.Ingest(seg)
		}
	}
}

func (e *Engine) runClock(ctx context.Context) {
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	ticking := true
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.clockCmds:
			switch cmd {
			case ClockPause:
				ticking = false
			case ClockUnpause:
				ticking = true
			case ClockStop:
				return
			}
		case <-e.kick:
			e.tick()
		case <-ticker.C:
			if ticking {
				e.tick()
			}
		}
	}
}

func (e *Engine) runTracker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.trackerCmds:
			switch cmd {
			case TrackerPause:
				e.collecting.Store(false)
			case TrackerUnpause:
				// Clear pre-pause bytes before capture resumes contributing,
				// so the first tick after Paused -> Running never bleeds in
				// stale data.
				e.buf.Reset()
				e.collecting.Store(true)
			case TrackerStop:
				for _, cancel := range e.cancels {
					cancel()
				}
				return
			}
		}
	}
}

// tick runs one aggregation cycle: snapshot the socket table, drain the
// buffer, update the Aggregation Engine, kick off reverse DNS for any newly
// seen remote addresses, and deliver the Rollup.
func (e *Engine) tick() {
	table, err := e.provider.Snapshot()
	if err != nil {
		log.Warn("socket table snapshot failed", "err", err)
		table = nil
	}
	util := e.buf.CloneAndReset()
	rollup := e.agg.Update(table, util)

	if e.dns != nil {
		ips := make([]netip.Addr, 0, len(rollup.Remotes))
		for _, r := range rollup.Remotes {
			ips = append(ips, r.IP)
		}
		e.dns.Resolve(ips)
	}

	select {
	case e.Ticks <- rollup:
	default:
		log.Debug("UI fell behind, dropping superseded tick")
	}
}

// HostFor resolves ip through the DNS client's cache, falling back to the
// textual address when there is no DNS client or no cached entry.
func (e *Engine) HostFor(ip netip.Addr) string {
	if e.dns == nil {
		return ip.String()
	}
	if host, ok := e.dns.Lookup(ip); ok && host != "" {
		return host
	}
	return ip.String()
}

// AdvancePause moves the pause tri-state forward by one step and issues the
// corresponding ClockCmd/TrackerCmd, per spec.md §4.8:
//
//	Running -> Frozen: clock pauses (display stops refreshing).
//	Frozen  -> Paused:  tracker pauses collection.
//	Paused  -> Running: both resume; an immediate tick is kicked off so the
//	                    user sees a fresh frame rather than a stale one.
func (e *Engine) AdvancePause(current PauseState) PauseState {
	next := current.Advance()
	switch next {
	case Frozen:
		e.clockCmds <- ClockPause
	case Paused:
		e.trackerCmds <- TrackerPause
	case Running:
		e.trackerCmds <- TrackerUnpause
		e.clockCmds <- ClockUnpause
		select {
		case e.kick <- struct{}{}:
		default:
		}
	}
	return next
}

// Stop initiates the shutdown sequence: Stop to the clock and tracker
// threads (the tracker in turn cancels every sniffer), then closes the DNS
// client. Call Wait afterward to join every goroutine.
func (e *Engine) Stop() {
	e.clockCmds <- ClockStop
	e.trackerCmds <- TrackerStop
	if e.dns != nil {
		e.dns.Close()
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			log.Warn("socket table provider close failed", "err", err)
		}
	}
}

// Wait blocks until every sniffer, pump, clock, and tracker goroutine has
// returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}
