package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/bandtop/bandtop/internal/aggregate"
	"github.com/bandtop/bandtop/internal/apperr"
	"github.com/bandtop/bandtop/internal/capture"
	"github.com/bandtop/bandtop/internal/config"
	"github.com/bandtop/bandtop/internal/display"
	"github.com/bandtop/bandtop/internal/dnsresolve"
	"github.com/bandtop/bandtop/internal/engine"
	"github.com/bandtop/bandtop/internal/socktable"
	"github.com/bandtop/bandtop/internal/ui"
)

func main() {
	opts, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if opts.LogTo != "" {
		f, err := os.OpenFile(opts.LogTo, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			defer f.Close()
			log.SetOutput(f)
			log.SetLevel(verbosityLevel(opts.Verbosity))
		}
	} else {
		log.SetOutput(io.Discard)
	}

	os.Exit(apperr.ExitCode(run(opts)))
}

func verbosityLevel(v int) log.Level {
	switch {
	case v >= 2:
		return log.DebugLevel
	case v <= -1:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func run(opts config.Options) error {
	ifaceNames, err := interfacesToCapture(opts.Interface)
	if err != nil {
		return apperr.Startup(err, permissionHint())
	}

	sniffers, err := openSniffers(ifaceNames, opts.ShowDNS)
	if err != nil {
		return apperr.Startup(err, permissionHint())
	}

	provider, err := socktable.NewProvider()
	if err != nil {
		return apperr.Startup(err, permissionHint())
	}

	var dnsClient *dnsresolve.Client
	if !opts.NoResolve {
		var dnsServer netip.Addr
		if opts.HasDNSServer {
			dnsServer = opts.DNSServer
		}
		dnsClient = dnsresolve.NewClient(dnsresolve.NewSystemResolver(dnsServer))
	}

	aggEngine := aggregate.New(aggregate.DefaultWindowSize, opts.TotalUtilization)
	eng := engine.New(provider, aggEngine, dnsClient, sniffers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Run(ctx)

	if opts.Raw {
		return runRaw(eng, opts)
	}
	return runTUI(eng, opts, ifaceName(opts.Interface))
}

func interfacesToCapture(explicit string) ([]string, error) {
	if explicit != "" {
		return []string{explicit}, nil
	}
	names, err := capture.UpInterfacesWithIPs()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.New("no up interfaces with an assigned address were found")
	}
	return names, nil
}

func openSniffers(ifaceNames []string, showDNS bool) ([]*capture.Sniffer, error) {
	const snapLen = 512

	var sniffers []*capture.Sniffer
	var firstErr error
	for _, name := range ifaceNames {
		sn, err := capture.NewSniffer(name, showDNS, snapLen)
		if err != nil {
			log.Warn("failed to open capture on interface, skipping", "interface", name, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sniffers = append(sniffers, sn)
	}
	if len(sniffers) == 0 {
		return nil, fmt.Errorf("every candidate interface failed to yield a capture channel: %w", firstErr)
	}
	return sniffers, nil
}

func permissionHint() string {
	switch runtime.GOOS {
	case "linux":
		return "try running with sudo, or grant capabilities with: sudo setcap cap_net_raw,cap_net_admin+eip <binary>"
	case "darwin", "freebsd":
		return "try running with sudo"
	case "windows":
		return "try running as Administrator"
	default:
		return "try running with elevated privileges"
	}
}

func ifaceName(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return "all"
}

func sections(opts config.Options) []ui.TableKind {
	var s []ui.TableKind
	if opts.ShowConnections {
		s = append(s, ui.TableConnections)
	}
	if opts.ShowProcesses {
		s = append(s, ui.TableProcesses)
	}
	if opts.ShowAddresses {
		s = append(s, ui.TableAddresses)
	}
	return s
}

func runTUI(eng *engine.Engine, opts config.Options, iface string) error {
	model := ui.New(eng, eng.HostFor, opts.UnitFamily, opts.TotalUtilization, sections(opts), iface)
	prog := tea.NewProgram(model, tea.WithAltScreen())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		prog.Quit()
	}()

	if _, err := prog.Run(); err != nil {
		return apperr.Internal(err)
	}
	eng.Wait()
	return nil
}

func unixNow() int64 { return time.Now().Unix() }

func runRaw(eng *engine.Engine, opts config.Options) error {
	rawOpts := display.RawOptions{
		Processes:   opts.ShowProcesses,
		Connections: opts.ShowConnections,
		Addresses:   opts.ShowAddresses,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Without this, a write to a closed stdout pipe kills the process with
	// SIGPIPE instead of returning EPIPE.
	signal.Ignore(syscall.SIGPIPE)

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	// A write error is sticky in bufio.Writer, so the Flush after each tick
	// reports it and shuts the engine down once.
	write := func(line string) {
		_, _ = w.WriteString(line + "\n")
	}

	for {
		select {
		case <-sigCh:
			eng.Stop()
			eng.Wait()
			return nil
		case rollup, ok := <-eng.Ticks:
			if !ok {
				eng.Wait()
				return nil
			}
			display.OutputText(rollup, eng.HostFor, rawOpts, unixNow(), write)
			if err := w.Flush(); err != nil && errors.Is(err, syscall.EPIPE) {
				eng.Stop()
				eng.Wait()
				return apperr.Output(err)
			}
		}
	}
}
