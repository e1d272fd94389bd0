// Package config defines the CLI surface described in spec.md §6 and binds
// it to flags via spf13/cobra.
package config

import (
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/bandtop/bandtop/internal/display"
)

// Options is the fully parsed command line.
type Options struct {
	Interface         string
	Raw               bool
	NoResolve         bool
	ShowDNS           bool
	DNSServer         netip.Addr
	HasDNSServer      bool
	LogTo             string
	ShowProcesses     bool
	ShowConnections   bool
	ShowAddresses     bool
	UnitFamily        display.UnitFamily
	TotalUtilization  bool
	Verbosity         int // +1 per -v, -1 per -q
}

var unitFamilyNames = map[string]display.UnitFamily{
	"bin-bytes": display.BinBytes,
	"bin-bits":  display.BinBits,
	"si-bytes":  display.SiBytes,
	"si-bits":   display.SiBits,
}

// Parse builds an Options from argv, the way main.go's cobra command does,
// but factored out so tests can exercise flag parsing without a process.
func Parse(args []string) (Options, error) {
	var opts Options
	var dnsServer string
	var unitFamily string
	var verbose, quiet int

	cmd := &cobra.Command{
		Use:           "bandtop",
		Short:         "Terminal-based network utilization monitor, per process and per remote address",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			family, ok := unitFamilyNames[unitFamily]
			if !ok {
				return fmt.Errorf("unknown unit family %q", unitFamily)
			}
			opts.UnitFamily = family

			if dnsServer != "" {
				addr, err := netip.ParseAddr(dnsServer)
				if err != nil {
					return fmt.Errorf("invalid --dns-server %q: %w", dnsServer, err)
				}
				opts.DNSServer = addr
				opts.HasDNSServer = true
			}

			opts.Verbosity = verbose - quiet
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Interface, "interface", "i", "", "capture only on this interface (default: all up interfaces with IPs)")
	flags.BoolVarP(&opts.Raw, "raw", "r", false, "line-oriented output to stdout instead of the TUI")
	flags.BoolVarP(&opts.NoResolve, "no-resolve", "n", false, "skip DNS resolution")
	flags.BoolVarP(&opts.ShowDNS, "show-dns", "s", false, "do not hide DNS (port 53) traffic")
	flags.StringVarP(&dnsServer, "dns-server", "d", "", "use this DNS server instead of the system default")
	flags.StringVar(&opts.LogTo, "log-to", "", "enable debug logging to this file")
	flags.BoolVarP(&opts.ShowProcesses, "processes", "p", false, "show only the processes table")
	flags.BoolVarP(&opts.ShowConnections, "connections", "c", false, "show only the connections table")
	flags.BoolVarP(&opts.ShowAddresses, "addresses", "a", false, "show only the remote-addresses table")
	flags.StringVarP(&unitFamily, "unit-family", "u", "bin-bytes", "one of bin-bytes, bin-bits, si-bytes, si-bits")
	flags.BoolVarP(&opts.TotalUtilization, "total-utilization", "t", false, "cumulative mode: sum over the entire run instead of a sliding window")
	flags.CountVarP(&verbose, "verbose", "v", "increase verbosity (repeatable)")
	flags.CountVarP(&quiet, "quiet", "q", "decrease verbosity (repeatable)")

	if args == nil {
		// cobra reads os.Args when given nil args.
		args = []string{}
	}
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
