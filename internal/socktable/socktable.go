// Package socktable implements the Socket Table Provider (C3): periodic
// enumeration of the kernel's open-socket table, producing a
// LocalSocket -> ProcessInfo map used to attribute captured bytes to the
// process that owns the local end of each connection.
package socktable

import (
	"github.com/bandtop/bandtop/internal/flow"
)

// Provider enumerates the kernel's open sockets on demand. Implementations
// are platform-specific (linux.go, darwin.go, windows.go) but share this
// contract.
type Provider interface {
	// Snapshot returns the current LocalSocket -> ProcessInfo mapping. It is
	// called once per aggregation tick; implementations should be cheap
	// enough to run at that cadence (spec.md's default is 1s).
	Snapshot() (map[flow.LocalSocket]flow.ProcessInfo, error)

	// Close releases any held resources (netlink sockets, file handles).
	Close() error
}
