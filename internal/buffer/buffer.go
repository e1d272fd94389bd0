// Package buffer implements the Utilization Buffer (C4): the single shared
// Connection -> ConnectionInfo map that sniffer goroutines write into and the
// aggregation tick handler drains once per tick.
package buffer

import (
	"sync"

	"github.com/bandtop/bandtop/internal/flow"
)

// ConnectionInfo is the per-tick counter pair for one Connection.
type ConnectionInfo struct {
	InterfaceName    string
	BytesUploaded    uint64
	BytesDownloaded  uint64
}

// Utilization is a mutex-protected Connection -> ConnectionInfo map. Many
// sniffer goroutines call Ingest concurrently; exactly one goroutine (the
// aggregation tick handler) calls CloneAndReset once per tick.
type Utilization struct {
	mu          sync.Mutex
	connections map[flow.Connection]ConnectionInfo
}

// New creates an empty Utilization buffer.
func New() *Utilization {
	return &Utilization{connections: make(map[flow.Connection]ConnectionInfo)}
}

// Ingest adds seg's byte count into the entry for seg.Connection, creating it
// if necessary. O(1) expected; the lock is held only for the duration of one
// map operation.
func (u *Utilization) Ingest(seg flow.Segment) {
	u.mu.Lock()
	defer u.mu.Unlock()

	info := u.connections[seg.Connection]
	info.InterfaceName = seg.InterfaceName
	switch seg.Direction {
	case flow.Upload:
		info.BytesUploaded += seg.ByteCount
	case flow.Download:
		info.BytesDownloaded += seg.ByteCount
	}
	u.connections[seg.Connection] = info
}

// CloneAndReset returns a snapshot of the current map and atomically clears
// it. Called exactly once per tick.
func (u *Utilization) CloneAndReset() map[flow.Connection]ConnectionInfo {
	u.mu.Lock()
	defer u.mu.Unlock()

	clone := make(map[flow.Connection]ConnectionInfo, len(u.connections))
	for k, v := range u.connections {
		clone[k] = v
	}
	clear(u.connections)
	return clone
}

// Reset clears the buffer without returning its contents. Used by the
// utilization tracker when transitioning Paused -> Running, so that capture
// resumed after a pause does not bleed pre-pause bytes into the first tick.
func (u *Utilization) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	clear(u.connections)
}
