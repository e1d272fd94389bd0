package capture

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/gopacket/pcap"

	"github.com/bandtop/bandtop/internal/flow"
)

// packetWaitTimeout is the pcap handle's read timeout: Next() returns
// pcap.NextErrorTimeoutExpired roughly this often when no frame arrives, so
// the sniffer loop can check ctx.Done() without blocking forever.
const packetWaitTimeout = 10 * time.Millisecond

// channelResetDelay is how long the sniffer waits before reopening the pcap
// handle after a non-timeout read error, so a flapping interface doesn't spin
// the reopen loop.
const channelResetDelay = time.Second

// Sniffer reads frames from one interface and emits Segments on Out. It never
// exits on a transient read error; it backs off and reopens the capture
// handle instead. Run exits only when its ctx is cancelled.
type Sniffer struct {
	ifc     InterfaceInfo
	showDNS bool
	snap    int32
	handle  *pcap.Handle
	offset  int

	Out chan flow.Segment
}

// NewSniffer opens a live capture on ifaceName in promiscuous mode with a
// 10ms read timeout. snapLen bounds how much of each frame is captured;
// spec.md's parser only needs headers, so a few hundred bytes is enough, but
// callers may pass a larger value to also see reassembled payload boundaries.
func NewSniffer(ifaceName string, showDNS bool, snapLen int32) (*Sniffer, error) {
	ifc, err := ResolveInterface(ifaceName)
	if err != nil {
		return nil, err
	}
	handle, err := pcap.OpenLive(ifaceName, snapLen, true, packetWaitTimeout)
	if err != nil {
		return nil, err
	}
	offset := 0
	if IsLoopbackOrPointToPoint(ifaceName) {
		offset = 14
	}
	return &Sniffer{
		ifc:     ifc,
		showDNS: showDNS,
		snap:    snapLen,
		handle:  handle,
		offset:  offset,
		Out:     make(chan flow.Segment, 256),
	}, nil
}

// Run reads frames until ctx is cancelled, sending every successfully parsed
// Segment on s.Out. It closes s.Out and the underlying pcap handle before
// returning.
func (s *Sniffer) Run(ctx context.Context) {
	defer close(s.Out)
	defer s.handle.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, _, err := s.handle.ReadPacketData()
		if err != nil {
			if errors.Is(err, pcap.NextErrorTimeoutExpired) {
				continue
			}
			log.Warn("sniffer read error, reopening capture handle", "interface", s.ifc.Name, "err", err)
			if !s.sleep(ctx, channelResetDelay) {
				return
			}
			if rerr := s.reopen(); rerr != nil {
				log.Error("failed to reopen capture handle", "interface", s.ifc.Name, "err", rerr)
			}
			continue
		}

		seg, ok := ParsePacket(data, s.offset, s.ifc, s.showDNS)
		if !ok {
			continue
		}
		select {
		case s.Out <- seg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sniffer) reopen() error {
	handle, err := pcap.OpenLive(s.ifc.Name, s.snap, true, packetWaitTimeout)
	if err != nil {
		return err
	}
	s.handle.Close()
	s.handle = handle
	return nil
}

func (s *Sniffer) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
