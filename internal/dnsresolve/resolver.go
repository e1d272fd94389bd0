package dnsresolve

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Resolver asynchronously resolves an IP to a hostname. A zero value with
// no error and no hostname means "no PTR record" rather than failure.
type Resolver interface {
	Lookup(ctx context.Context, ip netip.Addr) (hostname string, err error)
}

// systemResolver wraps a *net.Resolver, optionally pinned to a custom
// nameserver via --dns-server.
type systemResolver struct {
	resolver *net.Resolver
}

// NewSystemResolver builds a Resolver using the OS's configured
// nameservers. If dnsServer is the zero value, the default resolver is used
// unmodified.
func NewSystemResolver(dnsServer netip.Addr) Resolver {
	if !dnsServer.IsValid() {
		return &systemResolver{resolver: net.DefaultResolver}
	}
	addr := net.JoinHostPort(dnsServer.String(), "53")
	return &systemResolver{
		resolver: &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				d := net.Dialer{}
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

func (r *systemResolver) Lookup(ctx context.Context, ip netip.Addr) (string, error) {
	names, err := r.resolver.LookupAddr(ctx, ip.String())
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", nil
	}
	host := names[0]
	if len(host) > 0 && host[len(host)-1] == '.' {
		host = host[:len(host)-1]
	}
	return host, nil
}

const (
	retryBaseDelay = time.Second
	retryMaxCount  = 2 // up to 2 retries beyond the first attempt
	lookupTimeout  = 2 * time.Second
)

// lookupWithRetry wraps a single Lookup call in cenkalti/backoff's retry
// helper: delays double from retryBaseDelay, capped at retryMaxCount extra
// attempts.
//
// On total exhaustion this falls back to the IP's own textual form rather
// than returning an error, so the cache is never left without an entry for
// an IP it was asked to resolve. This mirrors the original resolver's
// behavior exactly; flagged as intentional-but-worth-redesigning, since it
// means a failed lookup is indistinguishable from a successful one that
// happened to resolve to a dotted-quad PTR record.
func lookupWithRetry(ctx context.Context, r Resolver, ip netip.Addr) string {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryBaseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, retryMaxCount), ctx)

	var host string
	op := func() error {
		lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
		defer cancel()
		h, err := r.Lookup(lctx, ip)
		if err != nil {
			return err
		}
		host = h
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil || host == "" {
		return ip.String()
	}
	return host
}
