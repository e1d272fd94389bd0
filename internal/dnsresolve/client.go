package dnsresolve

import (
	"context"
	"net/netip"
	"sync"

	"github.com/charmbracelet/log"
)

// workChannelCapacity bounds the client's internal work queue. A batch that
// would overflow it is discarded, with a warning logged per dropped IP: the
// caller (the aggregation engine) re-requests unresolved IPs on the next tick, so a dropped batch
// only delays resolution rather than losing it.
const workChannelCapacity = 1000

// Client is the DNS Client (C5): batched, de-duplicated reverse lookup with
// a cache and retry/backoff, running its lookups on a pool of goroutines fed
// by one bounded channel.
type Client struct {
	resolver Resolver

	mu    sync.RWMutex
	cache map[netip.Addr]string

	pendingMu sync.Mutex
	pending   map[netip.Addr]struct{}

	work chan netip.Addr

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient starts a DNS client backed by resolver. Call Close when done to
// drain the work channel and join every in-flight lookup goroutine.
func NewClient(resolver Resolver) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		resolver: resolver,
		cache:    make(map[netip.Addr]string),
		pending:  make(map[netip.Addr]struct{}),
		work:     make(chan netip.Addr, workChannelCapacity),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.wg.Add(1)
	go c.runWorker()
	return c
}

// Resolve enqueues ips for background resolution. Idempotent: an IP already
// cached or already in flight is skipped. If the work channel is full, the
// remaining IPs in this batch are dropped; the caller is expected to call
// Resolve again with the same IPs on its next tick.
func (c *Client) Resolve(ips []netip.Addr) {
	for _, ip := range ips {
		c.mu.RLock()
		_, cached := c.cache[ip]
		c.mu.RUnlock()
		if cached {
			continue
		}

		c.pendingMu.Lock()
		_, inFlight := c.pending[ip]
		if !inFlight {
			c.pending[ip] = struct{}{}
		}
		c.pendingMu.Unlock()
		if inFlight {
			continue
		}

		select {
		case c.work <- ip:
		default:
			log.Warn("dns work channel full, dropping batch entry", "ip", ip)
			c.pendingMu.Lock()
			delete(c.pending, ip)
			c.pendingMu.Unlock()
		}
	}
}

// Lookup returns the resolved hostname for ip, if any, without copying the
// whole cache — the hot path for per-row rendering, which only ever needs
// one key at a time.
func (c *Client) Lookup(ip netip.Addr) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	host, ok := c.cache[ip]
	return host, ok
}

// Cache returns a snapshot copy of every hostname resolved so far.
func (c *Client) Cache() map[netip.Addr]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[netip.Addr]string, len(c.cache))
	for k, v := range c.cache {
		out[k] = v
	}
	return out
}

// runWorker is the dedicated worker hosting a cooperative task per lookup:
// each IP pulled off the work channel spawns its own goroutine so that one
// slow lookup never head-of-line-blocks the others, while the channel itself
// still bounds total queued work.
func (c *Client) runWorker() {
	defer c.wg.Done()
	for ip := range c.work {
		c.wg.Add(1)
		go c.resolveOne(ip)
	}
}

func (c *Client) resolveOne(ip netip.Addr) {
	defer c.wg.Done()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, ip)
		c.pendingMu.Unlock()
	}()

	host := lookupWithRetry(c.ctx, c.resolver, ip)

	c.mu.Lock()
	c.cache[ip] = host
	c.mu.Unlock()
}

// Close stops accepting new work, cancels any lookups still in flight, and
// blocks until every lookup goroutine and the dispatcher have exited. No
// goroutine started by this client survives Close returning.
func (c *Client) Close() {
	close(c.work)
	c.cancel()
	c.wg.Wait()
}
