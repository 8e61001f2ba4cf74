package requests

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"
)

const (
	defaultMaxConnsPerEndpoint = 8
	maxConsecutiveDialFailures = 3
)

// Pool manages every Connection opened to a single Endpoint: a LIFO
// stack of idle Connections plus a weighted semaphore bounding how
// many may exist (idle or checked out) at once. Waiters queue and are
// served in arrival order, and a waiter whose context is canceled
// drops out of the queue without disturbing anyone else — both
// properties come directly from golang.org/x/sync/semaphore.Weighted.
type Pool struct {
	endpoint Endpoint
	opts     *Options
	sem      *semaphore.Weighted

	pending int32 // atomic: callers currently blocked in Acquire

	mu            sync.Mutex
	idle          []*Connection
	closed        bool
	resolvedAddrs []string
	failures      int
}

// NewPool constructs a Pool for ep using opts.MaxConnsPerEndpoint (or
// defaultMaxConnsPerEndpoint if unset) as its connection cap.
func NewPool(ep Endpoint, opts *Options) *Pool {
	max := opts.MaxConnsPerEndpoint
	if max <= 0 {
		max = defaultMaxConnsPerEndpoint
	}
	return &Pool{
		endpoint: ep,
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(max)),
	}
}

// ConnHandle is a single caller's exclusive checkout of a Connection
// from a Pool. Send dispatches one request/response exchange through
// it; the handle returns the Connection to the pool, or closes it,
// once the resulting Stream terminates.
type ConnHandle struct {
	pool     *Pool
	conn     *Connection
	released bool
	mu       sync.Mutex
}

// Acquire checks out a Connection for ep, preferring a live idle
// Connection (LIFO, so the most recently used socket — the one least
// likely to have gone cold at the peer — is tried first) and dialing
// a new one only when the idle stack is empty or every entry on it
// has expired.
func (p *Pool) Acquire(ctx context.Context) (*ConnHandle, error) {
	if conn, ok := p.popLiveIdle(); ok {
		if p.opts.Logger != nil {
			p.opts.Logger.WithField("endpoint", p.endpoint.String()).Debug("reused idle connection")
		}
		return &ConnHandle{pool: p, conn: conn}, nil
	}

	if p.opts.MaxPending > 0 {
		if atomic.AddInt32(&p.pending, 1) > int32(p.opts.MaxPending) {
			atomic.AddInt32(&p.pending, -1)
			return nil, wrapErr("acquire", p.endpoint.String(), ErrTooManyPending)
		}
		defer atomic.AddInt32(&p.pending, -1)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, wrapErr("acquire", p.endpoint.String(), ErrPoolClosed)
	}
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, wrapErr("acquire", p.endpoint.String(), fmt.Errorf("%w: %v", ErrCanceled, err))
	}

	conn, err := p.dial(ctx)
	if err != nil {
		p.sem.Release(1)
		if p.opts.Logger != nil {
			p.opts.Logger.WithError(err).WithField("endpoint", p.endpoint.String()).Warn("dial failed")
		}
		return nil, err
	}
	if p.opts.Logger != nil {
		p.opts.Logger.WithField("endpoint", p.endpoint.String()).Debug("dialed new connection")
	}
	return &ConnHandle{pool: p, conn: conn}, nil
}

// popLiveIdle pops idle Connections off the stack until it finds one
// that is still within its keep-alive budget, closing and releasing
// the semaphore weight of any that aren't.
func (p *Pool) popLiveIdle() (*Connection, bool) {
	for {
		p.mu.Lock()
		if len(p.idle) == 0 {
			p.mu.Unlock()
			return nil, false
		}
		conn := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()

		if conn.shouldClose() {
			conn.Close()
			p.sem.Release(1)
			continue
		}
		return conn, true
	}
}

// dial resolves the endpoint's host, memoizing the address list, and
// opens a new Connection. After maxConsecutiveDialFailures in a row,
// the memoized address list is invalidated and re-resolved, in case
// it simply went stale.
func (p *Pool) dial(ctx context.Context) (*Connection, error) {
	addr, err := p.resolvedAddr(ctx)
	if err != nil {
		p.recordDialOutcome(false)
		return nil, err
	}

	conn, err := dialAddr(ctx, p.endpoint, addr, p.opts)
	if err != nil {
		p.recordDialOutcome(false)
		return nil, err
	}
	p.recordDialOutcome(true)
	return newConnection(p.endpoint, conn, p.opts), nil
}

func (p *Pool) resolvedAddr(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.resolvedAddrs) > 0 && p.failures < maxConsecutiveDialFailures {
		return p.resolvedAddrs[0], nil
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, p.endpoint.Host)
	if err != nil {
		return "", wrapErr("dial", p.endpoint.String(), fmt.Errorf("%w: %v", ErrConnectFailed, err))
	}
	p.resolvedAddrs = addrs
	p.failures = 0
	return addrs[0], nil
}

func (p *Pool) recordDialOutcome(success bool) {
	p.mu.Lock()
	if success {
		p.failures = 0
	} else {
		p.failures++
	}
	p.mu.Unlock()
}

// Send dispatches req over h's Connection and wires the resulting
// Stream so that its eventual termination returns h to the pool (or
// closes it). If Send itself fails before a Stream exists, h is
// released immediately, closing the Connection whenever its
// keep-alive state says it shouldn't be reused.
func (h *ConnHandle) Send(ctx context.Context, req *Request) (*ResponseHead, *Stream, error) {
	head, stream, err := h.conn.Send(ctx, req)
	if err != nil {
		h.release(h.dispositionFor())
		return nil, nil, err
	}
	stream.onRelease = h.release
	return head, stream, nil
}

func (h *ConnHandle) dispositionFor() releaseDisposition {
	if h.conn.shouldClose() {
		return releaseClose
	}
	return releaseReturnToPool
}

func (h *ConnHandle) release(disposition releaseDisposition) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.mu.Unlock()

	if disposition == releaseClose {
		h.conn.Close()
		h.pool.sem.Release(1)
		return
	}

	h.pool.mu.Lock()
	if h.pool.closed {
		h.pool.mu.Unlock()
		h.conn.Close()
		h.pool.sem.Release(1)
		return
	}
	h.pool.idle = append(h.pool.idle, h.conn)
	h.pool.mu.Unlock()
}

// Close closes every idle Connection and marks the Pool so that no
// further Acquire succeeds. Connections currently checked out are
// closed as their Streams release them, since ConnHandle.release
// checks p.closed before returning a Connection to the idle stack.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var result *multierror.Error
	for _, c := range idle {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		p.sem.Release(1)
	}
	return result.ErrorOrNil()
}
