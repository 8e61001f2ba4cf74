package requests

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

const defaultIdleTimeout = 60 * time.Second

// keepAliveState tracks what a Connection has learned about how long
// its peer intends to keep the socket open.
type keepAliveState struct {
	expiresAt    time.Time
	maxRemaining int // -1 = unbounded
}

// Connection owns one net.Conn (plain or TLS) to a single Endpoint and
// enforces an exclusive-exchange discipline: at most one request/
// response exchange is in flight at a time, enforced by a buffered
// channel used as a one-token lock rather than a sync.Mutex, because
// the "lock" here spans the whole request-to-stream-release lifetime,
// not a single critical section.
type Connection struct {
	endpoint Endpoint
	conn     net.Conn
	br       *bufio.Reader
	bw       *bufio.Writer
	opts     *Options

	exchange chan struct{}

	mu        sync.Mutex
	keepAlive keepAliveState
	mustClose bool
	closed    bool
}

func newConnection(ep Endpoint, conn net.Conn, opts *Options) *Connection {
	c := &Connection{
		endpoint: ep,
		conn:     conn,
		br:       bufio.NewReader(conn),
		bw:       bufio.NewWriter(conn),
		opts:     opts,
		exchange: make(chan struct{}, 1),
		keepAlive: keepAliveState{
			maxRemaining: -1,
		},
	}
	c.exchange <- struct{}{}
	return c
}

func (c *Connection) acquireExchange(ctx context.Context) error {
	select {
	case <-c.exchange:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) releaseExchange() {
	select {
	case c.exchange <- struct{}{}:
	default:
	}
}

func (c *Connection) markMustClose() {
	c.mu.Lock()
	c.mustClose = true
	c.mu.Unlock()
}

// shouldClose reports whether this Connection must not be reused,
// either because a past exchange demanded it or because its
// keep-alive budget (time or count) has run out. Checked both right
// after a Stream releases the Connection and again when a Pool hands
// out a previously-idle Connection, so a stale one is never reused.
func (c *Connection) shouldClose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mustClose || c.closed {
		return true
	}
	if c.keepAlive.maxRemaining == 0 {
		return true
	}
	if !c.keepAlive.expiresAt.IsZero() && !c.opts.Clock.Now().Before(c.keepAlive.expiresAt) {
		return true
	}
	return false
}

func (c *Connection) updateKeepAlive(resp *http.Response) {
	timeoutSecs, max, ok := parseKeepAlive(resp.Header)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ok && timeoutSecs > 0 {
		c.keepAlive.expiresAt = c.opts.Clock.Now().Add(time.Duration(timeoutSecs) * time.Second)
	} else if c.keepAlive.expiresAt.IsZero() {
		c.keepAlive.expiresAt = c.opts.Clock.Now().Add(defaultIdleTimeout)
	}
	if ok && max >= 0 {
		c.keepAlive.maxRemaining = max
	}
	if c.keepAlive.maxRemaining > 0 {
		c.keepAlive.maxRemaining--
	}
}

// Close tears down the underlying socket. Safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// Send transmits req and returns the parsed response head together
// with a Stream bound to its body. The exclusive-exchange lock is
// held from the moment Send is called until the returned Stream
// terminates (Stream.finish calls releaseExchange); an error before a
// Stream exists releases it immediately here instead.
func (c *Connection) Send(ctx context.Context, req *Request) (*ResponseHead, *Stream, error) {
	if err := c.acquireExchange(ctx); err != nil {
		return nil, nil, wrapErr("send", c.endpoint.String(), fmt.Errorf("%w: %v", ErrCanceled, err))
	}

	ownershipTransferred := false
	defer func() {
		if !ownershipTransferred {
			c.releaseExchange()
		}
	}()

	prepareHeaders(req)
	contentLength, chunked := framingFor(req.Body)

	if err := req.Header.validate(); err != nil {
		c.markMustClose()
		return nil, nil, err
	}

	if c.opts.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if err := writeRequestHead(c.bw, c.endpoint, req, c.opts.UserAgent, chunked, contentLength); err != nil {
		c.markMustClose()
		return nil, nil, wrapErr("send", c.endpoint.String(), err)
	}
	if err := writeBody(c.bw, req.Body, chunked); err != nil {
		c.markMustClose()
		return nil, nil, wrapErr("send", c.endpoint.String(), err)
	}
	c.conn.SetWriteDeadline(time.Time{})

	if c.opts.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	}
	resp, err := readResponseHead(c.br, req.Method)
	if err != nil {
		c.markMustClose()
		return nil, nil, wrapErr("send", c.endpoint.String(), fmt.Errorf("%w: %v", ErrInvalidResponse, err))
	}
	c.conn.SetReadDeadline(time.Time{})

	c.updateKeepAlive(resp)
	if resp.Close {
		c.markMustClose()
	}

	head := &ResponseHead{
		StatusCode: resp.StatusCode,
		Proto:      resp.Proto,
		Header:     headerFromHTTP(resp.Header),
		rawCookies: resp.Cookies(),
	}

	stream := newStream(c, resp.Body)
	ownershipTransferred = true
	return head, stream, nil
}
