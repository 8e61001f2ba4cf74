package requests

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Session is a multi-host HTTP/1.1 client: it owns one Pool per
// Endpoint, a shared CookieJar, and the redirect-following logic that
// chains requests across hosts. A Session is safe for concurrent use.
type Session struct {
	opts Options

	mu    sync.Mutex
	pools map[Endpoint]*Pool
}

// NewSession builds a Session from DefaultOptions with opts applied.
func NewSession(opts ...Option) *Session {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Session{opts: o, pools: make(map[Endpoint]*Pool)}
}

func (s *Session) poolFor(ep Endpoint) *Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[ep]
	if !ok {
		p = NewPool(ep, &s.opts)
		s.pools[ep] = p
	}
	return p
}

// Close closes every Pool the Session has opened. In-flight requests
// already holding a Connection finish normally; their Streams close
// the Connection on release instead of returning it to a pool.
func (s *Session) Close() error {
	s.mu.Lock()
	pools := make([]*Pool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, p)
	}
	s.mu.Unlock()

	var result *multierror.Error
	for _, p := range pools {
		if err := p.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// StreamResponse is the non-buffered result of StreamRequest: the
// final response head, the redirect history that led to it, and the
// Stream the caller must read (or Close) to release its Connection.
type StreamResponse struct {
	StatusCode int
	Header     Header
	History    []HistoryEntry
	Stream     *Stream
}

// StreamRequest dispatches method against rawURL, following redirects
// per the Session's RedirectPolicy, and returns control to the caller
// as soon as the final response's head is parsed — the body is left
// unread on the returned Stream.
func (s *Session) StreamRequest(ctx context.Context, method, rawURL string, body BodySource, header Header) (*StreamResponse, error) {
	head, stream, history, err := s.dispatch(ctx, method, rawURL, body, header)
	if err != nil {
		return nil, err
	}
	return &StreamResponse{
		StatusCode: head.StatusCode,
		Header:     head.Header,
		History:    history,
		Stream:     stream,
	}, nil
}

// Request dispatches method against rawURL, follows redirects, and
// reads the final response body fully into memory before returning.
func (s *Session) Request(ctx context.Context, method, rawURL string, body BodySource, header Header) (*Response, error) {
	head, stream, history, err := s.dispatch(ctx, method, rawURL, body, header)
	if err != nil {
		return nil, err
	}
	data, err := stream.Read()
	if err != nil {
		return nil, wrapErrHistory("read", rawURL, err, history)
	}
	return &Response{
		StatusCode: head.StatusCode,
		Header:     head.Header,
		Body:       data,
		History:    history,
	}, nil
}

// dispatch runs the redirect-following loop: resolve the target URL,
// acquire a Connection for its Endpoint, send, ingest cookies,
// evaluate the redirect policy table, and either loop onto the next
// hop or return the terminal response to the caller.
func (s *Session) dispatch(ctx context.Context, method, rawURL string, body BodySource, header Header) (*ResponseHead, *Stream, []HistoryEntry, error) {
	if body == nil {
		body = EmptyBody{}
	}
	if header.index == nil {
		header = NewHeader()
	}

	var history []HistoryEntry
	curMethod := method
	curHeader := header
	curBody := body
	bodyTransmitted := false

	var base *url.URL
	curURL := rawURL

	for {
		target, err := resolveURL(base, curURL)
		if err != nil {
			return nil, nil, history, wrapErrHistory("redirect", curURL, err, history)
		}
		base = target

		if s.opts.EnforceTLS && target.Scheme != "https" {
			return nil, nil, history, wrapErrHistory("redirect", target.String(), ErrEnforceTLS, history)
		}

		ep, err := endpointFromURL(target)
		if err != nil {
			return nil, nil, history, wrapErrHistory("redirect", target.String(), err, history)
		}

		handle, err := s.poolFor(ep).Acquire(ctx)
		if err != nil {
			return nil, nil, history, wrapErrHistory("acquire", target.String(), err, history)
		}

		req := NewRequest(curMethod, requestTarget(target), curBody)
		req.Header = curHeader.Clone()
		if s.opts.Jar != nil {
			s.opts.Jar.AttachHeader(req, target)
		}

		head, stream, err := handle.Send(ctx, req)
		if err != nil {
			return nil, nil, history, wrapErrHistory("send", target.String(), err, history)
		}
		bodyTransmitted = true

		if s.opts.Jar != nil && len(head.rawCookies) > 0 {
			s.opts.Jar.Ingest(head.rawCookies, target)
			if s.opts.Logger != nil {
				s.opts.Logger.WithField("url", target.String()).WithField("count", len(head.rawCookies)).Debug("ingested cookies")
			}
		}

		location := head.Header.Get("Location")
		if !isRedirectStatus(head.StatusCode) || location == "" {
			return head, stream, history, nil
		}

		next, err := target.Parse(location)
		if err != nil {
			stream.Dump()
			return nil, nil, history, wrapErrHistory("redirect", target.String(), fmt.Errorf("%w: %v", ErrInvalidResponse, err), history)
		}

		if len(history) >= s.opts.MaxRedirects {
			stream.Dump()
			return nil, nil, history, wrapErrHistory("redirect", next.String(), ErrTooManyRedirects, history)
		}

		nextEp, err := endpointFromURL(next)
		if err != nil {
			stream.Dump()
			return nil, nil, history, wrapErrHistory("redirect", next.String(), err, history)
		}
		if !s.opts.RedirectPolicy.allows(ep, nextEp) {
			stream.Dump()
			return nil, nil, history, wrapErrHistory("redirect", next.String(), ErrForbiddenRedirect, history)
		}

		history = append(history, HistoryEntry{
			StatusCode: head.StatusCode,
			Header:     head.Header,
			Location:   next.String(),
		})
		if s.opts.Logger != nil {
			s.opts.Logger.WithField("from", target.String()).WithField("to", next.String()).WithField("status", head.StatusCode).Debug("following redirect")
		}

		newMethod, dropBody := redirectMethod(head.StatusCode, curMethod)
		if dropBody {
			curBody = EmptyBody{}
			curHeader = curHeader.Clone()
			stripFramingHeaders(&curHeader)
			bodyTransmitted = false
		} else if bodyTransmitted {
			if err := curBody.Reset(); err != nil {
				stream.Dump()
				return nil, nil, history, wrapErrHistory("redirect", next.String(), fmt.Errorf("%w: %v", ErrCannotReplayBody, err), history)
			}
		}
		curMethod = newMethod

		stream.Dump()
		curURL = next.String()
	}
}

// resolveURL parses raw, resolving it against base if raw isn't
// already absolute.
func resolveURL(base *url.URL, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.IsAbs() {
		return u, nil
	}
	if base == nil {
		return nil, fmt.Errorf("requests: relative URL with no base: %q", raw)
	}
	return base.ResolveReference(u), nil
}

// requestTarget renders the request-line target (path + query) for u.
func requestTarget(u *url.URL) string {
	if t := u.RequestURI(); t != "" {
		return t
	}
	return "/"
}

func isRedirectStatus(code int) bool {
	switch code {
	case 301, 302, 303, 307, 308:
		return true
	default:
		return false
	}
}

// redirectMethod applies the method-rewrite rules for each redirect
// status: 301/302/303 always become GET with the body dropped; 307/308
// always preserve the original method and body.
func redirectMethod(statusCode int, method string) (newMethod string, dropBody bool) {
	switch statusCode {
	case 301, 302, 303:
		return "GET", true
	default: // 307, 308
		return method, false
	}
}

func stripFramingHeaders(h *Header) {
	h.Del("Content-Length")
	h.Del("Transfer-Encoding")
	h.Del("Content-Type")
	h.Del("Content-Encoding")
}
