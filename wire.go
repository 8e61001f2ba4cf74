package requests

import (
	"bufio"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Request-line and header serialization, plus response-head parsing.
// The status-line/header grammar and body framing are net/http's own
// http.ReadResponse, reused rather than reimplemented. What this file
// owns is the policy layer on top: which headers a Connection
// synthesizes, and how a BodySource is framed onto the wire.

// prepareHeaders fills in the Content-Type a Session must synthesize
// from the body source when the caller didn't set one explicitly.
func prepareHeaders(req *Request) {
	if req.Body == nil {
		req.Body = EmptyBody{}
	}
	if !req.Header.Has("Content-Type") {
		if ct, ok := req.Body.ContentType(); ok && ct != "" {
			req.Header.Set("Content-Type", ct)
		}
	}
}

// framingFor decides whether a request body is framed with a known
// Content-Length or with Transfer-Encoding: chunked.
func framingFor(body BodySource) (contentLength int64, chunked bool) {
	if body == nil {
		return 0, false
	}
	if n, ok := body.SizeHint(); ok {
		return n, false
	}
	return 0, true
}

// writeRequestHead writes the request line and headers, synthesizing
// Host, User-Agent, Accept-Encoding and the framing header when the
// caller's Header doesn't already carry them.
func writeRequestHead(bw *bufio.Writer, ep Endpoint, req *Request, ua string, chunked bool, contentLength int64) error {
	if _, err := fmt.Fprintf(bw, "%s %s HTTP/1.1\r\n", req.Method, req.Target); err != nil {
		return err
	}

	host := req.Header.Get("Host")
	if host == "" {
		host = ep.Host
		if (ep.Scheme == "http" && ep.Port != 80) || (ep.Scheme == "https" && ep.Port != 443) {
			host = fmt.Sprintf("%s:%d", host, ep.Port)
		}
	}
	if _, err := fmt.Fprintf(bw, "Host: %s\r\n", host); err != nil {
		return err
	}

	if !req.Header.Has("User-Agent") && ua != "" {
		if _, err := fmt.Fprintf(bw, "User-Agent: %s\r\n", ua); err != nil {
			return err
		}
	}
	if !req.Header.Has("Accept-Encoding") {
		if _, err := bw.WriteString("Accept-Encoding: identity\r\n"); err != nil {
			return err
		}
	}
	if !req.Header.Has("Content-Length") && !req.Header.Has("Transfer-Encoding") {
		if chunked {
			if _, err := bw.WriteString("Transfer-Encoding: chunked\r\n"); err != nil {
				return err
			}
		} else if contentLength > 0 || req.Method == "POST" || req.Method == "PUT" || req.Method == "PATCH" {
			if _, err := fmt.Fprintf(bw, "Content-Length: %d\r\n", contentLength); err != nil {
				return err
			}
		}
	}

	var writeErr error
	req.Header.Range(func(name, value string) {
		if writeErr != nil || strings.EqualFold(name, "Host") {
			return
		}
		if _, err := fmt.Fprintf(bw, "%s: %s\r\n", name, value); err != nil {
			writeErr = err
		}
	})
	if writeErr != nil {
		return writeErr
	}

	_, err := bw.WriteString("\r\n")
	return err
}

// writeBody drains body onto bw, chunk-encoding it when chunked is set.
func writeBody(bw *bufio.Writer, body BodySource, chunked bool) error {
	buf := make([]byte, 32*1024)
	for {
		n, more, err := body.Read(buf)
		if err != nil {
			return err
		}
		if n > 0 {
			if chunked {
				if _, err := fmt.Fprintf(bw, "%x\r\n", n); err != nil {
					return err
				}
				if _, err := bw.Write(buf[:n]); err != nil {
					return err
				}
				if _, err := bw.WriteString("\r\n"); err != nil {
					return err
				}
			} else if _, err := bw.Write(buf[:n]); err != nil {
				return err
			}
		}
		if !more {
			break
		}
	}
	if chunked {
		if _, err := bw.WriteString("0\r\n\r\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// readResponseHead reads the status line and headers, delegating the
// actual grammar to http.ReadResponse so that chunked and
// Content-Length body framing on the returned Body are handled
// exactly as net/http's own transport handles them.
func readResponseHead(br *bufio.Reader, method string) (*http.Response, error) {
	return http.ReadResponse(br, &http.Request{Method: method})
}

// headerFromHTTP copies a parsed http.Header into our ordered Header
// type. Response header order isn't wire-significant to any invariant
// this package enforces, so map iteration order is acceptable here.
func headerFromHTTP(h http.Header) Header {
	out := NewHeader()
	for k, vs := range h {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}

// parseKeepAlive extracts the Keep-Alive response header's timeout
// (seconds) and max directives, RFC 7230-adjacent but never
// standardized; absent the header, ok is false.
func parseKeepAlive(h http.Header) (timeout int, max int, ok bool) {
	v := h.Get("Keep-Alive")
	if v == "" {
		return 0, -1, false
	}
	max = -1
	for _, part := range strings.Split(v, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		switch strings.ToLower(key) {
		case "timeout":
			if n, err := strconv.Atoi(val); err == nil {
				timeout = n
			}
		case "max":
			if n, err := strconv.Atoi(val); err == nil {
				max = n
			}
		}
	}
	return timeout, max, true
}
