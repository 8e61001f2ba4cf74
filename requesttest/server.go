// Package requesttest provides an in-process HTTP/1.1 server for
// exercising github.com/rh-m2/requests against real wire traffic
// instead of mocked transports.
//
// Example:
//
//	func TestGet(t *testing.T) {
//	    srv := requesttest.NewServer()
//	    defer srv.Close()
//
//	    sess := requests.NewSession()
//	    resp, err := sess.Get(context.Background(), srv.URL()+"/get")
//	    // ...
//	}
package requesttest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Server is an in-process HTTP/1.1 server covering the request
// shapes a Session's core needs to exercise: header echoing,
// redirect chains (same- and cross-host), keep-alive control, and a
// body large enough to matter for streaming reads.
type Server struct {
	httpServer *httptest.Server
	mux        *http.ServeMux

	mu       sync.Mutex
	requests []RecordedRequest

	closeAfter atomic.Int64 // if >0, server sets Connection: close on every response from the nth on
	served     atomic.Int64
}

// RecordedRequest captures what the server observed for one request,
// for tests that assert on what a Session actually sent.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// NewServer starts a Server listening on an ephemeral localhost port.
func NewServer() *Server {
	s := &Server{mux: http.NewServeMux()}
	s.closeAfter.Store(-1)

	s.mux.HandleFunc("/headers", s.handleHeaders)
	s.mux.HandleFunc("/get", s.handleGet)
	s.mux.HandleFunc("/post", s.handleEcho)
	s.mux.HandleFunc("/put", s.handleEcho)
	s.mux.HandleFunc("/redirect-to", s.handleRedirectTo)
	s.mux.HandleFunc("/redirect/", s.handleRedirectN)
	s.mux.HandleFunc("/image", s.handleImage)
	s.mux.HandleFunc("/set-cookie", s.handleSetCookie)
	s.mux.HandleFunc("/echo-cookie", s.handleEchoCookie)
	s.mux.HandleFunc("/status/", s.handleStatus)

	s.httpServer = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// URL is the server's base "http://127.0.0.1:PORT" address.
func (s *Server) URL() string { return s.httpServer.URL }

// Close shuts the server down.
func (s *Server) Close() { s.httpServer.Close() }

// CloseAfter makes the server set "Connection: close" starting with
// its nth response (1-indexed), for testing Connection.shouldClose
// behavior. n<=0 disables the behavior.
func (s *Server) CloseAfter(n int) {
	if n <= 0 {
		s.closeAfter.Store(-1)
		return
	}
	s.closeAfter.Store(int64(n))
}

// Requests returns every request the server has observed so far, in
// arrival order.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body := readAndRecord(r)
	r.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
	s.mu.Unlock()

	if n := s.closeAfter.Load(); n >= 0 && s.served.Add(1) >= n {
		w.Header().Set("Connection", "close")
	}

	s.mux.ServeHTTP(w, r)
}

func readAndRecord(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	buf := make([]byte, 0, 512)
	chunk := make([]byte, 512)
	for {
		n, err := r.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf
}

func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	for name, values := range r.Header {
		for _, v := range values {
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"method":"%s","path":"%s"}`, r.Method, r.URL.Path)
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := copyBody(w, r); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func copyBody(w http.ResponseWriter, r *http.Request) (int, error) {
	buf := make([]byte, 4096)
	total := 0
	for {
		n, err := r.Body.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
			total += n
		}
		if err != nil {
			break
		}
	}
	return total, nil
}

// handleRedirectTo redirects to the absolute or relative URL given in
// the "url" query parameter, with the status from "status" (default
// 302).
func (s *Server) handleRedirectTo(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	status := http.StatusFound
	if sc := r.URL.Query().Get("status"); sc != "" {
		if n, err := strconv.Atoi(sc); err == nil {
			status = n
		}
	}
	http.Redirect(w, r, target, status)
}

// handleRedirectN serves /redirect/{n}: a chain of n same-host
// redirects ending in a 200 from /get.
func (s *Server) handleRedirectN(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/redirect/")
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		s.handleGet(w, r)
		return
	}
	if n == 1 {
		http.Redirect(w, r, "/get", http.StatusFound)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/redirect/%d", n-1), http.StatusFound)
}

// handleImage serves a deterministic, moderately large binary body so
// tests can exercise ReadSome in more than one chunk.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	const size = 256 * 1024
	w.Header().Set("Content-Type", "application/octet-stream")
	buf := make([]byte, 4096)
	remaining := size
	for remaining > 0 {
		n := len(buf)
		if remaining < n {
			n = remaining
		}
		for i := range buf[:n] {
			buf[i] = byte(i)
		}
		w.Write(buf[:n])
		remaining -= n
	}
}

func (s *Server) handleSetCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "session", Value: r.URL.Query().Get("value"), Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleEchoCookie(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie("session")
	if err != nil {
		http.Error(w, "no cookie", http.StatusBadRequest)
		return
	}
	fmt.Fprint(w, c.Value)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/status/")
	code, err := strconv.Atoi(rest)
	if err != nil {
		code = http.StatusOK
	}
	w.WriteHeader(code)
}
