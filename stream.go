package requests

import (
	"errors"
	"io"
	"runtime"
	"sync"
	"time"
)

// streamState is a Stream's Active/Draining/Released lifecycle.
type streamState int

const (
	streamActive streamState = iota
	streamDraining
	streamReleased
)

// releaseDisposition tells whoever handed out the underlying
// Connection what to do with it once a Stream terminates.
type releaseDisposition int

const (
	releaseReturnToPool releaseDisposition = iota
	releaseClose
)

// streamDrainBudget bounds how long Close will wait for a voluntarily
// abandoned body to finish draining before giving up and forcing the
// Connection closed instead of returned to the pool.
const streamDrainBudget = 3 * time.Second

// maxDrainBytes bounds how much of an abandoned body Close will
// discard before deciding the Connection isn't worth saving.
const maxDrainBytes = 64 * 1024

// Stream is the sole means of reading a response body. It is bound to
// exactly one Connection for its lifetime; once the body is fully
// read (or the Stream is explicitly Closed), it releases that
// Connection back to its Pool or closes it, per the keep-alive
// decision recorded on the Connection.
type Stream struct {
	mu    sync.Mutex
	state streamState
	done  bool

	body      io.ReadCloser
	conn      *Connection
	onRelease func(releaseDisposition)
}

func newStream(conn *Connection, body io.ReadCloser) *Stream {
	s := &Stream{body: body, conn: conn}
	runtime.SetFinalizer(s, (*Stream).finalize)
	return s
}

// ReadSome fills buf with whatever is immediately available, returning
// ErrEOF once the body is exhausted and ErrNotConnected if called
// after the Stream has already released its Connection.
func (s *Stream) ReadSome(buf []byte) (int, error) {
	s.mu.Lock()
	switch {
	case s.state == streamReleased:
		s.mu.Unlock()
		return 0, ErrNotConnected
	case s.done:
		s.mu.Unlock()
		s.finish()
		return 0, ErrEOF
	}
	s.mu.Unlock()

	n, err := s.body.Read(buf)
	switch {
	case err == io.EOF:
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()
		if n > 0 {
			return n, nil
		}
		s.finish()
		return 0, ErrEOF
	case err != nil:
		s.conn.markMustClose()
		s.finish()
		return n, wrapErr("read", s.conn.endpoint.String(), err)
	default:
		return n, nil
	}
}

// Read reads the entire remaining body into memory, used by the
// buffered request/response API.
func (s *Stream) Read() ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := s.ReadSome(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, ErrEOF) {
				return out, nil
			}
			return out, err
		}
	}
}

// Dump discards the remainder of the body. Idempotent once the body
// is already fully read: a second call simply observes done and
// releases without touching the underlying reader again.
func (s *Stream) Dump() error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		s.finish()
		return nil
	}
	s.mu.Unlock()

	buf := make([]byte, 32*1024)
	for {
		_, err := s.ReadSome(buf)
		if err != nil {
			if errors.Is(err, ErrEOF) {
				return nil
			}
			return err
		}
	}
}

// Done reports whether the body has been fully read or the Stream has
// otherwise released its Connection.
func (s *Stream) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done || s.state == streamReleased
}

// Close abandons the Stream before its body is fully read. A body
// small enough to drain within streamDrainBudget and maxDrainBytes
// lets the Connection return to the pool; anything larger forces the
// Connection closed rather than block the caller or buffer unbounded
// data on its behalf.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.state == streamReleased {
		s.mu.Unlock()
		return nil
	}
	if s.done {
		s.mu.Unlock()
		s.finish()
		return nil
	}
	s.state = streamDraining
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.boundedDump()
	}()
	select {
	case <-done:
	case <-time.After(streamDrainBudget):
		s.conn.markMustClose()
	}

	s.finish()
	return nil
}

func (s *Stream) boundedDump() {
	buf := make([]byte, 8*1024)
	var total int64
	for total < maxDrainBytes {
		n, err := s.body.Read(buf)
		total += int64(n)
		if err != nil {
			if err == io.EOF {
				s.mu.Lock()
				s.done = true
				s.mu.Unlock()
			} else {
				s.conn.markMustClose()
			}
			return
		}
	}
	s.conn.markMustClose()
}

// finish transitions the Stream to Released exactly once, handing the
// Connection back to whoever is tracking it (a Pool's ConnHandle, in
// practice) with the disposition its keep-alive state calls for.
func (s *Stream) finish() {
	s.mu.Lock()
	if s.state == streamReleased {
		s.mu.Unlock()
		return
	}
	s.state = streamReleased
	cb := s.onRelease
	s.onRelease = nil
	s.mu.Unlock()

	runtime.SetFinalizer(s, nil)
	s.body.Close()
	s.conn.releaseExchange()

	if cb == nil {
		return
	}
	if s.conn.shouldClose() {
		cb(releaseClose)
	} else {
		cb(releaseReturnToPool)
	}
}

// finalize is the GC backstop for callers who leak a Stream without
// calling Close: it forces the Connection closed rather than leave it
// checked out of its Pool forever.
func (s *Stream) finalize() {
	s.conn.markMustClose()
	s.finish()
}
