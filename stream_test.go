package requests

import (
	"errors"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeTrackingReader struct {
	data   []byte
	pos    int
	closed bool
}

func (r *closeTrackingReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *closeTrackingReader) Close() error {
	r.closed = true
	return nil
}

func newTestStreamConn() *Connection {
	client, server := net.Pipe()
	server.Close()
	return newConnection(Endpoint{Scheme: "http", Host: "x", Port: 80}, client, testOptions())
}

func TestStreamReadSomeUntilEOF(t *testing.T) {
	body := &closeTrackingReader{data: []byte("hello")}
	s := newStream(newTestStreamConn(), body)

	buf := make([]byte, 2)
	var total []byte
	for {
		n, err := s.ReadSome(buf)
		total = append(total, buf[:n]...)
		if err != nil {
			assert.True(t, errors.Is(err, ErrEOF))
			break
		}
	}
	assert.Equal(t, "hello", string(total))
	assert.True(t, s.Done())
	assert.True(t, body.closed)
}

func TestStreamReadSomeAfterReleaseFails(t *testing.T) {
	body := &closeTrackingReader{data: []byte("x")}
	s := newStream(newTestStreamConn(), body)
	_, err := s.Read()
	require.NoError(t, err)

	_, err = s.ReadSome(make([]byte, 1))
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestStreamDumpIsIdempotent(t *testing.T) {
	body := &closeTrackingReader{data: []byte("abcdef")}
	s := newStream(newTestStreamConn(), body)

	require.NoError(t, s.Dump())
	require.NoError(t, s.Dump())
	assert.True(t, s.Done())
}

func TestStreamCloseOnSmallUnreadBodyReturnsToPool(t *testing.T) {
	body := &closeTrackingReader{data: []byte("short")}
	conn := newTestStreamConn()
	s := newStream(conn, body)

	var disposition releaseDisposition
	s.onRelease = func(d releaseDisposition) { disposition = d }

	require.NoError(t, s.Close())
	assert.Equal(t, releaseReturnToPool, disposition)
}

func TestStreamOnReleaseCalledExactlyOnce(t *testing.T) {
	body := &closeTrackingReader{data: []byte("x")}
	conn := newTestStreamConn()
	s := newStream(conn, body)

	var calls int
	s.onRelease = func(releaseDisposition) { calls++ }

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, calls)
}
