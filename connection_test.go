package requests

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer plays the server side of a net.Pipe connection, reading
// one request and writing back a fixed raw response.
func fakeServer(t *testing.T, serverConn net.Conn, rawResponse string) {
	t.Helper()
	go func() {
		br := bufio.NewReader(serverConn)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		serverConn.Write([]byte(rawResponse))
	}()
}

func testOptions() *Options {
	o := DefaultOptions()
	o.Clock = clockwork.NewFakeClock()
	o.Jar = nil
	return &o
}

func TestConnectionSendParsesStatusAndHeaders(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	fakeServer(t, server, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")

	conn := newConnection(Endpoint{Scheme: "http", Host: "example.com", Port: 80}, client, testOptions())
	req := NewRequest("GET", "/", EmptyBody{})

	head, stream, err := conn.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 200, head.StatusCode)

	data, err := stream.Read()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestConnectionHonorsConnectionCloseHeader(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	fakeServer(t, server, "HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 2\r\n\r\nhi")

	conn := newConnection(Endpoint{Scheme: "http", Host: "example.com", Port: 80}, client, testOptions())
	req := NewRequest("GET", "/", EmptyBody{})

	_, stream, err := conn.Send(context.Background(), req)
	require.NoError(t, err)
	_, err = stream.Read()
	require.NoError(t, err)

	assert.True(t, conn.shouldClose())
}

func TestConnectionKeepAliveMaxExhausted(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	fakeServer(t, server, "HTTP/1.1 200 OK\r\nKeep-Alive: timeout=5, max=1\r\nContent-Length: 2\r\n\r\nhi")

	conn := newConnection(Endpoint{Scheme: "http", Host: "example.com", Port: 80}, client, testOptions())
	req := NewRequest("GET", "/", EmptyBody{})

	_, stream, err := conn.Send(context.Background(), req)
	require.NoError(t, err)
	_, err = stream.Read()
	require.NoError(t, err)

	assert.True(t, conn.shouldClose())
}

func TestConnectionRejectsStaleKeepAlive(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	fakeServer(t, server, "HTTP/1.1 200 OK\r\nKeep-Alive: timeout=1\r\nContent-Length: 2\r\n\r\nhi")

	opts := testOptions()
	clock := opts.Clock.(clockwork.FakeClock)

	conn := newConnection(Endpoint{Scheme: "http", Host: "example.com", Port: 80}, client, opts)
	req := NewRequest("GET", "/", EmptyBody{})

	_, stream, err := conn.Send(context.Background(), req)
	require.NoError(t, err)
	_, err = stream.Read()
	require.NoError(t, err)

	assert.False(t, conn.shouldClose())
	clock.Advance(2 * time.Second)
	assert.True(t, conn.shouldClose())
}

func TestConnectionSendCanceledByContext(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := newConnection(Endpoint{Scheme: "http", Host: "example.com", Port: 80}, client, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Exhaust the exchange token first so acquireExchange must block on ctx.
	<-conn.exchange
	defer func() { conn.exchange <- struct{}{} }()

	_, _, err := conn.Send(ctx, NewRequest("GET", "/", EmptyBody{}))
	require.Error(t, err)
}
