package requests

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// dialAddr opens a TCP connection to addr (a resolved IP, to which
// ep's port is appended here) and, for https endpoints, layers a TLS client
// handshake on top using the original hostname for SNI and
// certificate verification.
func dialAddr(ctx context.Context, ep Endpoint, addr string, opts *Options) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}

	rawConn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", addr, ep.Port))
	if err != nil {
		return nil, wrapErr("dial", ep.String(), fmt.Errorf("%w: %v", ErrConnectFailed, err))
	}

	if ep.Scheme != "https" {
		return rawConn, nil
	}

	cfg := opts.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg = cfg.Clone()
	if cfg.ServerName == "" {
		sni := ep.SNI
		if sni == "" {
			sni = ep.Host
		}
		cfg.ServerName = sni
	}

	tlsConn := tls.Client(rawConn, cfg)
	if opts.ConnectTimeout > 0 {
		tlsConn.SetDeadline(opts.Clock.Now().Add(opts.ConnectTimeout))
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, wrapErr("dial", ep.String(), fmt.Errorf("%w: %v", ErrTLSError, err))
	}
	tlsConn.SetDeadline(time.Time{})
	return tlsConn, nil
}
