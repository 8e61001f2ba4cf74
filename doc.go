// Package requests provides the connection lifecycle and request-dispatch
// engine for an HTTP/1.1 client: a per-endpoint connection pool, a
// single-connection send/receive state machine, a multi-host session that
// follows redirects and manages cookies, and a streaming response body.
//
// # Basic usage
//
// Create a session and issue a request:
//
//	sess := requests.NewSession()
//	resp, err := sess.Get(ctx, "https://example.com/get")
//
// Stream a response body instead of buffering it:
//
//	sr, err := sess.StreamRequest(ctx, "GET", "https://example.com/get", nil, requests.NewHeader())
//	if err != nil {
//	    return err
//	}
//	defer sr.Stream.Close()
//
//	buf := make([]byte, 4096)
//	for {
//	    n, err := sr.Stream.ReadSome(buf)
//	    if errors.Is(err, requests.ErrEOF) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    process(buf[:n])
//	}
//
// # Redirects and cookies
//
// A Session owns one Pool per endpoint and one CookieJar shared across
// all of them. Redirects are followed according to Options.RedirectPolicy;
// Set-Cookie responses are ingested into the jar and replayed on
// subsequent requests whose domain/path/secure attributes match.
//
// # Error handling
//
// Policy failures (too many redirects, a forbidden redirect, a
// non-replayable body on a 307/308) are sentinel errors checkable with
// errors.Is; use errors.As with *RequestError for the failing operation,
// endpoint, and accumulated redirect history.
package requests
