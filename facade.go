package requests

import "context"

// Get issues a GET and buffers the full response body. It is sugar
// over Session.Request, deliberately thin: retries and per-call
// timeout options belong to a higher-level convenience facade, not
// here.
func (s *Session) Get(ctx context.Context, rawURL string) (*Response, error) {
	return s.Request(ctx, "GET", rawURL, nil, NewHeader())
}

// Head issues a HEAD request.
func (s *Session) Head(ctx context.Context, rawURL string) (*Response, error) {
	return s.Request(ctx, "HEAD", rawURL, nil, NewHeader())
}

// Delete issues a DELETE request.
func (s *Session) Delete(ctx context.Context, rawURL string) (*Response, error) {
	return s.Request(ctx, "DELETE", rawURL, nil, NewHeader())
}

// Post issues a POST with body.
func (s *Session) Post(ctx context.Context, rawURL string, body BodySource) (*Response, error) {
	return s.Request(ctx, "POST", rawURL, body, NewHeader())
}

// Put issues a PUT with body.
func (s *Session) Put(ctx context.Context, rawURL string, body BodySource) (*Response, error) {
	return s.Request(ctx, "PUT", rawURL, body, NewHeader())
}

// Patch issues a PATCH with body.
func (s *Session) Patch(ctx context.Context, rawURL string, body BodySource) (*Response, error) {
	return s.Request(ctx, "PATCH", rawURL, body, NewHeader())
}
