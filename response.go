package requests

import "net/http"

// HistoryEntry records one intermediate response encountered while
// following redirects: its headers, and the Location it resolved to.
type HistoryEntry struct {
	StatusCode int
	Header     Header
	Location   string // resolved absolute URL
}

// ResponseHead is what Connection.Send returns immediately after the
// status line and headers are parsed, before the body is read. The
// Stream attached to it is the sole means of reading the body.
type ResponseHead struct {
	StatusCode int
	Proto      string // "HTTP/1.1", "HTTP/1.0", ...
	Header     Header

	// rawCookies holds the Set-Cookie values as parsed by net/http's
	// own cookie grammar; only the jar's selection/ingestion contract
	// on top of them is ours.
	rawCookies []*http.Cookie
}

// Response is the buffered-API result: status, headers, the fully
// read body, and the redirect history accumulated while getting here.
type Response struct {
	StatusCode int
	Header     Header
	Body       []byte
	History    []HistoryEntry
}
