package requests

import (
	"errors"
	"io"
	"net/url"
	"os"
	"strings"

	json "github.com/segmentio/encoding/json"
)

// ErrCannotReplay is returned by BodySource.Reset when the source has
// no way to rewind (e.g. it was fed by an io.Reader with no seek
// capability). A Session encountering this on a 307/308 redirect after
// the body has already been transmitted fails with ErrCannotReplayBody
// instead of silently resending a truncated body.
var ErrCannotReplay = errors.New("requests: body source cannot be reset")

// BodySource is a pull-style producer of request body bytes. Read
// follows the (n, more, err) shape so a caller can treat "more ==
// false" as a terminal condition, not an error — the same convention
// Stream uses for the response side.
type BodySource interface {
	// ContentType returns the source's natural content type, if any.
	ContentType() (string, bool)

	// SizeHint returns the exact byte length if known. false means
	// the Session must frame the body with Transfer-Encoding: chunked.
	SizeHint() (int64, bool)

	// Read fills p and reports whether more data follows this call.
	Read(p []byte) (n int, more bool, err error)

	// Reset rewinds the source for redirect replay. Returns
	// ErrCannotReplay if unsupported.
	Reset() error
}

// EmptyBody is a BodySource with no bytes, used for GET/HEAD/DELETE.
type EmptyBody struct{}

func (EmptyBody) ContentType() (string, bool)    { return "", false }
func (EmptyBody) SizeHint() (int64, bool)        { return 0, true }
func (EmptyBody) Read(p []byte) (int, bool, error) { return 0, false, nil }
func (EmptyBody) Reset() error                   { return nil }

// BytesBody is an in-memory BodySource.
type BytesBody struct {
	data []byte
	ct   string
	pos  int
}

// NewBytesBody wraps data as a BodySource with the given content type
// (may be empty, in which case no Content-Type header is synthesized).
func NewBytesBody(data []byte, contentType string) *BytesBody {
	return &BytesBody{data: data, ct: contentType}
}

func (b *BytesBody) ContentType() (string, bool) { return b.ct, b.ct != "" }
func (b *BytesBody) SizeHint() (int64, bool)     { return int64(len(b.data)), true }

func (b *BytesBody) Read(p []byte) (int, bool, error) {
	if b.pos >= len(b.data) {
		return 0, false, nil
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, b.pos < len(b.data), nil
}

func (b *BytesBody) Reset() error {
	b.pos = 0
	return nil
}

// FormBody is an ordered application/x-www-form-urlencoded BodySource.
// Unlike url.Values (a map), FormBody preserves insertion order and
// repeated keys, matching the same order/multiplicity guarantee Header
// makes for request headers.
type FormBody struct {
	*BytesBody
}

// FormField is one key/value pair of a FormBody, in submission order.
type FormField struct{ Key, Value string }

// NewFormBody percent-encodes fields in order into a BodySource.
func NewFormBody(fields []FormField) *FormBody {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	return &FormBody{BytesBody: NewBytesBody([]byte(b.String()), "application/x-www-form-urlencoded")}
}

// JSONBody marshals v once (via segmentio/encoding/json) and serves it
// as a BytesBody with content type application/json.
type JSONBody struct {
	*BytesBody
}

// NewJSONBody marshals v and returns a BodySource for it.
func NewJSONBody(v any) (*JSONBody, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &JSONBody{BytesBody: NewBytesBody(data, "application/json")}, nil
}

// FileBody streams a file's contents, opening lazily and reopening +
// seeking to zero on Reset so 307/308 redirects can replay it.
type FileBody struct {
	path string
	ct   string
	f    *os.File
	size int64
}

// NewFileBody stats path to discover its size; the file is not opened
// until the first Read call.
func NewFileBody(path, contentType string) (*FileBody, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &FileBody{path: path, ct: contentType, size: info.Size()}, nil
}

func (f *FileBody) ContentType() (string, bool) { return f.ct, f.ct != "" }
func (f *FileBody) SizeHint() (int64, bool)     { return f.size, true }

func (f *FileBody) Read(p []byte) (int, bool, error) {
	if f.f == nil {
		file, err := os.Open(f.path)
		if err != nil {
			return 0, false, err
		}
		f.f = file
	}
	n, err := f.f.Read(p)
	if err == io.EOF {
		f.f.Close()
		f.f = nil
		return n, false, nil
	}
	if err != nil {
		return n, false, err
	}
	return n, true, nil
}

// Reset closes the file if it is open and re-reads its size; the next
// Read reopens it from the start.
func (f *FileBody) Reset() error {
	if f.f != nil {
		f.f.Close()
		f.f = nil
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return err
	}
	f.size = info.Size()
	return nil
}
