package requests

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// headerEntry preserves the exact casing a caller used for a header
// name, since outgoing casing must follow the caller's input verbatim.
type headerEntry struct {
	name   string // as supplied by the caller
	values []string
}

// Header is a case-insensitive, order-preserving, multi-valued header
// map. Unlike http.Header it preserves the insertion order of distinct
// header names and the casing the caller supplied, which matters for
// byte-exact wire output.
type Header struct {
	entries []headerEntry
	index   map[string]int // canonical key -> index into entries
}

// NewHeader returns an empty Header ready for use.
func NewHeader() Header {
	return Header{index: make(map[string]int)}
}

func canonicalKey(name string) string {
	return strings.ToLower(name)
}

// Set replaces all values for name, preserving the name's first-seen
// casing unless this is the first time name is set.
func (h *Header) Set(name, value string) {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	key := canonicalKey(name)
	if i, ok := h.index[key]; ok {
		h.entries[i].values = []string{value}
		return
	}
	h.index[key] = len(h.entries)
	h.entries = append(h.entries, headerEntry{name: name, values: []string{value}})
}

// Add appends value to name's value list, creating the entry if needed.
func (h *Header) Add(name, value string) {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	key := canonicalKey(name)
	if i, ok := h.index[key]; ok {
		h.entries[i].values = append(h.entries[i].values, value)
		return
	}
	h.index[key] = len(h.entries)
	h.entries = append(h.entries, headerEntry{name: name, values: []string{value}})
}

// Get returns the first value for name, or "" if absent.
func (h Header) Get(name string) string {
	if i, ok := h.index[canonicalKey(name)]; ok && len(h.entries[i].values) > 0 {
		return h.entries[i].values[0]
	}
	return ""
}

// Values returns all values for name in insertion order.
func (h Header) Values(name string) []string {
	if i, ok := h.index[canonicalKey(name)]; ok {
		return h.entries[i].values
	}
	return nil
}

// Has reports whether name was set at all.
func (h Header) Has(name string) bool {
	_, ok := h.index[canonicalKey(name)]
	return ok
}

// Del removes name entirely.
func (h *Header) Del(name string) {
	key := canonicalKey(name)
	i, ok := h.index[key]
	if !ok {
		return
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	delete(h.index, key)
	for k, idx := range h.index {
		if idx > i {
			h.index[k] = idx - 1
		}
	}
}

// Clone returns a deep copy.
func (h Header) Clone() Header {
	out := NewHeader()
	for _, e := range h.entries {
		vals := make([]string, len(e.values))
		copy(vals, e.values)
		out.index[canonicalKey(e.name)] = len(out.entries)
		out.entries = append(out.entries, headerEntry{name: e.name, values: vals})
	}
	return out
}

// Range calls fn for every (name, value) pair in insertion order,
// preserving multiplicities.
func (h Header) Range(fn func(name, value string)) {
	for _, e := range h.entries {
		for _, v := range e.values {
			fn(e.name, v)
		}
	}
}

// validate checks every header name/value this package is about to
// write to the wire; it is only ever called on synthesized or
// caller-supplied headers just before framing, never on parsed
// response headers, which come from net/http's own parser.
func (h Header) validate() error {
	for _, e := range h.entries {
		if !httpguts.ValidHeaderFieldName(e.name) {
			return &RequestError{Op: "send", Err: ErrInvalidResponse, Detail: "invalid header name " + e.name}
		}
		for _, v := range e.values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return &RequestError{Op: "send", Err: ErrInvalidResponse, Detail: "invalid header value for " + e.name}
			}
		}
	}
	return nil
}
