package requests

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesBodyReadToCompletion(t *testing.T) {
	b := NewBytesBody([]byte("hello world"), "text/plain")
	size, ok := b.SizeHint()
	require.True(t, ok)
	assert.EqualValues(t, 11, size)

	var out []byte
	buf := make([]byte, 4)
	for {
		n, more, err := b.Read(buf)
		require.NoError(t, err)
		out = append(out, buf[:n]...)
		if !more {
			break
		}
	}
	assert.Equal(t, "hello world", string(out))
}

func TestBytesBodyReset(t *testing.T) {
	b := NewBytesBody([]byte("abc"), "")
	buf := make([]byte, 3)
	n, more, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, more)

	require.NoError(t, b.Reset())
	n, _, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestFormBodyPreservesOrderAndMultiplicities(t *testing.T) {
	body := NewFormBody([]FormField{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "x y"},
		{Key: "a", Value: "2"},
	})
	data, err := readAll(body)
	require.NoError(t, err)
	assert.Equal(t, "a=1&b=x+y&a=2", string(data))
}

func TestJSONBodyMarshalsOnce(t *testing.T) {
	body, err := NewJSONBody(map[string]int{"x": 1})
	require.NoError(t, err)
	ct, ok := body.ContentType()
	require.True(t, ok)
	assert.Equal(t, "application/json", ct)

	data, err := readAll(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(data))
}

func TestFileBodyReadAndReset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte("file contents"), 0o600))

	fb, err := NewFileBody(path, "application/octet-stream")
	require.NoError(t, err)
	size, ok := fb.SizeHint()
	require.True(t, ok)
	assert.EqualValues(t, len("file contents"), size)

	data, err := readAll(fb)
	require.NoError(t, err)
	assert.Equal(t, "file contents", string(data))

	require.NoError(t, fb.Reset())
	data, err = readAll(fb)
	require.NoError(t, err)
	assert.Equal(t, "file contents", string(data))
}

// readAll drains a BodySource using its (n, more, err) contract.
func readAll(b BodySource) ([]byte, error) {
	var out []byte
	buf := make([]byte, 8)
	for {
		n, more, err := b.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
		if !more {
			return out, nil
		}
	}
}
