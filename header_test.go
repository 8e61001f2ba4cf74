package requests

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderPreservesCasingAndOrder(t *testing.T) {
	h := NewHeader()
	h.Set("X-Custom", "1")
	h.Set("Accept", "text/plain")
	h.Add("X-Multi", "a")
	h.Add("X-Multi", "b")

	var names []string
	h.Range(func(name, value string) {
		names = append(names, name)
	})
	assert.Equal(t, []string{"X-Custom", "Accept", "X-Multi", "X-Multi"}, names)
	assert.Equal(t, []string{"a", "b"}, h.Values("X-Multi"))
}

func TestHeaderGetIsCaseInsensitive(t *testing.T) {
	h := NewHeader()
	h.Set("Content-Type", "application/json")
	assert.Equal(t, "application/json", h.Get("content-type"))
	assert.True(t, h.Has("CONTENT-TYPE"))
}

func TestHeaderSetReplacesValues(t *testing.T) {
	h := NewHeader()
	h.Add("X-A", "1")
	h.Add("X-A", "2")
	h.Set("X-A", "3")
	assert.Equal(t, []string{"3"}, h.Values("X-A"))
}

func TestHeaderDel(t *testing.T) {
	h := NewHeader()
	h.Set("A", "1")
	h.Set("B", "2")
	h.Del("A")
	assert.False(t, h.Has("A"))
	assert.Equal(t, "2", h.Get("B"))
}

func TestHeaderCloneIsIndependent(t *testing.T) {
	h := NewHeader()
	h.Set("A", "1")
	clone := h.Clone()
	clone.Set("A", "2")
	assert.Equal(t, "1", h.Get("A"))
	assert.Equal(t, "2", clone.Get("A"))
}

func TestHeaderValidateRejectsInvalidValue(t *testing.T) {
	h := NewHeader()
	h.Set("X-Bad", "line1\r\nSet-Cookie: evil=1")
	require.Error(t, h.validate())
}

func TestHeaderValidateAcceptsOrdinaryHeaders(t *testing.T) {
	h := NewHeader()
	h.Set("Accept", "text/plain")
	require.NoError(t, h.validate())
}

func TestHeaderCloneMatchesOriginalShape(t *testing.T) {
	h := NewHeader()
	h.Set("Accept", "text/plain")
	h.Add("X-Multi", "a")
	h.Add("X-Multi", "b")

	var want, got [][2]string
	h.Range(func(name, value string) { want = append(want, [2]string{name, value}) })
	h.Clone().Range(func(name, value string) { got = append(got, [2]string{name, value}) })

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Clone() produced a different (name, value) sequence (-want +got):\n%s", diff)
	}
}
