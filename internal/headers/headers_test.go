package headers_test

import (
	"testing"

	errs "github.com/frankli0324/go-fetch/internal/errors"
	"github.com/frankli0324/go-fetch/internal/headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(h *headers.Headers) [][2]string {
	var out [][2]string
	h.Range(func(name, value string) bool {
		out = append(out, [2]string{name, value})
		return true
	})
	return out
}

func TestGetMissing(t *testing.T) {
	h, err := headers.FromPairs([][]string{{"foo", "bar"}})
	require.NoError(t, err)
	assert.False(t, h.Has("baz"))
	_, ok := h.Get("baz")
	assert.False(t, ok)
}

func TestSetAppend(t *testing.T) {
	h := headers.New()
	require.NoError(t, h.Set("foo", "bar"))
	require.NoError(t, h.Set("Foo", "baz"))
	assert.Equal(t, "baz", h.Value("foo"))
	require.NoError(t, h.Append("FOO", "bar"))
	assert.Equal(t, "baz, bar", h.Value("foo"))
	assert.Equal(t, []string{"baz", "bar"}, h.Values("fOo"))
}

func TestDelete(t *testing.T) {
	h, err := headers.FromPairs([][]string{{"foo", "bar"}})
	require.NoError(t, err)
	h.Delete("FOO")
	assert.False(t, h.Has("foo"))
	h.Delete("foo")
	assert.Equal(t, 0, h.Len())
}

func TestIterationSorted(t *testing.T) {
	h, err := headers.FromPairs([][]string{{"b", "2"}, {"c", "4"}, {"b", "3"}, {"A", "1"}})
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"a", "1"}, {"b", "2, 3"}, {"c", "4"}}, collect(h))
	assert.Equal(t, []string{"a", "b", "c"}, h.Keys())

	var first [][2]string
	h.Range(func(name, value string) bool {
		first = append(first, [2]string{name, value})
		return false
	})
	assert.Len(t, first, 1)
}

func TestRejectIllegal(t *testing.T) {
	cases := map[string]func() error{
		"space in name": func() error {
			_, err := headers.FromMap(map[string][]string{"He y": {"ok"}})
			return err
		},
		"non-token name": func() error {
			_, err := headers.FromMap(map[string][]string{"Hé-y": {"ok"}})
			return err
		},
		"line break in value": func() error {
			_, err := headers.FromMap(map[string][]string{"He-y": {"a\r\nb"}})
			return err
		},
		"control byte in value": func() error { return headers.New().Append("x", "\x07k") },
		"empty name":            func() error { return headers.New().Append("", "ok") },
		"set":                   func() error { return headers.New().Set("Hé-y", "ok") },
		"pair too long": func() error {
			_, err := headers.FromPairs([][]string{{"b", "2", "huh?"}})
			return err
		},
		"pair too short": func() error {
			_, err := headers.FromPairs([][]string{{"b2"}})
			return err
		},
	}
	for name, f := range cases {
		f := f
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, f(), errs.ErrInvalidHeader)
		})
	}

	_, err := headers.FromMap(map[string][]string{"He-y": {"o k"}})
	assert.NoError(t, err, "space is legal inside a value")
}

func TestLenient(t *testing.T) {
	var dropped []string
	h := headers.Lenient(map[string][]string{
		"💩":               {"ignore", "these"},
		"badList":         {"ok", "💩\r\n", "bar"},
		"Invalid-Header ": {"abc"},
		"Set-Cookie":      {"\x07k\r\n", "\x07kk\r\n"},
		"goodstr":         {"good"},
	}, func(name string) { dropped = append(dropped, name) })

	assert.Equal(t, map[string][]string{
		"badList": {"ok", "bar"},
		"goodstr": {"good"},
	}, h.Raw())
	assert.ElementsMatch(t, []string{"💩", "badList", "Invalid-Header ", "Set-Cookie"}, dropped)
}

func TestCloneIsDeep(t *testing.T) {
	h1, err := headers.FromMap(map[string][]string{"a": {"1"}})
	require.NoError(t, err)
	h2 := h1.Clone()
	require.NoError(t, h2.Set("b", "1"))
	h3 := h2.Clone()
	require.NoError(t, h3.Append("a", "2"))

	assert.Equal(t, []string{"1"}, h1.Values("a"))
	assert.False(t, h1.Has("b"))
	assert.Equal(t, []string{"1"}, h2.Values("a"))
	assert.Equal(t, []string{"1", "2"}, h3.Values("a"))
	assert.Equal(t, "1", h3.Value("b"))
}

func TestRawKeepsCasing(t *testing.T) {
	h := headers.New()
	require.NoError(t, h.Append("x-123-vv", "1"))
	require.NoError(t, h.Append("X-123-VV", "2"))
	assert.Equal(t, map[string][]string{"x-123-vv": {"1", "2"}}, h.Raw())
	assert.Equal(t, []string{"1", "2"}, h.HTTPHeader()["X-123-Vv"])
}

func TestZeroValue(t *testing.T) {
	var h headers.Headers
	assert.False(t, h.Has("a"))
	require.NoError(t, h.Append("a", "1"))
	assert.Equal(t, "1", h.Value("a"))
}
