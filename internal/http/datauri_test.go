package http_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/frankli0324/go-fetch/internal/errors"
	"github.com/frankli0324/go-fetch/internal/http"
)

func dataFetch(t *testing.T, u string) (*http.Response, error) {
	t.Helper()
	r, err := http.NewRequest(u)
	require.NoError(t, err)
	require.True(t, r.IsDataURL())
	return http.DataResponse(r)
}

func TestDataURL(t *testing.T) {
	cases := []struct {
		url, ctype, body string
	}{
		{"data:image/gif;base64,R0lGODlhAQABAIAAAAUEBAAAACwAAAAAAQABAAACAkQBADs=", "image/gif", ""},
		{"data:text/plain,hello, world!", "text/plain", "hello, world!"},
		{"data:,hello,%20world!", "", "hello, world!"},
		{"data:,hello?with=search#no%20hash", "", "hello?with=search"},
		{"data:text/plain;base64,SGVsbG8sIFdvcmxkIQ==", "text/plain", "Hello, World!"},
	}
	for _, c := range cases {
		t.Run(c.url, func(t *testing.T) {
			res, err := dataFetch(t, c.url)
			require.NoError(t, err)
			assert.Equal(t, 200, res.Status)
			ctype, ok := res.Header.Get("Content-Type")
			assert.Equal(t, c.ctype != "", ok)
			assert.Equal(t, c.ctype, ctype)
			b, err := res.Body.Bytes()
			require.NoError(t, err)
			if c.body != "" {
				assert.Equal(t, c.body, string(b))
			} else {
				assert.NotEmpty(t, b)
			}
		})
	}
}

func TestInvalidDataURL(t *testing.T) {
	_, err := dataFetch(t, "data:@@@@")
	assert.ErrorIs(t, err, errs.ErrInvalidDataURI)
	assert.ErrorContains(t, err, "invalid data: URI")
}
