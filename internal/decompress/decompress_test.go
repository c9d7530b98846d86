package decompress_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/frankli0324/go-fetch/internal/decompress"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hello = "hello world"

func gzipped(t *testing.T, s string) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zlibbed(t *testing.T, s string) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func rawDeflated(t *testing.T, s string) []byte {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func brotlied(t *testing.T, s string) []byte {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func decode(data []byte, algo decompress.Algorithm) (string, error) {
	r := decompress.Wrap(io.NopCloser(bytes.NewReader(data)), algo)
	defer r.Close()
	b, err := io.ReadAll(r)
	return string(b), err
}

func TestSelect(t *testing.T) {
	cases := []struct {
		method, encoding string
		status           int
		want             decompress.Algorithm
	}{
		{"GET", "gzip", 200, decompress.Gzip},
		{"GET", "X-GZIP", 200, decompress.Gzip},
		{"GET", "deflate", 200, decompress.Deflate},
		{"GET", "br", 200, decompress.Brotli},
		{"GET", "br, gzip", 200, decompress.Brotli},
		{"GET", "identity, gzip", 200, decompress.None},
		{"GET", "", 200, decompress.None},
		{"GET", "compress", 200, decompress.None},
		{"HEAD", "gzip", 200, decompress.None},
		{"GET", "gzip", 204, decompress.None},
		{"GET", "br", 304, decompress.None},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, decompress.Select(c.method, c.status, c.encoding), "%+v", c)
	}
}

func TestDecode(t *testing.T) {
	t.Run("gzip", func(t *testing.T) {
		s, err := decode(gzipped(t, hello), decompress.Gzip)
		require.NoError(t, err)
		assert.Equal(t, hello, s)
	})

	t.Run("gzip with truncated trailer", func(t *testing.T) {
		data := gzipped(t, hello)
		s, err := decode(data[:len(data)-4], decompress.Gzip)
		require.NoError(t, err)
		assert.Equal(t, hello, s)
	})

	t.Run("zlib deflate", func(t *testing.T) {
		s, err := decode(zlibbed(t, hello), decompress.Deflate)
		require.NoError(t, err)
		assert.Equal(t, hello, s)
	})

	t.Run("raw deflate labelled deflate", func(t *testing.T) {
		s, err := decode(rawDeflated(t, hello), decompress.Deflate)
		require.NoError(t, err)
		assert.Equal(t, hello, s)
	})

	t.Run("brotli", func(t *testing.T) {
		s, err := decode(brotlied(t, hello), decompress.Brotli)
		require.NoError(t, err)
		assert.Equal(t, hello, s)
	})

	t.Run("empty gzip body", func(t *testing.T) {
		s, err := decode(nil, decompress.Gzip)
		require.NoError(t, err)
		assert.Empty(t, s)
	})

	t.Run("passthrough", func(t *testing.T) {
		s, err := decode([]byte(hello), decompress.None)
		require.NoError(t, err)
		assert.Equal(t, hello, s)
	})
}

func TestCorruption(t *testing.T) {
	t.Run("not gzip at all", func(t *testing.T) {
		_, err := decode([]byte("0123456789"), decompress.Gzip)
		var ce *decompress.CodecError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "Z_DATA_ERROR", ce.Code())
		assert.ErrorIs(t, err, gzip.ErrHeader)
	})

	t.Run("not brotli", func(t *testing.T) {
		_, err := decode(bytes.Repeat([]byte{0xff}, 32), decompress.Brotli)
		var ce *decompress.CodecError
		require.ErrorAs(t, err, &ce)
		assert.Contains(t, ce.Code(), "BROTLI_DECODER")
	})

	t.Run("transport errors pass through", func(t *testing.T) {
		boom := io.ErrClosedPipe
		data := gzipped(t, hello)
		pr, pw := io.Pipe()
		go func() {
			pw.Write(data[:12])
			pw.CloseWithError(boom)
		}()
		r := decompress.Wrap(pr, decompress.Gzip)
		_, err := io.ReadAll(r)
		assert.ErrorIs(t, err, boom)
		var ce *decompress.CodecError
		assert.NotErrorAs(t, err, &ce)
	})
}
