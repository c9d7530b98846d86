package transport_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankli0324/go-fetch/internal/headers"
	"github.com/frankli0324/go-fetch/internal/http"
	"github.com/frankli0324/go-fetch/internal/transport"
)

type tCase struct {
	data []byte
	req  *http.PreparedRequest
}

func prepared(method, rawURL string, h [][]string, body string, cl int64, chunked bool) *http.PreparedRequest {
	u, _ := url.Parse(rawURL)
	hd, _ := headers.FromPairs(h)
	pr := &http.PreparedRequest{
		Request:       &http.Request{Method: method},
		U:             u,
		Header:        hd,
		HeaderHost:    u.Host,
		ContentLength: cl,
		Chunked:       chunked,
	}
	if body != "" {
		pr.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil }
	}
	return pr
}

var reqShouldBe = map[string]tCase{
	"BasicRequest": {
		req:  prepared("GET", "http://www.example.com", nil, "", -1, false),
		data: []byte("GET / HTTP/1.1\r\nHost: www.example.com\r\n\r\n"),
	},
	"QueryNonStandard": {
		req:  prepared("GET", "http://www.example.com/test?1=33=1", nil, "", -1, false),
		data: []byte("GET /test?1=33=1 HTTP/1.1\r\nHost: www.example.com\r\n\r\n"),
	},
	"HeaderNotCanonicalized": {
		req:  prepared("GET", "http://www.example.com/", [][]string{{"x-123-vv", "1"}, {"Accept", "*/*"}}, "", -1, false),
		data: []byte("GET / HTTP/1.1\r\nHost: www.example.com\r\nAccept: */*\r\nx-123-vv: 1\r\n\r\n"),
	},
	"RepeatedHeader": {
		req:  prepared("GET", "http://www.example.com/", [][]string{{"X-A", "1"}, {"x-a", "2"}}, "", -1, false),
		data: []byte("GET / HTTP/1.1\r\nHost: www.example.com\r\nX-A: 1\r\nX-A: 2\r\n\r\n"),
	},
	"EmptyPost": {
		req:  prepared("POST", "http://www.example.com/submit", nil, "", 0, false),
		data: []byte("POST /submit HTTP/1.1\r\nHost: www.example.com\r\nContent-Length: 0\r\n\r\n"),
	},
	"KnownLength": {
		req:  prepared("POST", "http://www.example.com/submit", nil, "a=1", 3, false),
		data: []byte("POST /submit HTTP/1.1\r\nHost: www.example.com\r\nContent-Length: 3\r\n\r\na=1"),
	},
	"Chunked": {
		req:  prepared("PUT", "http://www.example.com/", nil, "a=1", -1, true),
		data: []byte("PUT / HTTP/1.1\r\nHost: www.example.com\r\nTransfer-Encoding: chunked\r\n\r\n3\r\na=1\r\n0\r\n\r\n"),
	},
}

func TestRequestSerialize(t *testing.T) {
	for name, cas := range reqShouldBe {
		tCase := cas
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, transport.HTTP1{}.Write(context.Background(), &buf, tCase.req))
			if err := iotest.TestReader(&buf, tCase.data); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestRequestBodyShorterThanLength(t *testing.T) {
	var buf bytes.Buffer
	err := transport.HTTP1{}.Write(context.Background(), &buf,
		prepared("POST", "http://www.example.com/", nil, "a=1", 10, false))
	assert.ErrorContains(t, err, "does not match Content-Length")
}

func TestRequestBodyClosedOnCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	pr := prepared("POST", "http://www.example.com/", nil, "", -1, true)
	pr.GetBody = func() (io.ReadCloser, error) { return r, nil }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		io.WriteString(w, "first")
		cancel()
	}()
	err := transport.HTTP1{}.Write(ctx, io.Discard, pr)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func read(t *testing.T, method, raw string) (*http.WireResponse, error) {
	t.Helper()
	resp := &http.WireResponse{}
	req := prepared(method, "http://www.example.com/", nil, "", -1, false)
	err := transport.HTTP1{}.Read(context.Background(), iotest.OneByteReader(strings.NewReader(raw)), req, resp)
	return resp, err
}

func TestResponseParse(t *testing.T) {
	cases := []struct {
		name, method, raw string
		status            int
		text, body        string
		header            map[string]string
	}{
		{
			name: "ContentLength", method: "GET",
			raw:    "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nX-A: 1\r\n\r\nhello, trailing garbage",
			status: 200, text: "OK", body: "hello",
			header: map[string]string{"X-A": "1", "Content-Length": "5"},
		},
		{
			name: "DuplicateContentLength", method: "GET",
			raw:    "HTTP/1.1 200 OK\r\nContent-Length: 2\r\nContent-Length: 2\r\n\r\nok",
			status: 200, text: "OK", body: "ok",
		},
		{
			name: "InterimSkipped", method: "GET",
			raw:    "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 204 No Content\r\n\r\n",
			status: 204, text: "No Content", body: "",
		},
		{
			name: "HeadHasNoBody", method: "HEAD",
			raw:    "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n",
			status: 200, text: "OK", body: "",
		},
		{
			name: "UntilClose", method: "GET",
			raw:    "HTTP/1.0 200 OK\r\n\r\nhello",
			status: 200, text: "OK", body: "hello",
		},
		{
			name: "Chunked", method: "GET",
			raw:    "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6;ext=1\r\n world\r\n0\r\n\r\n",
			status: 200, text: "OK", body: "hello world",
		},
		{
			name: "PragmaNoCache", method: "GET",
			raw:    "HTTP/1.1 301 Moved Permanently\r\nPragma: no-cache\r\nLocation: /b\r\nContent-Length: 0\r\n\r\n",
			status: 301, text: "Moved Permanently", body: "",
			header: map[string]string{"Cache-Control": "no-cache", "Location": "/b"},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, err := read(t, c.method, c.raw)
			require.NoError(t, err)
			assert.Equal(t, c.status, resp.StatusCode)
			assert.Equal(t, c.text, resp.StatusText())
			for k, v := range c.header {
				assert.Equal(t, []string{v}, resp.Header[k])
			}
			b, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, c.body, string(b))
		})
	}
}

func TestResponseMalformed(t *testing.T) {
	for name, raw := range map[string]string{
		"ShortStatus":           "HTTP/1.1 20 OK\r\n\r\n",
		"NoStatus":              "HTTP/1.1\r\n\r\n",
		"Truncated":             "HTTP/1.1 200 OK\r\nContent-Le",
		"ConflictingLength":     "HTTP/1.1 200 OK\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\nok",
		"BadLength":             "HTTP/1.1 200 OK\r\nContent-Length: -1\r\n\r\n",
		"UnknownTransferCoding": "HTTP/1.1 200 OK\r\nTransfer-Encoding: gzip\r\n\r\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := read(t, "GET", raw)
			assert.Error(t, err)
		})
	}
}

func TestPrematureClose(t *testing.T) {
	resp, err := read(t, "GET", "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nhello")
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	assert.Equal(t, "hello", string(b))
	assert.ErrorIs(t, err, transport.ErrPrematureClose)

	var coder interface{ Code() string }
	require.True(t, errors.As(err, &coder))
	assert.Equal(t, "ERR_STREAM_PREMATURE_CLOSE", coder.Code())
}

func TestChunkedTrailer(t *testing.T) {
	resp, err := read(t, "GET", "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n"+
		"3\r\nabc\r\n0\r\nX-Checksum: abc\r\n\r\n")
	require.NoError(t, err)
	require.NotNil(t, resp.Trailer)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))

	h, err := resp.Trailer.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", h.Value("x-checksum"))
}

func TestChunkedTruncated(t *testing.T) {
	resp, err := read(t, "GET", "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhel")
	require.NoError(t, err)
	_, err = io.ReadAll(resp.Body)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = resp.Trailer.Wait(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func serve(t *testing.T, conn net.Conn, respond func(req *nethttp.Request)) {
	t.Helper()
	go func() {
		req, err := nethttp.ReadRequest(bufio.NewReader(conn))
		if err != nil {
			return
		}
		respond(req)
	}()
}

func TestRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	got := make(chan string, 1)
	serve(t, server, func(req *nethttp.Request) {
		b, _ := io.ReadAll(req.Body)
		got <- req.Method + " " + req.URL.Path + " " + string(b)
		io.WriteString(server, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
		io.Copy(io.Discard, server) // until the client hangs up
		server.Close()
	})

	resp, err := transport.RoundTrip(context.Background(), transport.HTTP1{}, client,
		prepared("POST", "http://www.example.com/submit", nil, "a=1", 3, false))
	require.NoError(t, err)
	assert.Equal(t, "POST /submit a=1", <-got)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(b))
	require.NoError(t, resp.Body.Close())
}

func TestRoundTripAbort(t *testing.T) {
	client, server := net.Pipe()
	ctx, cancel := context.WithCancelCause(context.Background())
	cause := errors.New("stop")
	serve(t, server, func(*nethttp.Request) {
		cancel(cause)
		io.Copy(io.Discard, server)
		server.Close()
	})

	_, err := transport.RoundTrip(ctx, transport.HTTP1{}, client,
		prepared("GET", "http://www.example.com/", nil, "", -1, false))
	assert.ErrorIs(t, err, cause)
}

func TestRoundTripAbortBody(t *testing.T) {
	client, server := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	serve(t, server, func(*nethttp.Request) {
		io.WriteString(server, "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n1\r\na\r\n")
		io.Copy(io.Discard, server)
		server.Close()
	})

	resp, err := transport.RoundTrip(ctx, transport.HTTP1{}, client,
		prepared("GET", "http://www.example.com/", nil, "", -1, false))
	require.NoError(t, err)
	buf := make([]byte, 1)
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)

	cancel()
	_, err = io.ReadAll(resp.Body)
	assert.Error(t, err)
	_, err = resp.Trailer.Wait(context.Background())
	assert.Error(t, err)
	resp.Body.Close()
}
