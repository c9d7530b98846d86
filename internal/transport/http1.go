package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/frankli0324/go-fetch/internal/headers"
	"github.com/frankli0324/go-fetch/internal/http"
	"github.com/frankli0324/go-fetch/internal/transport/chunked"
)

type HTTP1 struct{}

func (t HTTP1) Write(ctx context.Context, w io.Writer, r *http.PreparedRequest) error {
	var body io.ReadCloser
	if r.GetBody != nil {
		var err error
		if body, err = r.GetBody(); err != nil {
			return err
		}
		defer body.Close() // request body is ALWAYS closed
		// a source blocked in Read only returns once it is closed
		stop := context.AfterFunc(ctx, func() { body.Close() })
		defer stop()
	}

	if err := t.writeHeader(w, r); err != nil {
		return err
	}
	if body == nil {
		return nil
	}
	switch {
	case r.Chunked:
		cw := chunked.NewChunkedWriter(w)
		if _, err := io.Copy(cw, body); err != nil {
			return err
		}
		return cw.Close()
	case r.ContentLength > 0:
		n, err := io.Copy(w, io.LimitReader(body, r.ContentLength))
		if err == nil && n != r.ContentLength {
			err = fmt.Errorf("request body length %d does not match Content-Length %d", n, r.ContentLength)
		}
		return err
	}
	return nil
}

// writeHeader writes the status and header part of an http 1.1 request
// e.g.:
//
//	GET / HTTP/1.1\r\n
//	Host: www.google.com\r\n
//	X-Xx-Yy: cccccc\r\n
//	\r\n
func (t HTTP1) writeHeader(w io.Writer, r *http.PreparedRequest) error {
	header := bufio.NewWriter(w) // default bufsize is 4096

	header.WriteString(r.Method)
	header.WriteByte(' ')
	header.WriteString(r.U.RequestURI())
	header.WriteString(" HTTP/1.1\r\n")

	header.WriteString("Host: ")
	header.WriteString(r.HeaderHost)
	header.WriteString("\r\n")
	if r.Chunked {
		header.WriteString("Transfer-Encoding: chunked\r\n")
	} else if r.ContentLength != -1 {
		header.WriteString("Content-Length: ")
		header.WriteString(strconv.FormatInt(r.ContentLength, 10))
		header.WriteString("\r\n")
	}
	r.Header.RangeRaw(func(name string, values []string) bool {
		for _, v := range values {
			header.WriteString(name)
			header.WriteString(": ")
			header.WriteString(v)
			header.WriteString("\r\n")
		}
		return true
	})
	header.WriteString("\r\n")
	// bufio.Writer keeps the first error, Flush reports it
	return header.Flush()
}

func (t HTTP1) Read(ctx context.Context, r io.Reader, req *http.PreparedRequest, resp *http.WireResponse) (err error) {
	tp := textproto.NewReader(bufio.NewReader(r))
	for {
		if err := t.readHead(tp, resp); err != nil {
			return err
		}
		// interim responses are skipped, 101 is final
		if resp.StatusCode >= 200 || resp.StatusCode == 101 {
			break
		}
	}
	return t.readTransfer(tp.R, req, resp)
}

func (t HTTP1) readHead(tp *textproto.Reader, resp *http.WireResponse) error {
	line, err := tp.ReadLine()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	proto, status, ok := strings.Cut(line, " ")
	if !ok {
		return errors.New("malformed HTTP response")
	}
	resp.Proto = proto
	resp.Status = strings.TrimLeft(status, " ")

	statusCode, _, _ := strings.Cut(resp.Status, " ")
	if len(statusCode) != 3 {
		return errors.New("malformed HTTP status code " + statusCode)
	}
	resp.StatusCode, err = strconv.Atoi(statusCode)
	if err != nil || resp.StatusCode < 100 {
		return errors.New("malformed HTTP status code " + statusCode)
	}

	// Parse the response headers.
	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	if hp, ok := mimeHeader["Pragma"]; ok && len(hp) > 0 && hp[0] == "no-cache" {
		if _, presentcc := mimeHeader["Cache-Control"]; !presentcc {
			mimeHeader["Cache-Control"] = []string{"no-cache"}
		}
	}
	resp.Header = mimeHeader
	return nil
}

func noBody(req *http.PreparedRequest, status int) bool {
	switch {
	case req != nil && req.Method == "HEAD",
		status == 204, status == 304, status == 101,
		req != nil && req.Method == "CONNECT" && status/100 == 2:
		return true
	}
	return false
}

func (t HTTP1) readTransfer(r *bufio.Reader, req *http.PreparedRequest, resp *http.WireResponse) error {
	h := textproto.MIMEHeader(resp.Header)
	contentLens := h.Values("Content-Length")

	// Hardening against HTTP request smuggling, taken from standard library
	if len(contentLens) > 1 {
		// Per RFC 7230 Section 3.3.2
		first := textproto.TrimString(contentLens[0])
		for _, ct := range contentLens[1:] {
			if first != textproto.TrimString(ct) {
				return fmt.Errorf("http: message cannot contain multiple Content-Length headers; got %q", contentLens)
			}
		}

		// deduplicate Content-Length
		h.Set("Content-Length", first)
		contentLens = h.Values("Content-Length")
	}

	cl := int64(-1)
	if len(contentLens) > 0 {
		n, err := strconv.ParseUint(textproto.TrimString(contentLens[0]), 10, 63)
		if err != nil {
			return fmt.Errorf("http: bad Content-Length %q", contentLens[0])
		}
		cl = int64(n)
	}
	resp.ContentLength = cl

	if noBody(req, resp.StatusCode) {
		resp.ContentLength = 0
		resp.Body = io.NopCloser(strings.NewReader(""))
		return nil
	}

	if te := h.Get("Transfer-Encoding"); te != "" {
		if !strings.EqualFold(textproto.TrimString(te), "chunked") {
			return fmt.Errorf("http: unsupported transfer encoding %q", te)
		}
		// the length is decided by chunks, a Content-Length next to them is ignored
		h.Del("Content-Length")
		resp.ContentLength = -1
		resp.Trailer = http.NewTrailer()
		resp.Body = io.NopCloser(chunked.NewChunkedReader(r, func(m map[string][]string, err error) {
			resp.Trailer.Resolve(headers.Lenient(m, nil), err)
		}))
		return nil
	}

	switch {
	case cl > 0:
		resp.Body = io.NopCloser(&lengthReader{r: r, n: cl})
	case cl == 0:
		resp.Body = io.NopCloser(strings.NewReader(""))
	default:
		// delimited by the end of the connection
		resp.Body = io.NopCloser(r)
	}
	return nil
}
