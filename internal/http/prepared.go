package http

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/net/http/httpguts"

	"github.com/frankli0324/go-fetch/internal/body"
	"github.com/frankli0324/go-fetch/internal/decompress"
	errs "github.com/frankli0324/go-fetch/internal/errors"
	"github.com/frankli0324/go-fetch/internal/headers"
)

// PreparedRequest is the wire descriptor of one transport call.
type PreparedRequest struct {
	*Request

	U          *url.URL // target without userinfo and fragment
	GetBody    func() (io.ReadCloser, error)
	Header     *headers.Headers
	HeaderHost string

	// ContentLength is -1 when unknown, a request with a body of unknown
	// length is sent chunked
	ContentLength int64
	Chunked       bool
}

// Prepare validates r for the network and computes the headers sent with it.
func (r *Request) Prepare() (*PreparedRequest, error) {
	if r.URL.Scheme != "http" && r.URL.Scheme != "https" {
		return nil, errs.ErrUnsupportedScheme
	}
	if r.URL.Hostname() == "" {
		return nil, fmt.Errorf("%w: only absolute URLs are supported", errs.ErrInvalidURL)
	}
	u := *r.URL
	u.User, u.Fragment, u.RawFragment = nil, "", ""

	host, err := httpguts.PunycodeHostPort(u.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidURL, err)
	}
	h := r.Header.Clone()
	// user defined headers has higher priority
	if v, ok := h.Get("Host"); ok {
		if !httpguts.ValidHostHeader(v) {
			return nil, fmt.Errorf("%w: invalid Host header %q", errs.ErrInvalidHeader, v)
		}
		host = v
		h.Delete("Host")
	}

	cl := int64(-1)
	if v, ok := h.Get("Content-Length"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cl = n
		}
		h.Delete("Content-Length")
	}
	hasBody := r.Body.Kind() != body.KindNull
	switch {
	case !hasBody && (r.Method == http.MethodPost || r.Method == http.MethodPut):
		cl = 0
	case !hasBody:
		cl = -1
	default:
		if n, ok := body.TotalBytes(r.Body); ok {
			cl = n
		}
	}

	if !h.Has("Accept") {
		h.Set("Accept", "*/*")
	}
	if !h.Has("User-Agent") {
		h.Set("User-Agent", DefaultUserAgent)
	}
	if r.Compress && !h.Has("Accept-Encoding") {
		h.Set("Accept-Encoding", decompress.AcceptEncoding)
	}
	if !h.Has("Connection") {
		h.Set("Connection", "close")
	}
	if r.URL.User != nil && !h.Has("Authorization") {
		pass, _ := r.URL.User.Password()
		cred := r.URL.User.Username() + ":" + pass
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(cred)))
	}

	return &PreparedRequest{
		Request: r, U: &u,
		GetBody: r.Body.Reader, Header: h, HeaderHost: host,
		ContentLength: cl, Chunked: hasBody && cl < 0,
	}, nil
}
