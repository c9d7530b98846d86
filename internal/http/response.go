package http

import (
	"context"
	"net/http"
	"time"

	"github.com/frankli0324/go-fetch/internal/body"
	"github.com/frankli0324/go-fetch/internal/headers"
)

// Response is the settled result of a fetch, its Body views the transport
// stream through at most one decompression stage.
type Response struct {
	URL        string
	Status     int
	StatusText string
	Header     *headers.Headers
	Body       *body.Body
	// Counter is the number of redirects taken to reach this response
	Counter int

	trailer *Trailer
}

type ResponseInit struct {
	URL        string
	Status     int
	StatusText string
	Header     *headers.Headers
	Counter    int

	Size    int64
	Timeout time.Duration
	Signal  context.Context

	Trailer *Trailer
}

// NewResponse builds a response around v, see [body.New] for the accepted
// types. The status defaults to 200.
func NewResponse(v any, init ResponseInit) (*Response, error) {
	r := &Response{
		URL: init.URL, Status: init.Status, StatusText: init.StatusText,
		Header: init.Header, Counter: init.Counter, trailer: init.Trailer,
	}
	if r.Status == 0 {
		r.Status = http.StatusOK
	}
	if r.StatusText == "" {
		r.StatusText = http.StatusText(r.Status)
	}
	if r.Header == nil {
		r.Header = headers.New()
	}
	b, err := body.New(v, body.Options{
		Size: init.Size, Timeout: init.Timeout,
		URL: init.URL, Header: r.Header, Signal: init.Signal,
	})
	if err != nil {
		return nil, err
	}
	r.Body = b
	if ctype, ok := body.ExtractContentType(b); ok && !r.Header.Has("Content-Type") {
		if err := r.Header.Set("Content-Type", ctype); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *Response) Redirected() bool {
	return r.Counter > 0
}

// Trailer waits for the trailing headers, available once the body has been
// read to its end. A response whose framing carries no trailers resolves to
// empty headers at once.
func (r *Response) Trailer(ctx context.Context) (*headers.Headers, error) {
	if r.trailer == nil {
		return headers.New(), nil
	}
	return r.trailer.Wait(ctx)
}

// Clone copies r, an unconsumed stream body is forked between r and the copy.
func (r *Response) Clone() (*Response, error) {
	b, err := r.Body.Clone()
	if err != nil {
		return nil, err
	}
	c := *r
	c.Header = r.Header.Clone()
	if b != nil {
		opts := b.Options()
		opts.Header = c.Header
		b.SetOptions(opts)
	}
	c.Body = b
	return &c, nil
}
