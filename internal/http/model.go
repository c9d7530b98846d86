package http

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/frankli0324/go-fetch/internal/headers"
)

// Dialers handle pretty much everything related to the actual connection,
// including setting a proxy for each request, setting resolvers, etc.
type Dialer interface {
	// Dial returns an abstract stream for writing the request and reading responses.
	// the implementation of this stream could be specific to protocols.
	Dial(ctx context.Context, r *PreparedRequest) (io.ReadWriteCloser, error)
	Unwrap() Dialer
}

// RoundTripper performs one transport call. Cancelling ctx must abort the
// call, including the body of the request being written and the body of the
// response being read.
type RoundTripper interface {
	RoundTrip(ctx context.Context, r *PreparedRequest) (*WireResponse, error)
}

type RoundTripperFunc func(ctx context.Context, r *PreparedRequest) (*WireResponse, error)

func (f RoundTripperFunc) RoundTrip(ctx context.Context, r *PreparedRequest) (*WireResponse, error) {
	return f(ctx, r)
}

// WireResponse is a response as read off the wire, before redirects,
// decompression and header validation are applied.
type WireResponse struct {
	Proto      string
	Status     string // e.g. "200 OK"
	StatusCode int
	Header     map[string][]string

	// ContentLength is the number of body bytes, -1 when unknown. 0 means
	// the response has no body, Body is then closed without being read.
	ContentLength int64
	Body          io.ReadCloser
	// Trailer is resolved by the transport once Body reached its end, nil if
	// the framing cannot carry trailers
	Trailer *Trailer
}

// StatusText is the reason phrase following the status code.
func (r *WireResponse) StatusText() string {
	_, text, _ := strings.Cut(r.Status, " ")
	return text
}

// Trailer is a future for the trailing headers of a response.
type Trailer struct {
	once sync.Once
	done chan struct{}
	h    *headers.Headers
	err  error
}

func NewTrailer() *Trailer {
	return &Trailer{done: make(chan struct{})}
}

// Resolve settles the future, later calls are no-ops.
func (t *Trailer) Resolve(h *headers.Headers, err error) {
	t.once.Do(func() {
		if h == nil {
			h = headers.New()
		}
		t.h, t.err = h, err
		close(t.done)
	})
}

// Wait blocks until the trailer is resolved or ctx is done.
func (t *Trailer) Wait(ctx context.Context) (*headers.Headers, error) {
	select {
	case <-t.done:
		return t.h.Clone(), t.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}
