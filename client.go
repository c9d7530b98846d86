package fetch

import (
	"context"

	"github.com/frankli0324/go-fetch/internal"
	"github.com/frankli0324/go-fetch/internal/http"
)

// Client runs fetches, its zero value is ready to use. Middlewares added
// with [Client.Use] wrap every transport call, including the ones made while
// following redirects.
type Client = internal.Client
type Middleware = internal.Middleware
type Handler = internal.Handler

// DefaultClient is used by [Fetch].
var DefaultClient = &Client{}

// Fetch fetches input with [DefaultClient]. input is a URL string, a
// *[net/url.URL] or a *[Request].
//
// The returned error is a validation error (see [ErrInvalidURL] and its
// siblings), an *[AbortError] when ctx or the request signal is cancelled, or
// a *[FetchError] for anything that went wrong once the request was sent.
// The body of the returned response must be consumed or closed.
func Fetch(ctx context.Context, input any, opts ...Option) (*Response, error) {
	return DefaultClient.Fetch(ctx, input, opts...)
}

type (
	Request         = http.Request
	Response        = http.Response
	ResponseInit    = http.ResponseInit
	PreparedRequest = http.PreparedRequest
	WireResponse    = http.WireResponse
	Trailer         = http.Trailer

	RoundTripper     = http.RoundTripper
	RoundTripperFunc = http.RoundTripperFunc

	Option       = http.Option
	RedirectMode = http.RedirectMode
)

const (
	RedirectFollow = http.RedirectFollow
	RedirectManual = http.RedirectManual
	RedirectError  = http.RedirectError
)

const (
	DefaultUserAgent = http.DefaultUserAgent
	DefaultFollow    = http.DefaultFollow
)

// NewRequest builds a request, input is the same as for [Fetch]. Passing a
// *[Request] copies it, a stream body is forked between the two.
func NewRequest(input any, opts ...Option) (*Request, error) {
	return http.NewRequest(input, opts...)
}

// NewResponse builds a response around v, which may be any of the body
// types accepted by [WithBody].
func NewResponse(v any, init ResponseInit) (*Response, error) {
	return http.NewResponse(v, init)
}

var (
	WithMethod    = http.WithMethod
	WithHeader    = http.WithHeader
	WithHeaders   = http.WithHeaders
	WithBody      = http.WithBody
	WithRedirect  = http.WithRedirect
	WithFollow    = http.WithFollow
	WithCompress  = http.WithCompress
	WithSize      = http.WithSize
	WithTimeout   = http.WithTimeout
	WithSignal    = http.WithSignal
	WithDialer    = http.WithDialer
	WithTransport = http.WithTransport
	WithTLSConfig = http.WithTLSConfig
)
