package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frankli0324/go-fetch/internal/body"
	errs "github.com/frankli0324/go-fetch/internal/errors"
	"github.com/frankli0324/go-fetch/internal/headers"
)

type RedirectMode string

const (
	RedirectFollow RedirectMode = "follow"
	RedirectManual RedirectMode = "manual"
	RedirectError  RedirectMode = "error"
)

// DefaultFollow is the number of redirects followed unless configured.
const DefaultFollow = 20

// Request describes one logical fetch. Only the orchestrator mutates a
// Request, when advancing it through a redirect. Callers derive new requests
// with [NewRequest] or [Request.Clone].
type Request struct {
	Method string
	URL    *url.URL
	Header *headers.Headers
	Body   *body.Body

	Redirect RedirectMode
	Follow   int           // redirects allowed
	Counter  int           // redirects taken so far
	Compress bool          // ask for and decode compressed responses
	Size     int64         // response body cap, 0 is unlimited
	Timeout  time.Duration // request and body phase timeout, 0 is unlimited
	Signal   context.Context

	// Dialer replaces the dialer of the client for this request
	Dialer Dialer
	// Transport replaces the whole transport call for this request
	Transport RoundTripper
	// TLSConfig overrides the trust settings of the dialer for this request
	TLSConfig *tls.Config

	rawBody any
	hasBody bool
}

type Option func(*Request) error

func WithMethod(method string) Option {
	return func(r *Request) error {
		r.Method = method
		return nil
	}
}

// WithHeader appends a header value.
func WithHeader(name, value string) Option {
	return func(r *Request) error {
		return r.Header.Append(name, value)
	}
}

// WithHeaders replaces the request headers. h is a *[headers.Headers],
// map[string][]string, map[string]string or a [][]string of pairs.
func WithHeaders(h any) Option {
	return func(r *Request) (err error) {
		switch h := h.(type) {
		case *headers.Headers:
			r.Header = h.Clone()
		case map[string][]string:
			r.Header, err = headers.FromMap(h)
		case http.Header:
			r.Header, err = headers.FromMap(h)
		case map[string]string:
			m := make(map[string][]string, len(h))
			for k, v := range h {
				m[k] = []string{v}
			}
			r.Header, err = headers.FromMap(m)
		case [][]string:
			r.Header, err = headers.FromPairs(h)
		default:
			err = fmt.Errorf("%w: unsupported headers type %T", errs.ErrInvalidHeader, h)
		}
		return err
	}
}

// WithBody sets the payload, see [body.New] for the accepted types.
func WithBody(v any) Option {
	return func(r *Request) error {
		r.rawBody, r.hasBody = v, true
		return nil
	}
}

func WithRedirect(mode RedirectMode) Option {
	return func(r *Request) error {
		switch mode {
		case RedirectFollow, RedirectManual, RedirectError:
			r.Redirect = mode
			return nil
		}
		return fmt.Errorf("%w: %q", errs.ErrInvalidRedirect, mode)
	}
}

func WithFollow(n int) Option {
	return func(r *Request) error {
		if n < 0 {
			return fmt.Errorf("follow must not be negative, got %d", n)
		}
		r.Follow = n
		return nil
	}
}

func WithCompress(compress bool) Option {
	return func(r *Request) error {
		r.Compress = compress
		return nil
	}
}

func WithSize(n int64) Option {
	return func(r *Request) error {
		r.Size = n
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Request) error {
		r.Timeout = d
		return nil
	}
}

// WithSignal attaches a cancellation token on top of the one the fetch is
// started with.
func WithSignal(ctx context.Context) Option {
	return func(r *Request) error {
		r.Signal = ctx
		return nil
	}
}

func WithDialer(d Dialer) Option {
	return func(r *Request) error {
		r.Dialer = d
		return nil
	}
}

func WithTransport(rt RoundTripper) Option {
	return func(r *Request) error {
		r.Transport = rt
		return nil
	}
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(r *Request) error {
		r.TLSConfig = cfg
		return nil
	}
}

// ParseURL parses an absolute URL.
func ParseURL(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidURL, err)
	}
	if !absolute(u) {
		return nil, fmt.Errorf("%w: only absolute URLs are supported: %s", errs.ErrInvalidURL, s)
	}
	return u, nil
}

func absolute(u *url.URL) bool {
	return u.Scheme != "" && (u.Host != "" || u.Scheme == "data")
}

// NewRequest builds a request from a URL string, a *[net/url.URL] or another
// *Request, whose settings and body (cloned) are inherited before opts are
// applied.
func NewRequest(input any, opts ...Option) (*Request, error) {
	return newRequest(input, false, opts)
}

// Take is [NewRequest] for a request about to be sent: the body of r is moved
// into the result instead of cloned, r reads as used afterwards.
func Take(r *Request, opts ...Option) (*Request, error) {
	return newRequest(r, true, opts)
}

func newRequest(input any, move bool, opts []Option) (*Request, error) {
	r := &Request{
		Method:   http.MethodGet,
		Header:   headers.New(),
		Redirect: RedirectFollow,
		Follow:   DefaultFollow,
		Compress: true,
	}
	var parent *Request
	switch in := input.(type) {
	case string:
		u, err := ParseURL(in)
		if err != nil {
			return nil, err
		}
		r.URL = u
	case *url.URL:
		if in == nil || !absolute(in) {
			return nil, fmt.Errorf("%w: only absolute URLs are supported", errs.ErrInvalidURL)
		}
		u := *in
		r.URL = &u
	case *Request:
		parent = in
		u := *in.URL
		r.Method, r.URL, r.Header = in.Method, &u, in.Header.Clone()
		r.Redirect, r.Follow, r.Counter = in.Redirect, in.Follow, in.Counter
		r.Compress, r.Size, r.Timeout, r.Signal = in.Compress, in.Size, in.Timeout, in.Signal
		r.Dialer, r.Transport, r.TLSConfig = in.Dialer, in.Transport, in.TLSConfig
	default:
		return nil, fmt.Errorf("%w: unsupported input %T", errs.ErrInvalidURL, input)
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.Method = strings.ToUpper(r.Method)

	bopts := r.bodyOptions()
	var err error
	switch {
	case r.hasBody:
		r.Body, err = body.New(r.rawBody, bopts)
	case parent != nil && move:
		if r.Body, err = parent.Body.Move(); err == nil {
			if r.Body == nil {
				r.Body, err = body.New(nil, bopts)
			} else {
				r.Body.SetOptions(bopts)
			}
		}
	case parent != nil:
		r.Body, err = body.New(parent.Body, bopts)
	default:
		r.Body, err = body.New(nil, bopts)
	}
	r.rawBody, r.hasBody = nil, false
	if err != nil {
		return nil, err
	}
	if r.Body.Kind() != body.KindNull && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		return nil, errs.ErrBodyNotAllowed
	}
	if ctype, ok := body.ExtractContentType(r.Body); ok && !r.Header.Has("Content-Type") {
		if err := r.Header.Set("Content-Type", ctype); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Request) bodyOptions() body.Options {
	return body.Options{
		Size: r.Size, Timeout: r.Timeout,
		URL: r.URL.String(), Header: r.Header, Signal: r.Signal,
	}
}

// Clone copies r, an unconsumed stream body is forked between r and the copy.
func (r *Request) Clone() (*Request, error) {
	return NewRequest(r)
}

// SetBody replaces the body, used when a redirect rewrites the request.
func (r *Request) SetBody(b *body.Body) {
	if b == nil {
		b, _ = body.New(nil, r.bodyOptions())
	}
	r.Body = b
}

// SetURL moves r to u, keeping the body diagnostics in sync.
func (r *Request) SetURL(u *url.URL) {
	r.URL = u
	if r.Body != nil {
		r.Body.SetOptions(r.bodyOptions())
	}
}
