package internal

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/frankli0324/go-fetch/internal/dialer"
	errs "github.com/frankli0324/go-fetch/internal/errors"
	"github.com/frankli0324/go-fetch/internal/http"
	"github.com/frankli0324/go-fetch/internal/transport"
)

// Handler performs one transport call for a prepared request.
type Handler = func(ctx context.Context, req *http.PreparedRequest) (*http.WireResponse, error)
type Middleware func(next Handler) Handler

// Client runs fetches. The zero value is ready to use, it dials with a
// shared *[dialer.CoreDialer] and speaks HTTP/1.1.
type Client struct {
	middlewares []Middleware
	dialer      http.Dialer
	transport   transport.Transport
	logger      logrus.FieldLogger
	tracer      trace.Tracer
}

var (
	defaultDialer = dialer.New()
	defaultLogger = func() *logrus.Logger {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		return l
	}()
)

// Use appends mw to the end of the chain. The last "Use"d mw executes first
func (c *Client) Use(mws ...Middleware) {
	c.middlewares = append(c.middlewares, mws...)
}

// UseDialer replaces the dialer with the result of wrap, which receives the
// current one.
func (c *Client) UseDialer(wrap func(http.Dialer) http.Dialer) {
	c.dialer = wrap(c.getDialer())
}

// UseTransport replaces the wire protocol spoken over dialed connections.
func (c *Client) UseTransport(t transport.Transport) {
	c.transport = t
}

func (c *Client) SetLogger(l logrus.FieldLogger) {
	c.logger = l
}

func (c *Client) SetTracer(t trace.Tracer) {
	c.tracer = t
}

func (c *Client) getDialer() http.Dialer {
	if c.dialer != nil {
		return c.dialer
	}
	return defaultDialer
}

func (c *Client) getTransport() transport.Transport {
	if c.transport != nil {
		return c.transport
	}
	return transport.HTTP1{}
}

func (c *Client) log() logrus.FieldLogger {
	if c.logger != nil {
		return c.logger
	}
	return defaultLogger
}

func (c *Client) getTracer() trace.Tracer {
	if c.tracer != nil {
		return c.tracer
	}
	return noop.Tracer{}
}

// roundTrip is the innermost handler: a per-request transport if any,
// otherwise a fresh connection carrying exactly one exchange.
func (c *Client) roundTrip(ctx context.Context, pr *http.PreparedRequest) (*http.WireResponse, error) {
	ctx, span := c.getTracer().Start(ctx, "fetch.roundtrip", trace.WithAttributes(
		attribute.String("http.request.method", pr.Method),
		attribute.String("url.full", pr.U.String()),
	))
	defer span.End()

	var (
		resp *http.WireResponse
		err  error
	)
	if pr.Transport != nil {
		resp, err = pr.Transport.RoundTrip(ctx, pr)
	} else {
		d := pr.Dialer
		if d == nil {
			d = c.getDialer()
		}
		conn, derr := d.Dial(ctx, pr)
		if derr != nil {
			err = derr
		} else {
			resp, err = transport.RoundTrip(ctx, c.getTransport(), conn, pr)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

func (c *Client) handler() Handler {
	next := c.roundTrip
	for _, mw := range c.middlewares {
		next = mw(next)
	}
	return next
}

// Fetch performs the fetch described by input and opts. input is a URL
// string, a *[url.URL] or a *[http.Request]; a request passed in hands its
// body over to the fetch.
//
// ctx aborts the fetch at any phase, including the consumption of the
// response body. The returned body must be consumed or closed.
func (c *Client) Fetch(ctx context.Context, input any, opts ...http.Option) (*http.Response, error) {
	var (
		req *http.Request
		err error
	)
	if r, ok := input.(*http.Request); ok {
		req, err = http.Take(r, opts...)
	} else {
		req, err = http.NewRequest(input, opts...)
	}
	if err != nil {
		return nil, err
	}

	ctx, span := c.getTracer().Start(ctx, "fetch", trace.WithAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.full", req.URL.Redacted()),
	))
	defer span.End()

	sig, release := mergeSignal(ctx, req.Signal)
	req.Signal = sig
	req.SetURL(req.URL)

	res, err := c.fetch(sig, req, release)
	if err != nil {
		release()
		req.Body.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("http.response.status_code", res.Status),
		attribute.Int("fetch.redirects", res.Counter),
	)
	return res, nil
}

func (c *Client) fetch(sig context.Context, req *http.Request, release func()) (*http.Response, error) {
	if sig.Err() != nil {
		return nil, errs.Aborted(context.Cause(sig))
	}
	if req.IsDataURL() {
		defer release()
		return http.DataResponse(req)
	}

	next := c.handler()
	for {
		pr, err := req.Prepare()
		if err != nil {
			return nil, err
		}
		log := c.log().WithFields(logrus.Fields{
			"method": pr.Method, "url": pr.U.String(), "redirects": req.Counter,
		})
		log.Debug("sending request")

		h := newHop(sig, req.Timeout)
		wire, err := next(h.ctx, pr)
		h.disarm()
		if err == nil && h.timedOut() {
			discard(wire)
			err = errRequestTimeout
		}
		if err != nil {
			err = c.failure(sig, h, req.URL.String(), err)
			h.release()
			log.WithError(err).Debug("request failed")
			return nil, err
		}
		log.WithField("status", wire.StatusCode).Debug("received response")

		follow, err := c.redirect(req, wire)
		if err != nil || !follow {
			if err == nil {
				return c.settle(sig, req, wire, h, release)
			}
			discard(wire)
			h.release()
			return nil, err
		}
		discard(wire)
		h.release()
		log.WithField("location", req.URL.String()).Debug("following redirect")
	}
}

// failure maps the error of a transport call onto the error taxonomy.
// Cancellation of the fetch wins over a concurrent timeout.
func (c *Client) failure(sig context.Context, h *hop, url string, err error) error {
	if sig.Err() != nil {
		return errs.Aborted(context.Cause(sig))
	}
	if h.timedOut() {
		return errs.RequestTimeout(url)
	}
	var fe *errs.FetchError
	if errs.IsAbort(err) || errors.As(err, &fe) {
		return err
	}
	return errs.Network(url, err)
}
