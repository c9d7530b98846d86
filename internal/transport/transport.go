package transport

import (
	"context"
	"errors"
	"io"

	"github.com/frankli0324/go-fetch/internal/http"
)

var errClosedBeforeTrailer = errors.New("body closed before the trailer was received")

type Transport interface {
	Write(ctx context.Context, w io.Writer, req *http.PreparedRequest) error
	Read(ctx context.Context, r io.Reader, req *http.PreparedRequest, resp *http.WireResponse) error
}

// RoundTrip sends req over conn and reads the response head. conn is owned by
// the call from here on: it is closed when ctx is done, when the call fails,
// or when the returned body is closed.
func RoundTrip(ctx context.Context, t Transport, conn io.ReadWriteCloser, req *http.PreparedRequest) (*http.WireResponse, error) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	fail := func(err error) (*http.WireResponse, error) {
		stop()
		conn.Close()
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, err
	}
	if err := t.Write(ctx, conn, req); err != nil {
		return fail(err)
	}
	resp := &http.WireResponse{}
	if err := t.Read(ctx, conn, req, resp); err != nil {
		return fail(err)
	}
	resp.Body = &bodyCloser{Reader: resp.Body, close: func() error {
		stop()
		if resp.Trailer != nil {
			resp.Trailer.Resolve(nil, errClosedBeforeTrailer)
		}
		return conn.Close()
	}}
	return resp, nil
}
