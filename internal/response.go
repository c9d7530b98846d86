package internal

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/frankli0324/go-fetch/internal/decompress"
	"github.com/frankli0324/go-fetch/internal/headers"
	"github.com/frankli0324/go-fetch/internal/http"
)

// releasingBody ends the fetch scope once the body is closed. Read errors do
// not release, the body guard closes the stream after any terminal read.
type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}

// settle turns the final wire response into the response handed to the
// caller. The hop and the fetch scope stay alive until the body is done.
func (c *Client) settle(sig context.Context, req *http.Request, wire *http.WireResponse, h *hop, release func()) (*http.Response, error) {
	log := c.log().WithFields(logrus.Fields{"url": req.URL.String(), "status": wire.StatusCode})
	hdr := headers.Lenient(wire.Header, func(name string) {
		log.WithField("header", name).Debug("dropping invalid response header")
	})
	init := http.ResponseInit{
		URL:        req.URL.String(),
		Status:     wire.StatusCode,
		StatusText: wire.StatusText(),
		Header:     hdr,
		Counter:    req.Counter,
		Size:       req.Size,
		Timeout:    req.Timeout,
		Signal:     sig,
		Trailer:    wire.Trailer,
	}
	done := func() {
		h.release()
		release()
	}

	src, empty := emptyBody(wire)
	if empty {
		done()
		init.Signal = nil
		return http.NewResponse([]byte{}, init)
	}

	algo := decompress.None
	if req.Compress {
		algo = decompress.Select(req.Method, wire.StatusCode, hdr.Value("Content-Encoding"))
	}
	if algo != decompress.None {
		log.WithField("encoding", algo).Debug("decoding response body")
	}
	src = decompress.Wrap(src, algo)
	src = newTracedReader(h.ctx, c.getTracer(), src, "fetch.body")
	res, err := http.NewResponse(&releasingBody{ReadCloser: src, release: done}, init)
	if err != nil {
		src.Close()
		done()
		return nil, err
	}
	return res, nil
}

// emptyBody reports whether wire declares no body bytes, in which case its
// stream is closed at once. The body is never read here, a streaming
// response of unknown length is handed over untouched.
func emptyBody(wire *http.WireResponse) (io.ReadCloser, bool) {
	if wire.Body == nil {
		return nil, true
	}
	if wire.ContentLength == 0 {
		wire.Body.Close()
		return nil, true
	}
	return wire.Body, false
}
