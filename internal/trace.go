package internal

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedReader spans a response body from the first read to the first
// error, or to Close when the body is abandoned early.
type tracedReader struct {
	traceCtx context.Context
	name     string
	tracer   trace.Tracer
	span     trace.Span

	mu        sync.Mutex
	reads     int
	totalData int64
	ended     bool
	r         io.ReadCloser
}

func newTracedReader(ctx context.Context, tracer trace.Tracer, r io.ReadCloser, name string) *tracedReader {
	return &tracedReader{traceCtx: ctx, name: name, tracer: tracer, r: r}
}

func (r *tracedReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	if r.span == nil && !r.ended {
		_, r.span = r.tracer.Start(r.traceCtx, r.name)
	}
	r.mu.Unlock()

	n, err := r.r.Read(p)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ended {
		r.reads++
		r.totalData += int64(n)
		if err != nil {
			r.end(err)
		}
	}
	return n, err
}

// end must be called with mu held.
func (r *tracedReader) end(err error) {
	r.ended = true
	if r.span == nil {
		return
	}
	r.span.SetAttributes(
		attribute.Int("reads", r.reads),
		attribute.Int64("bytes_read", r.totalData),
	)
	if errors.Is(err, io.EOF) {
		r.span.SetStatus(codes.Ok, "")
	} else {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
	}
	r.span.End()
}

func (r *tracedReader) Close() error {
	r.mu.Lock()
	if !r.ended {
		r.end(io.EOF)
	}
	r.mu.Unlock()
	return r.r.Close()
}
