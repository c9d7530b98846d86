package body

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	errs "github.com/frankli0324/go-fetch/internal/errors"
)

// guardedReader applies the consumption contract of a body to its source:
// the size cap, the inactivity timer and the signal. The timer and the signal
// listener are armed on the first Read and released on EOF, error or Close,
// whichever comes first.
type guardedReader struct {
	src  io.ReadCloser
	opts Options
	wrap func(url string, err error) *errs.FetchError

	started bool
	read    int64
	timer   *time.Timer
	unwatch func() bool

	mu     sync.Mutex
	reason error
	done   bool

	closeOnce sync.Once
	closeErr  error
}

func newGuardedReader(src io.ReadCloser, opts Options, wrap func(string, error) *errs.FetchError) *guardedReader {
	return &guardedReader{src: src, opts: opts, wrap: wrap}
}

func (g *guardedReader) start() error {
	g.started = true
	if sig := g.opts.Signal; sig != nil {
		if sig.Err() != nil {
			return errs.Aborted(context.Cause(sig))
		}
		g.unwatch = context.AfterFunc(sig, func() {
			g.abort(errs.Aborted(context.Cause(sig)))
		})
	}
	if d := g.opts.Timeout; d > 0 {
		g.timer = time.AfterFunc(d, func() {
			g.abort(errs.BodyTimeout(g.opts.URL, d))
		})
	}
	return nil
}

// abort records the reason of a failure observed outside of Read and closes
// the source to unblock a pending Read.
func (g *guardedReader) abort(reason error) {
	g.mu.Lock()
	if g.done || g.reason != nil {
		g.mu.Unlock()
		return
	}
	g.reason = reason
	g.mu.Unlock()
	g.closeSource()
}

func (g *guardedReader) failure() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reason
}

func (g *guardedReader) Read(p []byte) (int, error) {
	if !g.started {
		if err := g.start(); err != nil {
			g.finish(err)
			return 0, err
		}
	}
	if err := g.failure(); err != nil {
		return 0, err
	}
	n, err := g.src.Read(p)
	if n > 0 {
		g.read += int64(n)
		if g.opts.Size > 0 && g.read > g.opts.Size {
			ferr := errs.MaxSize(g.opts.URL, g.opts.Size, g.read)
			g.finish(ferr)
			return 0, ferr
		}
		if g.timer != nil && err == nil {
			g.timer.Reset(g.opts.Timeout)
		}
	}
	if err != nil {
		err = g.translate(err)
		g.finish(err)
	}
	return n, err
}

func (g *guardedReader) translate(err error) error {
	if reason := g.failure(); reason != nil {
		return reason
	}
	if err == io.EOF {
		return err
	}
	if sig := g.opts.Signal; sig != nil && sig.Err() != nil {
		return errs.Aborted(context.Cause(sig))
	}
	var fe *errs.FetchError
	if errs.IsAbort(err) || errors.As(err, &fe) {
		return err
	}
	return g.wrap(g.opts.URL, err)
}

// finish stops the timer and the signal listener and records err as the
// terminal result, later Reads return it again.
func (g *guardedReader) finish(err error) {
	if g.timer != nil {
		g.timer.Stop()
	}
	if g.unwatch != nil {
		g.unwatch()
	}
	g.mu.Lock()
	already := g.done
	g.done = true
	if g.reason == nil {
		g.reason = err
	}
	g.mu.Unlock()
	if !already {
		g.closeSource()
	}
}

func (g *guardedReader) closeSource() {
	g.closeOnce.Do(func() {
		g.closeErr = g.src.Close()
	})
}

func (g *guardedReader) Close() error {
	g.finish(io.ErrClosedPipe)
	return g.closeErr
}
