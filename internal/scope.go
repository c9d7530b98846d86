package internal

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	errRequestTimeout = errors.New("request timeout")
	errReleased       = errors.New("fetch released")
)

// mergeSignal derives a context from ctx that is also cancelled when extra
// is. release detaches the listener on extra and cancels the result, it is
// safe to call more than once.
func mergeSignal(ctx, extra context.Context) (context.Context, func()) {
	merged, cancel := context.WithCancelCause(ctx)
	stop := func() bool { return false }
	if extra != nil && extra != ctx {
		if extra.Err() != nil {
			cancel(context.Cause(extra))
		} else {
			stop = context.AfterFunc(extra, func() { cancel(context.Cause(extra)) })
		}
	}
	var once sync.Once
	return merged, func() {
		once.Do(func() {
			stop()
			cancel(errReleased)
		})
	}
}

// hop is the scope of a single transport call. Its context ends when the
// request timer fires, when the fetch is aborted or when the hop is
// released.
type hop struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	timer  *time.Timer
}

func newHop(parent context.Context, timeout time.Duration) *hop {
	ctx, cancel := context.WithCancelCause(parent)
	h := &hop{ctx: ctx, cancel: cancel}
	if timeout > 0 {
		h.timer = time.AfterFunc(timeout, func() { cancel(errRequestTimeout) })
	}
	return h
}

// disarm stops the request timer, the response headers arrived.
func (h *hop) disarm() {
	if h.timer != nil {
		h.timer.Stop()
	}
}

func (h *hop) timedOut() bool {
	return errors.Is(context.Cause(h.ctx), errRequestTimeout)
}

func (h *hop) release() {
	h.disarm()
	h.cancel(errReleased)
}
