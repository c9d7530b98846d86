package netpool

import (
	"context"
	"io"
	"net"

	"golang.org/x/sync/semaphore"
)

type Conn interface {
	io.ReadWriteCloser
	Raw() net.Conn
}

type Pool struct {
	connTicket *semaphore.Weighted
}

func NewPool(maxConn int64) *Pool {
	return &Pool{connTicket: semaphore.NewWeighted(maxConn)}
}

// Connect blocks until a slot is free or ctx is done.
func (p *Pool) Connect(ctx context.Context, dial func(ctx context.Context) (net.Conn, error)) (Conn, error) {
	if err := p.connTicket.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	c, err := dial(ctx)
	if err != nil {
		p.connTicket.Release(1)
		return nil, err
	}
	return newConn(c, func() { p.connTicket.Release(1) }), nil
}

// Available reports whether Connect would dial without waiting.
func (p *Pool) Available() bool {
	if !p.connTicket.TryAcquire(1) {
		return false
	}
	p.connTicket.Release(1)
	return true
}
