// package netpool limits the number of connections open to the same host.
// Connections are never reused, a slot is released when its connection is
// closed.
package netpool

import (
	"context"
	"net"
	"sync"
)

type PoolGroup struct {
	sync.RWMutex
	pools map[string]*Pool

	maxConnsPerHost int64
}

// NewGroup creates a group allowing maxConnsPerHost connections per key, 0
// means unlimited.
func NewGroup(maxConnsPerHost int64) *PoolGroup {
	return &PoolGroup{
		pools:           map[string]*Pool{},
		maxConnsPerHost: maxConnsPerHost,
	}
}

// NewEmpty returns a group with the same limits and no open connections.
func (g *PoolGroup) NewEmpty() *PoolGroup {
	if g == nil {
		return nil
	}
	return NewGroup(g.maxConnsPerHost)
}

func (g *PoolGroup) pool(key string) *Pool {
	g.RLock()
	p, ok := g.pools[key]
	g.RUnlock()
	if ok {
		return p
	}
	g.Lock()
	defer g.Unlock()
	if p, ok = g.pools[key]; !ok {
		p = NewPool(g.maxConnsPerHost)
		g.pools[key] = p
	}
	return p
}

// Connect waits for a free slot for key, then dials. A nil group dials
// directly.
func (g *PoolGroup) Connect(ctx context.Context, key string, dial func(ctx context.Context) (net.Conn, error)) (Conn, error) {
	if g == nil || g.maxConnsPerHost <= 0 {
		c, err := dial(ctx)
		if err != nil {
			return nil, err
		}
		return newConn(c, func() {}), nil
	}
	return g.pool(key).Connect(ctx, dial)
}
