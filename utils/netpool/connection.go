package netpool

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type conn struct {
	net.Conn
	IsClosed atomic.Bool
	release  func()
	once     sync.Once
}

func newConn(c net.Conn, release func()) *conn {
	return &conn{Conn: c, release: release}
}

func (c *conn) Raw() net.Conn {
	return c.Conn
}

// Write closes the connection on failure, the exchange it carries is lost
// anyway and the slot can be handed over.
func (c *conn) Write(p []byte) (n int, err error) {
	n, err = c.Conn.Write(p)
	if err != nil {
		if !errors.Is(err, net.ErrClosed) {
			logrus.WithError(err).WithField("remote", c.Conn.RemoteAddr()).Debug("netpool: error on write")
		}
		c.Close()
	}
	return
}

// Close closes the connection and frees its slot, only the first call
// reaches the underlying connection.
func (c *conn) Close() (err error) {
	c.once.Do(func() {
		err = c.Conn.Close()
		c.IsClosed.Store(true)
		c.release()
	})
	return err
}
