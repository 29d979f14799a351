package rovercam

import (
	"net"
	"sync"
	"sync/atomic"
)

// streamConn wraps a hijacked TCP connection behind the client.Conn
// contract. Liveness is derived from the connection itself: the
// disconnect watcher flips closed the moment a read fails, and Alive
// never consults a cached health flag beyond that terminal marker.
type streamConn struct {
	net.Conn
	closed    atomic.Bool
	closeOnce sync.Once
}

func newStreamConn(c net.Conn) *streamConn {
	return &streamConn{Conn: c}
}

// Close tears the TCP connection down once; later calls are no-ops.
func (c *streamConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.Conn.Close()
	})
	return err
}

// markClosed records a death detected by the watcher without racing
// a concurrent Close.
func (c *streamConn) markClosed() {
	c.closed.Store(true)
}

// Alive reports whether the connection is still open.
func (c *streamConn) Alive() bool {
	return !c.closed.Load()
}
