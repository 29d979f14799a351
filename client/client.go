package client

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultBudget is the per-client outbound byte budget: queued but
// unwritten bytes may not exceed it. Sized to hold a few SVGA JPEG
// frames plus headers.
const DefaultBudget = 512 * 1024

// queueSlots bounds the number of queued write units independently of
// the byte budget.
const queueSlots = 32

// Conn is the minimal contract a streaming connection must satisfy.
// Implementations must make Write safe for use from the single writer
// goroutine and Close safe to call concurrently with Write.
type Conn interface {
	// Write sends the whole buffer or fails; short writes are errors.
	Write(p []byte) (int, error)

	// Close tears the connection down. Must be idempotent.
	Close() error

	// Alive reports whether the connection is still open. This is a
	// live query of the connection, never a cached flag.
	Alive() bool
}

// Client is one attached stream consumer.
//
// The broadcaster talks to a Client only through TryEnqueue; a
// dedicated writer goroutine drains the queue to the connection so no
// network I/O ever happens on the broadcast path.
type Client struct {
	// ID identifies the client in logs.
	ID string

	// HeaderSent records whether the one-time stream prologue has been
	// queued for this connection. Only the broadcast pass touches it,
	// under the registry lock.
	HeaderSent bool

	conn    Conn
	queue   chan [][]byte
	pending atomic.Int64
	budget  int64

	dead        atomic.Bool
	done        chan struct{}
	releaseOnce sync.Once
	wg          sync.WaitGroup
}

// New wraps conn in a Client with the given outbound byte budget and
// starts its writer goroutine. A non-positive budget selects
// DefaultBudget.
func New(conn Conn, budget int64) *Client {
	if budget <= 0 {
		budget = DefaultBudget
	}
	c := &Client{
		ID:     uuid.NewString(),
		conn:   conn,
		queue:  make(chan [][]byte, queueSlots),
		budget: budget,
		done:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.writeLoop()

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"client":   c.ID,
		"budget":   budget,
	}).Info("Stream client attached")
	return c
}

// TryEnqueue queues the buffers for writing as one unit.
//
// The enqueue is all-or-nothing and non-blocking: if the remaining
// byte budget or queue slots cannot take the whole unit, nothing is
// queued and false is returned (backpressure skip). Buffers are shared
// read-only with the caller and must not be mutated afterwards.
func (c *Client) TryEnqueue(bufs ...[]byte) bool {
	if c.dead.Load() {
		return false
	}
	var size int64
	for _, b := range bufs {
		size += int64(len(b))
	}
	if c.pending.Add(size) > c.budget {
		c.pending.Add(-size)
		return false
	}
	select {
	case c.queue <- bufs:
		return true
	default:
		c.pending.Add(-size)
		return false
	}
}

// Pending returns the number of queued but unwritten bytes.
func (c *Client) Pending() int64 {
	return c.pending.Load()
}

// Alive reports whether the client can still be written to.
func (c *Client) Alive() bool {
	return !c.dead.Load() && c.conn.Alive()
}

// writeLoop drains the queue to the connection. The first write error
// marks the client dead; the broadcast pass prunes it afterwards.
func (c *Client) writeLoop() {
	defer c.wg.Done()
	defer c.drainQueue()
	for {
		select {
		case <-c.done:
			return
		case bufs := <-c.queue:
			var size int64
			for _, b := range bufs {
				size += int64(len(b))
			}
			err := c.writeAll(bufs)
			c.pending.Add(-size)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "writeLoop",
					"client":   c.ID,
					"error":    err,
				}).Debug("Stream write failed, marking client dead")
				c.dead.Store(true)
				return
			}
		}
	}
}

// drainQueue discards units left queued when the writer exits, so the
// pending counter does not keep reporting bytes that will never be
// written.
func (c *Client) drainQueue() {
	for {
		select {
		case bufs := <-c.queue:
			var size int64
			for _, b := range bufs {
				size += int64(len(b))
			}
			c.pending.Add(-size)
		default:
			return
		}
	}
}

func (c *Client) writeAll(bufs [][]byte) error {
	for _, b := range bufs {
		if _, err := c.conn.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// Release tears the client down and closes its connection. It is safe
// to call from any number of code paths; the underlying close runs
// exactly once.
func (c *Client) Release() {
	c.releaseOnce.Do(func() {
		c.dead.Store(true)
		close(c.done)
		if err := c.conn.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Release",
				"client":   c.ID,
				"error":    err,
			}).Debug("Connection close reported error")
		}
		logrus.WithFields(logrus.Fields{
			"function": "Release",
			"client":   c.ID,
		}).Info("Stream client released")
	})
}
