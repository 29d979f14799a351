package broadcast

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/roverhub/rovercam/client"
	"github.com/roverhub/rovercam/frame"
)

// DefaultBoundary separates the parts of the multipart stream.
const DefaultBoundary = "rovercamframe"

// Broadcaster delivers frames to every live client in the registry.
//
// It runs on the capture goroutine; its only contention points are the
// registry lock (shared with the connection lifecycle callbacks) and
// the clients' non-blocking queues.
type Broadcaster struct {
	reg      *client.Registry
	cache    *frame.Cache
	boundary string
	prologue []byte
}

// New creates a Broadcaster over reg. cache is consulted only when a
// client attaches, to hand late joiners the current frame immediately;
// it may be nil in tests. An empty boundary selects DefaultBoundary.
func New(reg *client.Registry, cache *frame.Cache, boundary string) *Broadcaster {
	if boundary == "" {
		boundary = DefaultBoundary
	}
	prologue := fmt.Sprintf(
		"HTTP/1.1 200 OK\r\n"+
			"Content-Type: multipart/x-mixed-replace; boundary=%s\r\n"+
			"Connection: close\r\n"+
			"\r\n", boundary)
	return &Broadcaster{
		reg:      reg,
		cache:    cache,
		boundary: boundary,
		prologue: []byte(prologue),
	}
}

// Boundary returns the multipart boundary token.
func (b *Broadcaster) Boundary() string {
	return b.boundary
}

// part frames one jpg payload as a multipart unit. The returned buffer
// is shared read-only across all clients of one pass.
func (b *Broadcaster) part(jpg []byte) []byte {
	header := fmt.Sprintf(
		"--%s\r\n"+
			"Content-Type: image/jpeg\r\n"+
			"Content-Length: %d\r\n\r\n", b.boundary, len(jpg))
	buf := make([]byte, 0, len(header)+len(jpg)+2)
	buf = append(buf, header...)
	buf = append(buf, jpg...)
	buf = append(buf, '\r', '\n')
	return buf
}

// deliver queues one framed unit for c, preceded by the one-time
// prologue if the client has not received it yet. It reports whether
// the unit was accepted; a refusal is a backpressure skip, not a
// failure. HeaderSent flips only after the prologue is accepted, so a
// skipped first frame leaves the prologue owed.
func (b *Broadcaster) deliver(c *client.Client, unit []byte) bool {
	if !c.HeaderSent {
		if !c.TryEnqueue(b.prologue, unit) {
			return false
		}
		c.HeaderSent = true
		return true
	}
	return c.TryEnqueue(unit)
}

// Broadcast fans jpg out to every registered client.
//
// Dead connections are flagged during the pass and removed afterwards;
// clients without queue room simply miss this frame and catch the next
// one they can afford. jpg is copied into the shared part buffer, so
// the caller may reuse its bytes on return.
func (b *Broadcaster) Broadcast(jpg []byte) {
	if len(jpg) == 0 || b.reg.Len() == 0 {
		return
	}
	unit := b.part(jpg)

	delivered, skipped := 0, 0
	b.reg.ForEachLive(func(c *client.Client) bool {
		if !c.Alive() {
			return false
		}
		if b.deliver(c, unit) {
			delivered++
		} else {
			skipped++
		}
		return true
	})

	logrus.WithFields(logrus.Fields{
		"function":  "Broadcast",
		"size":      len(jpg),
		"delivered": delivered,
		"skipped":   skipped,
	}).Debug("Broadcast pass complete")
}

// Attach registers c and, when a cached frame exists, queues it right
// away so a late joiner is not stuck on a blank stream until the next
// capture tick. The immediate delivery is the same non-blocking
// enqueue as a broadcast pass and cannot stall capture.
func (b *Broadcaster) Attach(c *client.Client) error {
	if err := b.reg.Add(c); err != nil {
		return err
	}
	if b.cache == nil {
		return nil
	}
	jpg, err := b.cache.Snapshot()
	if err != nil {
		// Empty or momentarily busy: the client waits for the next
		// broadcast pass instead.
		return nil
	}
	b.reg.ForEachLive(func(cl *client.Client) bool {
		// HeaderSent flips only under the registry lock. If it is
		// already set, a broadcast pass reached this client between
		// Add and here with a frame at least as new as the snapshot;
		// queuing the snapshot now would send frames out of capture
		// order.
		if cl == c && !cl.HeaderSent {
			b.deliver(cl, b.part(jpg))
		}
		return true
	})
	return nil
}
