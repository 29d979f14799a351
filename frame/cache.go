package frame

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Common errors for cache operations.
var (
	// ErrBusy indicates the slot lock could not be acquired within the
	// bounded wait. The operation was skipped, not failed: the previous
	// frame remains authoritative.
	ErrBusy = errors.New("frame cache busy")

	// ErrEmpty indicates no frame has been published yet.
	ErrEmpty = errors.New("no frame available")
)

// DefaultLockWait is how long Publish and Snapshot wait for the slot
// lock before giving up for this cycle.
const DefaultLockWait = 10 * time.Millisecond

// Cache is the single-slot store for the most recent encoded frame.
//
// The slot is guarded by a one-token semaphore acquired with a bounded
// wait, so neither the publisher nor a reader can stall the other
// indefinitely. The cache owns its frame storage exclusively: Publish
// installs a private copy and Snapshot returns copies, so no caller
// ever holds a reference into the slot.
type Cache struct {
	sem      chan struct{}
	lockWait time.Duration

	cur []byte
	seq atomic.Uint64
}

// NewCache creates an empty Cache. A non-positive lockWait selects
// DefaultLockWait.
func NewCache(lockWait time.Duration) *Cache {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &Cache{
		sem:      make(chan struct{}, 1),
		lockWait: lockWait,
	}
}

// acquire takes the slot lock, waiting at most c.lockWait.
func (c *Cache) acquire() bool {
	select {
	case c.sem <- struct{}{}:
		return true
	default:
	}
	timer := time.NewTimer(c.lockWait)
	defer timer.Stop()
	select {
	case c.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

func (c *Cache) release() {
	<-c.sem
}

// Publish atomically replaces the current frame with a copy of data.
//
// The copy is taken before the lock so the slot is held only for the
// pointer swap. If the lock cannot be taken within the bounded wait,
// the publish is skipped and ErrBusy returned; the previous frame
// stays in place. The old frame's storage is dropped only after the
// new one is installed.
func (c *Cache) Publish(data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	if !c.acquire() {
		logrus.WithFields(logrus.Fields{
			"function": "Publish",
			"size":     len(data),
		}).Debug("Frame cache contended, publish skipped")
		return ErrBusy
	}
	c.cur = buf
	c.release()

	c.seq.Add(1)
	return nil
}

// Snapshot returns a copy of the current frame.
//
// ErrEmpty is returned before the first publish, ErrBusy when the slot
// lock cannot be taken within the bounded wait ("unavailable" rather
// than blocking).
func (c *Cache) Snapshot() ([]byte, error) {
	if !c.acquire() {
		return nil, ErrBusy
	}
	defer c.release()

	if c.cur == nil {
		return nil, ErrEmpty
	}
	out := make([]byte, len(c.cur))
	copy(out, c.cur)
	return out, nil
}

// Seq returns the number of successful publishes so far. Consumers use
// it to detect a new frame without copying the payload.
func (c *Cache) Seq() uint64 {
	return c.seq.Load()
}
