package client

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrDuplicate indicates the connection is already registered.
var ErrDuplicate = errors.New("connection already registered")

// Registry tracks the currently attached stream clients.
//
// All mutation happens under one short-held lock; no network I/O is
// performed while it is held (enqueues are non-blocking, releases run
// after unlock). The registry lock is never nested with the frame
// cache lock.
type Registry struct {
	mu      sync.Mutex
	clients []*Client
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers c. A second client for the same connection is
// rejected with ErrDuplicate.
func (r *Registry) Add(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.clients {
		if existing == c || existing.conn == c.conn {
			return ErrDuplicate
		}
	}
	r.clients = append(r.clients, c)
	logrus.WithFields(logrus.Fields{
		"function": "Add",
		"client":   c.ID,
		"clients":  len(r.clients),
	}).Info("Client registered")
	return nil
}

// Remove deregisters c and releases its connection resources.
//
// Removal is idempotent: the disconnect callback and the broadcast
// liveness check may race on the same client and the second caller
// finds nothing to do. Release itself is additionally guarded by the
// client's own once, so the connection is closed exactly once even if
// both callers pass the membership check in turn.
func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	removed := false
	for i, existing := range r.clients {
		if existing == c {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			removed = true
			break
		}
	}
	n := len(r.clients)
	r.mu.Unlock()

	if !removed {
		return
	}
	c.Release()
	logrus.WithFields(logrus.Fields{
		"function": "Remove",
		"client":   c.ID,
		"clients":  n,
	}).Info("Client deregistered")
}

// ForEachLive iterates all clients under the lock, applying visit.
// Returning false from visit flags the current client for removal;
// compaction happens after the full pass so iteration stays
// well-defined, and flagged clients are released after the lock is
// dropped.
func (r *Registry) ForEachLive(visit func(c *Client) (keep bool)) {
	r.mu.Lock()
	var dead []*Client
	kept := r.clients[:0]
	for _, c := range r.clients {
		if visit(c) {
			kept = append(kept, c)
		} else {
			dead = append(dead, c)
		}
	}
	for i := len(kept); i < len(r.clients); i++ {
		r.clients[i] = nil
	}
	r.clients = kept
	r.mu.Unlock()

	for _, c := range dead {
		c.Release()
	}
	if len(dead) > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "ForEachLive",
			"pruned":   len(dead),
		}).Debug("Dead clients pruned after broadcast pass")
	}
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
