package capture

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roverhub/rovercam/frame"
)

// State is the capture loop's position in its cycle.
type State uint8

const (
	StateIdle State = iota
	StateCapturing
	StatePublished
)

// Default pacing, matching the original 50ms / ~20fps target with a
// 5ms retry on transient sensor failure.
const (
	DefaultInterval = 50 * time.Millisecond
	DefaultBackoff  = 5 * time.Millisecond
)

// Sink receives each correctly-encoded frame right after it is
// published to the cache. The bytes passed are the sensor's own buffer
// and are valid only for the duration of the call.
type Sink interface {
	Broadcast(jpg []byte)
}

// Loop is the dedicated capture execution unit: it pulls frames from
// the Source at a fixed target rate, publishes them into the cache and
// triggers a broadcast pass. It runs for the process lifetime; its
// only terminal state is context cancellation.
type Loop struct {
	src      Source
	cache    *frame.Cache
	sink     Sink
	interval time.Duration
	backoff  time.Duration

	state atomic.Uint32
}

// NewLoop wires a Loop. Non-positive durations select the defaults.
func NewLoop(src Source, cache *frame.Cache, sink Sink, interval, backoff time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Loop{
		src:      src,
		cache:    cache,
		sink:     sink,
		interval: interval,
		backoff:  backoff,
	}
}

// Run drives the capture cycle until ctx is cancelled. A successful
// cycle waits the full target interval; a transient failure retries
// after the short backoff instead, so one slow sensor read never
// stalls the loop for longer than it has to.
func (l *Loop) Run(ctx context.Context) {
	logrus.WithFields(logrus.Fields{
		"function": "Run",
		"interval": l.interval,
	}).Info("Capture loop started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.WithFields(logrus.Fields{
				"function": "Run",
			}).Info("Capture loop stopped")
			return
		case <-timer.C:
		}

		if l.captureOnce(ctx) {
			timer.Reset(l.interval)
		} else {
			timer.Reset(l.backoff)
		}
	}
}

// captureOnce performs one acquire/publish/broadcast/release cycle.
// It reports whether a frame was published, which decides the pacing
// of the next tick.
func (l *Loop) captureOnce(ctx context.Context) bool {
	l.state.Store(uint32(StateCapturing))
	defer l.state.Store(uint32(StateIdle))

	buf, err := l.src.Acquire(ctx)
	if err != nil {
		// Transient: nothing to report, retry after backoff.
		logrus.WithFields(logrus.Fields{
			"function": "captureOnce",
			"error":    err,
		}).Debug("Sensor acquisition failed")
		return false
	}
	defer buf.Release()

	if buf.Format != FormatJPEG || !frame.IsJPEG(buf.Data) {
		logrus.WithFields(logrus.Fields{
			"function": "captureOnce",
			"format":   buf.Format,
			"size":     len(buf.Data),
		}).Warn("Discarding frame with unexpected encoding")
		return false
	}

	if err := l.cache.Publish(buf.Data); err != nil {
		// Lock contention: the previous frame stays authoritative in
		// the cache, but the captured bytes are still broadcast so
		// clients keep seeing frames in capture order.
		logrus.WithFields(logrus.Fields{
			"function": "captureOnce",
			"error":    err,
		}).Debug("Publish skipped")
	} else {
		l.state.Store(uint32(StatePublished))
	}

	// Broadcast the sensor bytes directly, avoiding a redundant cache
	// read. The sink must be done with them before returning.
	l.sink.Broadcast(buf.Data)
	return true
}

// State returns the loop's current cycle position.
func (l *Loop) State() State {
	return State(l.state.Load())
}
