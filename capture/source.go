package capture

import (
	"context"
	"errors"
)

// Common errors for sensor acquisition.
var (
	// ErrNoFrame indicates the sensor had no frame ready. Transient;
	// the loop retries after a short backoff.
	ErrNoFrame = errors.New("no frame from sensor")
)

// Format identifies the encoding of a sensor buffer.
type Format uint8

const (
	// FormatUnknown is anything the sensor produced that is not known
	// to be streamable.
	FormatUnknown Format = iota
	// FormatJPEG is the only wire format the broadcaster accepts.
	FormatJPEG
)

// Buffer is one frame as handed over by the sensor driver. The driver
// retains ownership of Data; callers must finish with it and call
// Release before the next acquisition.
type Buffer struct {
	Data    []byte
	Format  Format
	release func()
}

// NewBuffer builds a Buffer whose Release invokes release once.
// Drivers use it to hand frame memory back to their pool.
func NewBuffer(data []byte, format Format, release func()) *Buffer {
	return &Buffer{Data: data, Format: format, release: release}
}

// Release returns the buffer to the driver. Safe to call on a nil
// buffer and idempotent.
func (b *Buffer) Release() {
	if b == nil || b.release == nil {
		return
	}
	rel := b.release
	b.release = nil
	rel()
}

// Source is the frame acquisition contract of the sensor driver.
//
// Acquire may block briefly inside the driver (an opaque external
// bound); it returns ErrNoFrame when no frame is available. The
// returned buffer must be released exactly once.
type Source interface {
	Acquire(ctx context.Context) (*Buffer, error)
}
