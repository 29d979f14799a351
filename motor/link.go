package motor

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// DefaultBaudRate matches the controller side of the link.
const DefaultBaudRate = 9600

// Link is the downstream command contract.
type Link interface {
	// Send forwards one normalized command. Implementations must be
	// safe for concurrent use.
	Send(motion string, speed int) error

	// Close releases the link.
	Close() error
}

// wireCommand is the fixed two-field frame the controller expects.
type wireCommand struct {
	M string `json:"M"`
	V int    `json:"v"`
}

// encode renders the newline-terminated wire form.
func encode(motion string, speed int) ([]byte, error) {
	buf, err := json.Marshal(wireCommand{M: motion, V: speed})
	if err != nil {
		return nil, err
	}
	return append(buf, '\n'), nil
}

// WriterLink writes commands to any io.Writer. It backs SerialLink and
// stands in during tests.
type WriterLink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterLink wraps w.
func NewWriterLink(w io.Writer) *WriterLink {
	return &WriterLink{w: w}
}

// Send writes one command frame.
func (l *WriterLink) Send(motion string, speed int) error {
	buf, err := encode(motion, speed)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(buf); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// Close closes the underlying writer when it is closable.
func (l *WriterLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// OpenSerial opens the controller UART (8N1) and returns a Link over
// it. A non-positive baud selects DefaultBaudRate.
func OpenSerial(device string, baud int) (Link, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "OpenSerial",
		"device":   device,
		"baud":     baud,
	}).Info("Motor serial link open")
	return NewWriterLink(port), nil
}

// NopLink swallows commands, for running without the motor hardware.
// Every command is still logged so behavior stays observable.
type NopLink struct{}

// Send logs the command and drops it.
func (NopLink) Send(motion string, speed int) error {
	logrus.WithFields(logrus.Fields{
		"function": "Send",
		"motion":   motion,
		"speed":    speed,
	}).Debug("Motor link disabled, command dropped")
	return nil
}

// Close is a no-op.
func (NopLink) Close() error { return nil }
