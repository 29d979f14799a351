package client

import (
	"errors"
	"sync"
	"sync/atomic"
)

// fakeConn records writes and counts closes, standing in for a live
// TCP connection.
type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte

	// gate, when set, stalls every Write until the channel yields.
	gate chan struct{}

	failWrites atomic.Bool
	closed     atomic.Bool
	closeCount atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{}
}

func (f *fakeConn) Write(p []byte) (int, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.failWrites.Load() || f.closed.Load() {
		return 0, errors.New("connection reset")
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	f.mu.Lock()
	f.writes = append(f.writes, buf)
	f.mu.Unlock()
	return len(p), nil
}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	f.closeCount.Add(1)
	return nil
}

func (f *fakeConn) Alive() bool {
	return !f.closed.Load()
}

// written returns a snapshot of everything written so far.
func (f *fakeConn) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

// writtenBytes flattens all writes into one buffer.
func (f *fakeConn) writtenBytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, w := range f.writes {
		out = append(out, w...)
	}
	return out
}
